// Package archive implements the two interchangeable façades over a PAK
// archive: an in-memory façade (MemoryEditor/MemoryReader) and a
// file-backed, streaming façade (FileEditor/FileReader). Both are built on
// the same crypto and directory primitives.
package archive

import (
	"github.com/CasualX/pak-rs/pkg/core/crypto"
	"github.com/CasualX/pak-rs/pkg/core/record"
)

// Key is the 128-bit master key used to encrypt and decrypt an archive.
type Key = crypto.Key

// highMarkMultiplier is the number of blocks occupied by each Descriptor in
// the directory section. A directory's Section.Size field is defined to
// count Descriptors, not blocks, so converting it to a block count always
// goes through this constant.
//
// This intentionally does not match record.InfoHeaderBlocksLen: see DESIGN.md
// for why the two must not be confused when computing a high water mark.
const highMarkMultiplier = record.DescriptorBlocksLen

func directorySection(info record.InfoHeader) (start, end uint32) {
	start = info.Directory.Offset
	end = start + info.Directory.Size*highMarkMultiplier
	return
}
