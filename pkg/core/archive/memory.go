package archive

import (
	"github.com/CasualX/pak-rs/pkg/core/crypto"
	"github.com/CasualX/pak-rs/pkg/core/directory"
	"github.com/CasualX/pak-rs/pkg/core/record"
	"github.com/CasualX/pak-rs/pkg/pakerr"
)

func decryptSectionFromBlocks(blocks []record.Block, section record.Section, key Key) ([]record.Block, error) {
	start, end := section.Range()
	if end > uint32(len(blocks)) || start > end {
		return nil, pakerr.InvalidInputf("archive.readSection", "section [%d, %d) out of range (len=%d)", start, end, len(blocks))
	}
	buf := append([]record.Block(nil), blocks[start:end]...)
	if !crypto.DecryptSection(buf, section, key) {
		return nil, pakerr.InvalidDataf("archive.readSection", "MAC verification failed")
	}
	return buf, nil
}

// fromBlocks decodes and decrypts the header and directory out of blocks,
// returning blocks with the directory trimmed off the end (if it was the
// last thing in the archive; the header blocks stay at the front) and the
// decoded Directory.
func fromBlocks(blocks []record.Block, key Key) ([]record.Block, *directory.Directory, error) {
	if len(blocks) < record.HeaderBlocksLen {
		return nil, nil, pakerr.InvalidDataf("archive.fromBlocks", "archive too small to contain a header")
	}

	header := record.HeaderFromBlocks(blocks[:record.HeaderBlocksLen])
	if !crypto.DecryptHeader(&header, key) {
		return nil, nil, pakerr.InvalidDataf("archive.fromBlocks", "header MAC or version check failed")
	}

	dirStart, dirEnd := directorySection(header.Info)
	if dirEnd > uint32(len(blocks)) || dirStart > dirEnd {
		return nil, nil, pakerr.InvalidDataf("archive.fromBlocks", "directory section out of range")
	}

	dirBlocks := append([]record.Block(nil), blocks[dirStart:dirEnd]...)
	if !crypto.DecryptSection(dirBlocks, header.Info.Directory, key) {
		return nil, nil, pakerr.InvalidDataf("archive.fromBlocks", "directory MAC verification failed")
	}

	descs := make([]record.Descriptor, header.Info.Directory.Size)
	for i := range descs {
		off := i * record.DescriptorBlocksLen
		descs[i] = record.DescriptorFromBlocks(dirBlocks[off : off+record.DescriptorBlocksLen])
	}
	dir := directory.FromDescriptors(descs)

	out := blocks
	if uint32(len(blocks)) == dirEnd {
		out = blocks[:dirStart]
	}
	return out, dir, nil
}

//----------------------------------------------------------------

// MemoryReader holds an entire decrypted PAK archive's directory in memory,
// reading file contents on demand from the remaining encrypted blocks.
type MemoryReader struct {
	blocks []record.Block
	dir    *directory.Directory
}

// NewMemoryReaderFromBytes parses raw archive bytes for reading.
func NewMemoryReaderFromBytes(data []byte, key Key) (*MemoryReader, error) {
	if len(data)%record.BlockSize != 0 {
		return nil, pakerr.InvalidInputf("archive.NewMemoryReaderFromBytes", "length %d is not a multiple of the block size", len(data))
	}
	return NewMemoryReaderFromBlocks(record.BlocksFromBytes(data), key)
}

// NewMemoryReaderFromBlocks parses an archive already split into blocks for
// reading.
func NewMemoryReaderFromBlocks(blocks []record.Block, key Key) (*MemoryReader, error) {
	rest, dir, err := fromBlocks(blocks, key)
	if err != nil {
		return nil, err
	}
	return &MemoryReader{blocks: rest, dir: dir}, nil
}

// Directory returns the archive's directory.
func (r *MemoryReader) Directory() *directory.Directory { return r.dir }

// ReadSection decrypts and authenticates an arbitrary section of the
// archive. key need not be the key the archive was opened with.
func (r *MemoryReader) ReadSection(section record.Section, key Key) ([]record.Block, error) {
	return decryptSectionFromBlocks(r.blocks, section, key)
}

// ReadData decrypts the full content of a file descriptor.
func (r *MemoryReader) ReadData(desc record.Descriptor, key Key) ([]byte, error) {
	return readData(r.blocks, desc, key)
}

// ReadInto decrypts part of a file descriptor's content into dest.
func (r *MemoryReader) ReadInto(desc record.Descriptor, key Key, byteOffset int, dest []byte) error {
	return readInto(r.blocks, desc, key, byteOffset, dest)
}

func readData(blocks []record.Block, desc record.Descriptor, key Key) ([]byte, error) {
	if !desc.IsFile() {
		return nil, pakerr.InvalidInputf("archive.readData", "descriptor is not a file")
	}
	section, err := decryptSectionFromBlocks(blocks, desc.Section, key)
	if err != nil {
		return nil, err
	}
	data := record.BlocksToBytes(section)
	n := len(data)
	if int(desc.ContentSize) < n {
		n = int(desc.ContentSize)
	}
	return data[:n], nil
}

func readInto(blocks []record.Block, desc record.Descriptor, key Key, byteOffset int, dest []byte) error {
	if !desc.IsFile() {
		return pakerr.InvalidInputf("archive.readInto", "descriptor is not a file")
	}
	section, err := decryptSectionFromBlocks(blocks, desc.Section, key)
	if err != nil {
		return err
	}
	data := record.BlocksToBytes(section)
	if byteOffset < 0 || byteOffset+len(dest) > len(data) {
		return pakerr.InvalidInputf("archive.readInto", "range [%d, %d) out of bounds (len=%d)", byteOffset, byteOffset+len(dest), len(data))
	}
	copy(dest, data[byteOffset:byteOffset+len(dest)])
	return nil
}

//----------------------------------------------------------------

// MemoryEditor keeps an entire PAK archive in memory for editing. Dropping
// it without calling Finish discards every change since it was created or
// opened.
type MemoryEditor struct {
	blocks []record.Block
	dir    *directory.Directory
}

// NewMemoryEditor creates a new, empty MemoryEditor.
func NewMemoryEditor() *MemoryEditor {
	return &MemoryEditor{
		blocks: make([]record.Block, record.HeaderBlocksLen),
		dir:    directory.New(),
	}
}

// NewMemoryEditorFromBytes parses raw archive bytes for editing. The entire
// input is copied into an internal buffer.
func NewMemoryEditorFromBytes(data []byte, key Key) (*MemoryEditor, error) {
	if len(data)%record.BlockSize != 0 {
		return nil, pakerr.InvalidInputf("archive.NewMemoryEditorFromBytes", "length %d is not a multiple of the block size", len(data))
	}
	return NewMemoryEditorFromBlocks(record.BlocksFromBytes(data), key)
}

// NewMemoryEditorFromBlocks parses an archive already split into blocks for
// editing.
func NewMemoryEditorFromBlocks(blocks []record.Block, key Key) (*MemoryEditor, error) {
	rest, dir, err := fromBlocks(blocks, key)
	if err != nil {
		return nil, err
	}
	return &MemoryEditor{blocks: rest, dir: dir}, nil
}

// Directory returns the archive's directory for inspection and editing.
func (e *MemoryEditor) Directory() *directory.Directory { return e.dir }

// HighMark returns the block index just past the last block of file data.
func (e *MemoryEditor) HighMark() uint32 { return uint32(len(e.blocks)) }

// EditFile creates a file descriptor at path (any missing parent
// directories are created automatically) and returns a handle for
// populating its content.
func (e *MemoryEditor) EditFile(path []byte) *MemoryEditFile {
	desc := e.dir.CreateDescriptor(path)
	return &MemoryEditFile{desc: desc, blocks: &e.blocks}
}

// CreateFile creates a file at path with content_type 1, allocating a fresh
// section and writing the encrypted data into it. data larger than 4 GiB is
// truncated, since content size is stored in a uint32.
func (e *MemoryEditor) CreateFile(path []byte, data []byte, key Key) (*record.Descriptor, error) {
	ef := e.EditFile(path)
	ef.SetContent(1, uint32(len(data)))
	ef.AllocateData()
	if err := ef.WriteData(data, key); err != nil {
		return nil, err
	}
	return ef.desc, nil
}

// ReadSection decrypts and authenticates an arbitrary section of the
// archive.
func (e *MemoryEditor) ReadSection(section record.Section, key Key) ([]record.Block, error) {
	return decryptSectionFromBlocks(e.blocks, section, key)
}

// ReadData decrypts the full content of a file descriptor.
func (e *MemoryEditor) ReadData(desc record.Descriptor, key Key) ([]byte, error) {
	return readData(e.blocks, desc, key)
}

// ReadInto decrypts part of a file descriptor's content into dest.
func (e *MemoryEditor) ReadInto(desc record.Descriptor, key Key, byteOffset int, dest []byte) error {
	return readInto(e.blocks, desc, key, byteOffset, dest)
}

// GC reclaims the space left behind by deleted or overwritten files.
//
// Every live file descriptor's section is copied, verbatim ciphertext,
// nonce and MAC included, to a freshly built block array; only the
// section's Offset is patched. File descriptors whose section no longer
// resolves to valid blocks have their section zeroed out, since the data
// they once referred to is unrecoverable once its slot has been
// overwritten.
func (e *MemoryEditor) GC() {
	out := make([]record.Block, record.HeaderBlocksLen)
	descs := e.dir.Descriptors()
	for i := range descs {
		desc := &descs[i]
		if !desc.IsFile() {
			continue
		}
		start, end := desc.Section.Range()
		if end <= uint32(len(e.blocks)) && start <= end {
			offset := uint32(len(out))
			out = append(out, e.blocks[start:end]...)
			desc.Section.Offset = offset
		} else {
			desc.Section = record.Section{}
		}
	}
	e.blocks = out
}

// Finish builds the final header and directory for the archive, returning
// the full set of blocks ready to be persisted (e.g. with
// record.BlocksToBytes) and the plaintext Directory for inspection.
func (e *MemoryEditor) Finish(key Key) ([]record.Block, *directory.Directory, error) {
	blocks := e.blocks
	if len(blocks) < record.HeaderBlocksLen {
		blocks = append(blocks, make([]record.Block, record.HeaderBlocksLen-len(blocks))...)
	}

	highMark := uint32(len(blocks))
	descs := e.dir.Descriptors()
	dirSize := uint32(len(descs))

	dirBlocks := make([]record.Block, 0, int(dirSize)*record.DescriptorBlocksLen)
	for _, d := range descs {
		dirBlocks = append(dirBlocks, d.Blocks()...)
	}
	blocks = append(blocks, dirBlocks...)

	header := record.Header{
		Info: record.InfoHeader{
			Directory: record.Section{
				Offset: highMark,
				Size:   dirSize,
			},
		},
	}

	dirRegion := blocks[highMark:]
	if err := crypto.EncryptSection(dirRegion, &header.Info.Directory, key); err != nil {
		return nil, nil, err
	}
	if err := crypto.EncryptHeader(&header, key); err != nil {
		return nil, nil, err
	}
	copy(blocks[:record.HeaderBlocksLen], header.Blocks())

	return blocks, e.dir, nil
}
