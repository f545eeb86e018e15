package archive

import (
	"io"
	"os"

	"github.com/CasualX/pak-rs/pkg/core/crypto"
	"github.com/CasualX/pak-rs/pkg/core/record"
	"github.com/CasualX/pak-rs/pkg/pakerr"
)

// FileEditFile is a scoped handle for populating a single file descriptor's
// content directly on disk.
type FileEditFile struct {
	file     *os.File
	desc     *record.Descriptor
	highMark *uint32
}

// Descriptor returns the file descriptor as it currently stands.
func (f *FileEditFile) Descriptor() record.Descriptor { return *f.desc }

// SetContent sets the content type and size for this file descriptor. A
// contentType of zero is reserved for directory descriptors and is
// silently raised to 1.
func (f *FileEditFile) SetContent(contentType, contentSize uint32) *FileEditFile {
	if contentType < 1 {
		contentType = 1
	}
	f.desc.ContentType = contentType
	f.desc.ContentSize = contentSize
	return f
}

// SetSection assigns an existing section to this file descriptor, letting
// multiple descriptors share the same underlying data.
func (f *FileEditFile) SetSection(section record.Section) *FileEditFile {
	f.desc.Section = section
	return f
}

// AllocateData bump-allocates space for the file's content from the
// archive's high water mark, sized according to the content_size set by
// SetContent. The allocated space is logically uninitialized until
// WriteData or ZeroData is called.
func (f *FileEditFile) AllocateData() *FileEditFile {
	f.desc.Section.Offset = *f.highMark
	f.desc.Section.Size = record.BytesToBlocks(f.desc.ContentSize)
	*f.highMark += f.desc.Section.Size
	return f
}

// WriteData copies and encrypts data into the section allocated by
// AllocateData or assigned by SetSection, writing it to disk.
func (f *FileEditFile) WriteData(data []byte, key Key) error {
	fileOffset := int64(f.desc.Section.Offset) * record.BlockSize
	if _, err := f.file.Seek(fileOffset, io.SeekStart); err != nil {
		return pakerr.IoErrorf("archive.FileEditFile.WriteData", err, "seeking to section offset")
	}

	buf := make([]byte, int(f.desc.Section.Size)*record.BlockSize)
	copy(buf, data)
	blocks := record.BlocksFromBytes(buf)

	if err := crypto.EncryptSection(blocks, &f.desc.Section, key); err != nil {
		return err
	}
	if _, err := f.file.Write(record.BlocksToBytes(blocks)); err != nil {
		return pakerr.IoErrorf("archive.FileEditFile.WriteData", err, "writing section")
	}
	return nil
}

// ZeroData initializes the section's content with zeroes, writing it to
// disk.
func (f *FileEditFile) ZeroData(key Key) error {
	fileOffset := int64(f.desc.Section.Offset) * record.BlockSize
	if _, err := f.file.Seek(fileOffset, io.SeekStart); err != nil {
		return pakerr.IoErrorf("archive.FileEditFile.ZeroData", err, "seeking to section offset")
	}

	blocks := make([]record.Block, f.desc.Section.Size)
	if err := crypto.EncryptSection(blocks, &f.desc.Section, key); err != nil {
		return err
	}
	if _, err := f.file.Write(record.BlocksToBytes(blocks)); err != nil {
		return pakerr.IoErrorf("archive.FileEditFile.ZeroData", err, "writing section")
	}
	return nil
}

// ReencryptData decrypts the section under oldKey and re-encrypts it under
// key, both read from and written back to disk in place.
//
// # Consistency guarantees
//
// The file contents are updated in place, so the directory last written by
// Finish still holds the old nonce and MAC for this section: a crash during
// the write, or before the next Finish, leaves a section that no longer
// authenticates under that directory. If the section fails to
// authenticate under oldKey, the file is left completely untouched and an
// error is returned instead of writing anything back.
func (f *FileEditFile) ReencryptData(oldKey, key Key) error {
	fileOffset := int64(f.desc.Section.Offset) * record.BlockSize
	if _, err := f.file.Seek(fileOffset, io.SeekStart); err != nil {
		return pakerr.IoErrorf("archive.FileEditFile.ReencryptData", err, "seeking to section offset")
	}

	buf := make([]byte, int(f.desc.Section.Size)*record.BlockSize)
	if _, err := io.ReadFull(f.file, buf); err != nil {
		return pakerr.IoErrorf("archive.FileEditFile.ReencryptData", err, "reading section")
	}
	blocks := record.BlocksFromBytes(buf)

	if !crypto.DecryptSection(blocks, f.desc.Section, oldKey) {
		return pakerr.InvalidDataf("archive.FileEditFile.ReencryptData", "MAC verification failed under the old key")
	}
	if err := crypto.EncryptSection(blocks, &f.desc.Section, key); err != nil {
		return err
	}

	if _, err := f.file.Seek(fileOffset, io.SeekStart); err != nil {
		return pakerr.IoErrorf("archive.FileEditFile.ReencryptData", err, "seeking to section offset")
	}
	if _, err := f.file.Write(record.BlocksToBytes(blocks)); err != nil {
		return pakerr.IoErrorf("archive.FileEditFile.ReencryptData", err, "writing section")
	}
	return nil
}
