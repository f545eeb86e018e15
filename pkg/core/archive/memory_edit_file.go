package archive

import (
	"github.com/CasualX/pak-rs/pkg/core/crypto"
	"github.com/CasualX/pak-rs/pkg/core/record"
	"github.com/CasualX/pak-rs/pkg/pakerr"
)

// MemoryEditFile is a scoped handle for populating a single file
// descriptor's content within a MemoryEditor.
//
// Incorrect use (writing before allocating, allocating twice) can corrupt
// the file's contents or overlap another file's data; this type trusts the
// caller to follow the set-content -> allocate -> write sequence.
type MemoryEditFile struct {
	desc   *record.Descriptor
	blocks *[]record.Block
}

// Descriptor returns the file descriptor as it currently stands.
func (f *MemoryEditFile) Descriptor() record.Descriptor { return *f.desc }

// SetContent sets the content type and size for this file descriptor. A
// contentType of zero is reserved for directory descriptors and is
// silently raised to 1.
func (f *MemoryEditFile) SetContent(contentType, contentSize uint32) *MemoryEditFile {
	if contentType < 1 {
		contentType = 1
	}
	f.desc.ContentType = contentType
	f.desc.ContentSize = contentSize
	return f
}

// SetSection assigns an existing section to this file descriptor, letting
// multiple descriptors share the same underlying data.
func (f *MemoryEditFile) SetSection(section record.Section) *MemoryEditFile {
	f.desc.Section = section
	return f
}

// AllocateData bump-allocates space for the file's content, sized according
// to the content_size set by SetContent. The allocated space is logically
// uninitialized until WriteData or ZeroData is called.
func (f *MemoryEditFile) AllocateData() *MemoryEditFile {
	size := record.BytesToBlocks(f.desc.ContentSize)
	f.desc.Section.Offset = uint32(len(*f.blocks))
	f.desc.Section.Size = size
	*f.blocks = append(*f.blocks, make([]record.Block, size)...)
	return f
}

// WriteData copies and encrypts data into the section allocated by
// AllocateData or assigned by SetSection.
func (f *MemoryEditFile) WriteData(data []byte, key Key) error {
	start, end := f.desc.Section.Range()
	if end > uint32(len(*f.blocks)) {
		return pakerr.InvalidInputf("archive.MemoryEditFile.WriteData", "section not allocated")
	}
	live := (*f.blocks)[start:end]

	buf := make([]byte, len(live)*record.BlockSize)
	copy(buf, data)
	tmp := record.BlocksFromBytes(buf)

	if err := crypto.EncryptSection(tmp, &f.desc.Section, key); err != nil {
		return err
	}
	copy(live, tmp)
	return nil
}

// ZeroData initializes the section's content with zeroes.
func (f *MemoryEditFile) ZeroData(key Key) error {
	start, end := f.desc.Section.Range()
	if end > uint32(len(*f.blocks)) {
		return pakerr.InvalidInputf("archive.MemoryEditFile.ZeroData", "section not allocated")
	}
	live := (*f.blocks)[start:end]
	tmp := make([]record.Block, len(live))

	if err := crypto.EncryptSection(tmp, &f.desc.Section, key); err != nil {
		return err
	}
	copy(live, tmp)
	return nil
}

// ReencryptData decrypts the section under oldKey and re-encrypts it under
// key.
//
// If the section fails to authenticate under oldKey, the ciphertext is
// left completely unchanged and an error is returned: this preserves
// evidence of tampering rather than silently scrambling data nobody could
// read anyway.
func (f *MemoryEditFile) ReencryptData(oldKey, key Key) error {
	start, end := f.desc.Section.Range()
	if end > uint32(len(*f.blocks)) {
		return pakerr.InvalidInputf("archive.MemoryEditFile.ReencryptData", "section not allocated")
	}
	live := (*f.blocks)[start:end]
	tmp := append([]record.Block(nil), live...)

	if !crypto.DecryptSection(tmp, f.desc.Section, oldKey) {
		return pakerr.InvalidDataf("archive.MemoryEditFile.ReencryptData", "MAC verification failed under the old key")
	}
	if err := crypto.EncryptSection(tmp, &f.desc.Section, key); err != nil {
		return err
	}
	copy(live, tmp)
	return nil
}
