package directory

import (
	"io"

	"github.com/CasualX/pak-rs/pkg/core/record"
)

// Directory is an editable sequence of record.Descriptor values encoding a
// PAK archive's file hierarchy.
type Directory struct {
	desc []record.Descriptor
}

// New returns an empty Directory.
func New() *Directory {
	return &Directory{}
}

// FromDescriptors wraps an existing, already-flattened descriptor sequence.
func FromDescriptors(desc []record.Descriptor) *Directory {
	return &Directory{desc: desc}
}

// Descriptors returns the directory's flattened descriptor sequence.
func (d *Directory) Descriptors() []record.Descriptor { return d.desc }

// Len returns the number of descriptors in the directory.
func (d *Directory) Len() int { return len(d.desc) }

// IsEmpty reports whether the directory has no descriptors.
func (d *Directory) IsEmpty() bool { return len(d.desc) == 0 }

// FindDesc finds the descriptor at path, whether file or directory.
func (d *Directory) FindDesc(path []byte) (record.Descriptor, bool) {
	return FindDesc(d.desc, path)
}

// FindFile finds the file descriptor at path.
func (d *Directory) FindFile(path []byte) (record.Descriptor, bool) {
	desc, ok := FindDesc(d.desc, path)
	if !ok || !desc.IsFile() {
		return record.Descriptor{}, false
	}
	return desc, true
}

// GetChildren returns the child descriptors of the directory at path.
func (d *Directory) GetChildren(path []byte) ([]record.Descriptor, bool) {
	return FindDir(d.desc, path)
}

// Display renders the directory as a Unicode tree, rooted at ".".
func (d *Directory) Display() string {
	return FormatTree(".", d.desc, ArtUnicode)
}

// Fsck validates the directory's structure. highMark is the block index
// just past the last block a file section may reference.
func (d *Directory) Fsck(highMark uint32, log io.Writer) bool {
	return Fsck(d.desc, highMark, log)
}

// create is the internal entry point shared by the public Create* methods:
// it ensures path resolves to a descriptor (creating any missing parent
// directories) and returns its index.
func (d *Directory) create(path []byte) int {
	return Create(&d.desc, path)
}

// CreateLink creates a new entry at path pointing at fileDesc's content.
// Any missing parent directories are created automatically. Does nothing if
// fileDesc is not a file descriptor.
func (d *Directory) CreateLink(path []byte, fileDesc record.Descriptor) {
	if !fileDesc.IsFile() {
		return
	}
	i := d.create(path)
	d.desc[i].ContentSize = fileDesc.ContentSize
	d.desc[i].ContentType = fileDesc.ContentType
	d.desc[i].Section = fileDesc.Section
}

// CreateDir creates an empty directory descriptor at path, creating any
// missing parent directories automatically.
func (d *Directory) CreateDir(path []byte) {
	i := d.create(path)
	d.desc[i].ContentType = 0
	d.desc[i].ContentSize = 0
	d.desc[i].Section = record.Section{}
}

// CreateDescriptor creates (or returns the existing descriptor for) path
// and hands the caller a pointer to it to finish populating. Any missing
// parent directories are created automatically.
func (d *Directory) CreateDescriptor(path []byte) *record.Descriptor {
	i := d.create(path)
	return &d.desc[i]
}

// Remove removes the descriptor at path. Removing a directory flattens its
// direct children into its parent.
func (d *Directory) Remove(path []byte) (record.Descriptor, bool) {
	return Remove(&d.desc, path)
}

// MoveFile moves a file descriptor from srcPath to destPath.
//
// It reports false, leaving the directory unchanged, if srcPath does not
// resolve to a file descriptor (moving a directory descriptor this way
// would corrupt the flattened tree, since its descendant count would no
// longer reflect its new position).
func (d *Directory) MoveFile(srcPath, destPath []byte) bool {
	srcDesc, ok := FindDesc(d.desc, srcPath)
	if !ok || !srcDesc.IsFile() {
		return false
	}

	deleted, ok := Remove(&d.desc, srcPath)
	if !ok {
		return false
	}

	i := d.create(destPath)
	d.desc[i].ContentType = deleted.ContentType
	d.desc[i].ContentSize = deleted.ContentSize
	d.desc[i].Section = deleted.Section
	return true
}
