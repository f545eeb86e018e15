package archive

import (
	"io"
	"os"

	"github.com/CasualX/pak-rs/pkg/core/crypto"
	"github.com/CasualX/pak-rs/pkg/core/directory"
	"github.com/CasualX/pak-rs/pkg/core/record"
	"github.com/CasualX/pak-rs/pkg/pakerr"
)

func readHeaderFrom(f *os.File, key Key) (record.InfoHeader, *directory.Directory, error) {
	var hdrBuf [record.HeaderBlocksLen * record.BlockSize]byte
	if _, err := io.ReadFull(f, hdrBuf[:]); err != nil {
		return record.InfoHeader{}, nil, pakerr.IoErrorf("archive.readHeaderFrom", err, "reading header")
	}
	header := record.HeaderFromBytes(hdrBuf[:])
	if !crypto.DecryptHeader(&header, key) {
		return record.InfoHeader{}, nil, pakerr.InvalidDataf("archive.readHeaderFrom", "header MAC or version check failed")
	}

	dirSize := header.Info.Directory.Size
	if _, err := f.Seek(int64(header.Info.Directory.Offset)*record.BlockSize, io.SeekStart); err != nil {
		return record.InfoHeader{}, nil, pakerr.IoErrorf("archive.readHeaderFrom", err, "seeking to directory")
	}
	dirBuf := make([]byte, int(dirSize)*record.DescriptorBlocksLen*record.BlockSize)
	if _, err := io.ReadFull(f, dirBuf); err != nil {
		return record.InfoHeader{}, nil, pakerr.IoErrorf("archive.readHeaderFrom", err, "reading directory")
	}
	dirBlocks := record.BlocksFromBytes(dirBuf)
	if !crypto.DecryptSection(dirBlocks, header.Info.Directory, key) {
		return record.InfoHeader{}, nil, pakerr.InvalidDataf("archive.readHeaderFrom", "directory MAC verification failed")
	}

	descs := make([]record.Descriptor, dirSize)
	for i := range descs {
		off := i * record.DescriptorBlocksLen
		descs[i] = record.DescriptorFromBlocks(dirBlocks[off : off+record.DescriptorBlocksLen])
	}
	return header.Info, directory.FromDescriptors(descs), nil
}

func readSectionFrom(f *os.File, section record.Section, key Key) ([]record.Block, error) {
	if _, err := f.Seek(int64(section.Offset)*record.BlockSize, io.SeekStart); err != nil {
		return nil, pakerr.IoErrorf("archive.readSectionFrom", err, "seeking to section")
	}
	buf := make([]byte, int(section.Size)*record.BlockSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, pakerr.IoErrorf("archive.readSectionFrom", err, "reading section")
	}
	blocks := record.BlocksFromBytes(buf)
	if !crypto.DecryptSection(blocks, section, key) {
		return nil, pakerr.InvalidDataf("archive.readSectionFrom", "MAC verification failed")
	}
	return blocks, nil
}

func readDataFrom(f *os.File, desc record.Descriptor, key Key) ([]byte, error) {
	if !desc.IsFile() {
		return nil, pakerr.InvalidInputf("archive.readDataFrom", "descriptor is not a file")
	}
	blocks, err := readSectionFrom(f, desc.Section, key)
	if err != nil {
		return nil, err
	}
	data := record.BlocksToBytes(blocks)
	n := len(data)
	if int(desc.ContentSize) < n {
		n = int(desc.ContentSize)
	}
	return data[:n], nil
}

func readIntoFrom(f *os.File, desc record.Descriptor, key Key, byteOffset int, dest []byte) error {
	if !desc.IsFile() {
		return pakerr.InvalidInputf("archive.readIntoFrom", "descriptor is not a file")
	}
	blocks, err := readSectionFrom(f, desc.Section, key)
	if err != nil {
		return err
	}
	data := record.BlocksToBytes(blocks)
	if byteOffset < 0 || byteOffset+len(dest) > len(data) {
		return pakerr.InvalidInputf("archive.readIntoFrom", "range [%d, %d) out of bounds (len=%d)", byteOffset, byteOffset+len(dest), len(data))
	}
	copy(dest, data[byteOffset:byteOffset+len(dest)])
	return nil
}

func blankHeaderBytes(key Key) ([]byte, error) {
	header := record.Header{
		Info: record.InfoHeader{
			Directory: record.Section{Offset: record.HeaderBlocksLen, Size: 0},
		},
	}
	empty := []record.Block{}
	if err := crypto.EncryptSection(empty, &header.Info.Directory, key); err != nil {
		return nil, err
	}
	if err := crypto.EncryptHeader(&header, key); err != nil {
		return nil, err
	}
	return record.BlocksToBytes(header.Blocks()), nil
}

//----------------------------------------------------------------

// FileReader reads a PAK archive directly from disk, decrypting sections on
// demand instead of holding the whole archive in memory.
type FileReader struct {
	file *os.File
	dir  *directory.Directory
	info record.InfoHeader
}

// OpenFileReader opens an existing archive for reading.
func OpenFileReader(path string, key Key) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pakerr.IoErrorf("archive.OpenFileReader", err, "opening %s", path)
	}
	info, dir, err := readHeaderFrom(f, key)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileReader{file: f, dir: dir, info: info}, nil
}

// Close releases the underlying file handle.
func (r *FileReader) Close() error { return r.file.Close() }

// Directory returns the archive's directory.
func (r *FileReader) Directory() *directory.Directory { return r.dir }

// Info returns the archive's info header.
func (r *FileReader) Info() record.InfoHeader { return r.info }

// HighMark returns the block index just past the last block of file data.
func (r *FileReader) HighMark() uint32 { return r.info.Directory.Offset }

// ReadSection decrypts and authenticates an arbitrary section of the
// archive. key need not be the key the archive was opened with.
func (r *FileReader) ReadSection(section record.Section, key Key) ([]record.Block, error) {
	return readSectionFrom(r.file, section, key)
}

// ReadData decrypts the full content of a file descriptor.
func (r *FileReader) ReadData(desc record.Descriptor, key Key) ([]byte, error) {
	return readDataFrom(r.file, desc, key)
}

// ReadInto decrypts part of a file descriptor's content into dest.
func (r *FileReader) ReadInto(desc record.Descriptor, key Key, byteOffset int, dest []byte) error {
	return readIntoFrom(r.file, desc, key, byteOffset, dest)
}

//----------------------------------------------------------------

// FileEditor edits a PAK archive directly on disk.
//
// # Consistency guarantees
//
// Finish makes a reasonable attempt to defend against data loss: the
// directory is appended and synced to disk before the header is
// overwritten, so a crash between those two writes leaves the previous,
// still-valid archive in place. If strict consistency matters more than
// streaming large archives, prefer MemoryEditor and write a fresh copy.
type FileEditor struct {
	file     *os.File
	dir      *directory.Directory
	highMark uint32
}

// CreateNewFile creates a new PAK archive, failing if a file already
// exists at path.
func CreateNewFile(path string, key Key) (*FileEditor, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, pakerr.IoErrorf("archive.CreateNewFile", err, "creating %s", path)
	}
	header, err := blankHeaderBytes(key)
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Write(header); err != nil {
		f.Close()
		return nil, pakerr.IoErrorf("archive.CreateNewFile", err, "writing initial header")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, pakerr.IoErrorf("archive.CreateNewFile", err, "syncing initial header")
	}
	return &FileEditor{file: f, dir: directory.New(), highMark: record.HeaderBlocksLen}, nil
}

// OpenFile opens an existing PAK archive for editing.
func OpenFile(path string, key Key) (*FileEditor, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, pakerr.IoErrorf("archive.OpenFile", err, "opening %s", path)
	}
	info, dir, err := readHeaderFrom(f, key)
	if err != nil {
		f.Close()
		return nil, err
	}
	// The high mark starts right after the end of the directory, so that a
	// crash before Finish completes leaves the existing directory intact.
	highMark := info.Directory.Offset + info.Directory.Size*highMarkMultiplier
	return &FileEditor{file: f, dir: dir, highMark: highMark}, nil
}

// CreateEmptyFile creates an empty PAK archive, overwriting any existing
// file at path.
func CreateEmptyFile(path string, key Key) error {
	header, err := blankHeaderBytes(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, header, 0o644); err != nil {
		return pakerr.IoErrorf("archive.CreateEmptyFile", err, "writing %s", path)
	}
	return nil
}

// OpenFileReadOnly opens an existing PAK archive with edit APIs available,
// but intended to be used read-only.
func OpenFileReadOnly(path string, key Key) (*FileEditor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pakerr.IoErrorf("archive.OpenFileReadOnly", err, "opening %s", path)
	}
	info, dir, err := readHeaderFrom(f, key)
	if err != nil {
		f.Close()
		return nil, err
	}
	highMark := info.Directory.Offset + info.Directory.Size*highMarkMultiplier
	if highMark < record.HeaderBlocksLen {
		highMark = record.HeaderBlocksLen
	}
	return &FileEditor{file: f, dir: dir, highMark: highMark}, nil
}

// Close releases the underlying file handle without finishing any pending
// edits.
func (e *FileEditor) Close() error { return e.file.Close() }

// Directory returns the archive's directory for inspection and editing.
func (e *FileEditor) Directory() *directory.Directory { return e.dir }

// HighMark returns the block index just past the last block of file data.
func (e *FileEditor) HighMark() uint32 { return e.highMark }

// EditFile creates a file descriptor at path (any missing parent
// directories are created automatically) and returns a handle for
// populating its content.
func (e *FileEditor) EditFile(path []byte) *FileEditFile {
	desc := e.dir.CreateDescriptor(path)
	return &FileEditFile{file: e.file, desc: desc, highMark: &e.highMark}
}

// CreateFile creates a file at path with content_type 1, allocating a fresh
// section and writing the encrypted data into it.
func (e *FileEditor) CreateFile(path []byte, data []byte, key Key) (*record.Descriptor, error) {
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
func (e *FileEditor) ReadSection(section record.Section, key Key) ([]record.Block, error) {
	return readSectionFrom(e.file, section, key)
}

// ReadData decrypts the full content of a file descriptor.
func (e *FileEditor) ReadData(desc record.Descriptor, key Key) ([]byte, error) {
	return readDataFrom(e.file, desc, key)
}

// ReadInto decrypts part of a file descriptor's content into dest.
func (e *FileEditor) ReadInto(desc record.Descriptor, key Key, byteOffset int, dest []byte) error {
	return readIntoFrom(e.file, desc, key, byteOffset, dest)
}

// Finish encrypts and appends the directory to the archive, syncs it to
// disk, and only then overwrites the header to point at the new directory.
//
// Dropping the FileEditor without calling Finish discards every directory
// change made since it was created or opened; section data already
// rewritten in place (see FileEditFile.ReencryptData) stays on disk.
func (e *FileEditor) Finish(key Key) error {
	descs := e.dir.Descriptors()
	dirSize := uint32(len(descs))

	dirBlocks := make([]record.Block, 0, int(dirSize)*record.DescriptorBlocksLen)
	for _, d := range descs {
		dirBlocks = append(dirBlocks, d.Blocks()...)
	}

	header := record.Header{
		Info: record.InfoHeader{
			Directory: record.Section{
				Offset: e.highMark,
				Size:   dirSize,
			},
		},
	}

	if err := crypto.EncryptSection(dirBlocks, &header.Info.Directory, key); err != nil {
		return err
	}
	if err := crypto.EncryptHeader(&header, key); err != nil {
		return err
	}

	dirOffset := int64(e.highMark) * record.BlockSize
	if _, err := e.file.Seek(dirOffset, io.SeekStart); err != nil {
		return pakerr.IoErrorf("archive.FileEditor.Finish", err, "seeking to directory offset")
	}
	if _, err := e.file.Write(record.BlocksToBytes(dirBlocks)); err != nil {
		return pakerr.IoErrorf("archive.FileEditor.Finish", err, "writing directory")
	}

	// Sync before touching the header: if the process crashes or loses
	// power between these two writes, the previous header still points at
	// the previous, still-intact directory.
	if err := e.file.Sync(); err != nil {
		return pakerr.IoErrorf("archive.FileEditor.Finish", err, "syncing directory")
	}

	if _, err := e.file.Seek(0, io.SeekStart); err != nil {
		return pakerr.IoErrorf("archive.FileEditor.Finish", err, "seeking to header")
	}
	if _, err := e.file.Write(record.BlocksToBytes(header.Blocks())); err != nil {
		return pakerr.IoErrorf("archive.FileEditor.Finish", err, "writing header")
	}
	return nil
}
