// Package record defines the fixed-size binary records that make up a PAK
// archive: blocks, sections, headers and descriptors.
//
// Every record that is converted to and from blocks (InfoHeader, Header,
// Descriptor) has a size that is an exact multiple of BlockSize; Section
// and Name are 40 bytes and only appear embedded in those. Go has no equivalent of a C repr(C) transmute, so each record
// encodes and decodes its fields explicitly, byte by byte, rather than
// reinterpreting memory. The field layout mirrors the original archive
// format exactly: no implicit padding is ever introduced.
package record

import "encoding/binary"

// BlockSize is the size in bytes of the smallest addressable unit of a PAK
// archive.
const BlockSize = 16

// Block is the smallest addressable unit of a PAK archive: two 64-bit words.
type Block [2]uint64

// Bytes encodes a block as 16 little-endian bytes.
func (b Block) Bytes() [BlockSize]byte {
	var buf [BlockSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], b[0])
	binary.LittleEndian.PutUint64(buf[8:16], b[1])
	return buf
}

// BlockFromBytes decodes a block from its first 16 bytes of buf.
func BlockFromBytes(buf []byte) Block {
	return Block{
		binary.LittleEndian.Uint64(buf[0:8]),
		binary.LittleEndian.Uint64(buf[8:16]),
	}
}

// BlocksToBytes flattens a slice of blocks into its raw byte representation.
func BlocksToBytes(blocks []Block) []byte {
	buf := make([]byte, len(blocks)*BlockSize)
	for i, b := range blocks {
		bb := b.Bytes()
		copy(buf[i*BlockSize:], bb[:])
	}
	return buf
}

// BlocksFromBytes splits buf into blocks. len(buf) must be a multiple of
// BlockSize.
func BlocksFromBytes(buf []byte) []Block {
	n := len(buf) / BlockSize
	blocks := make([]Block, n)
	for i := 0; i < n; i++ {
		blocks[i] = BlockFromBytes(buf[i*BlockSize:])
	}
	return blocks
}

// BytesToBlocks rounds up the byte size of a payload to a whole number of
// blocks.
func BytesToBlocks(byteSize uint32) uint32 {
	if byteSize == 0 {
		return 0
	}
	return (byteSize-1)/BlockSize + 1
}

//----------------------------------------------------------------

// SectionSize is the encoded byte size of a Section.
const SectionSize = 4 + 4 + BlockSize + BlockSize

// Section locates and authenticates a span of blocks within a PAK archive.
//
// Sections are never block-aligned on their own (SectionSize is 40, not a
// multiple of 16); they only ever appear embedded in a block-sized parent
// record such as InfoHeader or Descriptor.
type Section struct {
	// Offset in blocks to the start of the section.
	Offset uint32
	// Size in blocks of the section.
	Size uint32
	// Nonce is the cryptographic nonce used for this section.
	Nonce Block
	// Mac is the cryptographic MAC authenticating this section.
	Mac Block
}

// Range returns the half-open [Offset, Offset+Size) block range, computed
// with wraparound the same way the archive format defines it.
func (s Section) Range() (start, end uint32) {
	return s.Offset, s.Offset + s.Size
}

func (s Section) putBytes(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], s.Offset)
	binary.LittleEndian.PutUint32(buf[4:8], s.Size)
	nonce := s.Nonce.Bytes()
	copy(buf[8:24], nonce[:])
	mac := s.Mac.Bytes()
	copy(buf[24:40], mac[:])
}

func sectionFromBytes(buf []byte) Section {
	return Section{
		Offset: binary.LittleEndian.Uint32(buf[0:4]),
		Size:   binary.LittleEndian.Uint32(buf[4:8]),
		Nonce:  BlockFromBytes(buf[8:24]),
		Mac:    BlockFromBytes(buf[24:40]),
	}
}

//----------------------------------------------------------------

// InfoHeaderBlocksLen is the size of an InfoHeader in blocks.
const InfoHeaderBlocksLen = 3

// infoHeaderSize is the encoded byte size of an InfoHeader: 4 + 4 + 40 = 48.
const infoHeaderSize = 4 + 4 + SectionSize

// version is the file format magic: the ASCII bytes "PAK1" read as a
// native-endian u32. The archive format is endian-sensitive by design: a PAK
// file written on a big-endian host will fail the version check when opened
// on a little-endian host, and vice versa.
var version = binary.NativeEndian.Uint32([]byte("PAK1"))

// InfoHeader carries the format version and the location of the directory.
type InfoHeader struct {
	// Version should equal Version() for this build.
	Version uint32
	unused  uint32
	// Directory locates the archive's directory section.
	//
	// Directory.Size counts Descriptor records, not blocks.
	Directory Section
}

// Bytes encodes the InfoHeader to its 48-byte representation.
func (h InfoHeader) Bytes() []byte {
	buf := make([]byte, infoHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Version)
	binary.LittleEndian.PutUint32(buf[4:8], h.unused)
	h.Directory.putBytes(buf[8:48])
	return buf
}

// InfoHeaderFromBytes decodes an InfoHeader from its 48-byte representation.
func InfoHeaderFromBytes(buf []byte) InfoHeader {
	return InfoHeader{
		Version:   binary.LittleEndian.Uint32(buf[0:4]),
		unused:    binary.LittleEndian.Uint32(buf[4:8]),
		Directory: sectionFromBytes(buf[8:48]),
	}
}

// Blocks encodes the InfoHeader as InfoHeaderBlocksLen blocks.
func (h InfoHeader) Blocks() []Block {
	return BlocksFromBytes(h.Bytes())
}

// InfoHeaderFromBlocks decodes an InfoHeader from InfoHeaderBlocksLen blocks.
func InfoHeaderFromBlocks(blocks []Block) InfoHeader {
	return InfoHeaderFromBytes(BlocksToBytes(blocks))
}

func init() {
	if infoHeaderSize%BlockSize != 0 {
		panic("record: InfoHeader size is not a multiple of BlockSize")
	}
}

//----------------------------------------------------------------

// HeaderBlocksLen is the size of a Header in blocks.
const HeaderBlocksLen = 5

// headerSize is the encoded byte size of a Header: 16 + 16 + 48 = 80.
const headerSize = BlockSize + BlockSize + infoHeaderSize

// Header is the first record of every PAK archive. It carries the nonce and
// MAC needed to decrypt the InfoHeader embedded within it.
type Header struct {
	// Nonce used to encrypt Info.
	Nonce Block
	// Mac authenticating Info.
	Mac Block
	// Info carries the version and directory location.
	Info InfoHeader
}

// HeaderSection describes where the InfoHeader lives within the blocks of a
// Header: the trailing InfoHeaderBlocksLen blocks of the header's
// HeaderBlocksLen total. Its Nonce and Mac fields are always taken from the
// enclosing Header, never from this constant.
var HeaderSection = Section{
	Offset: HeaderBlocksLen - InfoHeaderBlocksLen,
	Size:   InfoHeaderBlocksLen,
}

// Bytes encodes the Header to its 80-byte representation.
func (h Header) Bytes() []byte {
	buf := make([]byte, headerSize)
	nonce := h.Nonce.Bytes()
	copy(buf[0:16], nonce[:])
	mac := h.Mac.Bytes()
	copy(buf[16:32], mac[:])
	copy(buf[32:80], h.Info.Bytes())
	return buf
}

// HeaderFromBytes decodes a Header from its 80-byte representation.
func HeaderFromBytes(buf []byte) Header {
	return Header{
		Nonce: BlockFromBytes(buf[0:16]),
		Mac:   BlockFromBytes(buf[16:32]),
		Info:  InfoHeaderFromBytes(buf[32:80]),
	}
}

// Blocks encodes the Header as HeaderBlocksLen blocks.
func (h Header) Blocks() []Block {
	return BlocksFromBytes(h.Bytes())
}

// HeaderFromBlocks decodes a Header from HeaderBlocksLen blocks.
func HeaderFromBlocks(blocks []Block) Header {
	return HeaderFromBytes(BlocksToBytes(blocks))
}

func init() {
	if headerSize%BlockSize != 0 {
		panic("record: Header size is not a multiple of BlockSize")
	}
}

//----------------------------------------------------------------

// NameBufLen is the fixed size in bytes of a descriptor's name buffer.
const NameBufLen = 40

// Name is a fixed-size descriptor name. The length of the stored name is
// kept in the last byte of the buffer, leaving NameBufLen-1 usable bytes.
type Name struct {
	Buffer [NameBufLen]byte
}

// NameFrom builds a Name from a byte slice, truncating names that are too
// long to fit.
func NameFrom(name []byte) Name {
	var n Name
	n.Set(name)
	return n
}

// Get returns the stored name.
func (n *Name) Get() []byte {
	length := int(n.Buffer[NameBufLen-1])
	if length > NameBufLen-1 {
		length = NameBufLen - 1
	}
	return n.Buffer[:length]
}

// Set replaces the stored name, truncating it to fit the buffer if
// necessary.
func (n *Name) Set(name []byte) {
	n.Buffer = [NameBufLen]byte{}
	length := len(name)
	if length > NameBufLen-1 {
		length = NameBufLen - 1
	}
	n.Buffer[NameBufLen-1] = byte(length)
	copy(n.Buffer[:length], name[:length])
}

func (n Name) String() string {
	return string(n.Get())
}

//----------------------------------------------------------------

// DescriptorBlocksLen is the size of a Descriptor in blocks.
const DescriptorBlocksLen = 8

// descriptorSize is the encoded byte size of a Descriptor: 4+4+40+40+40 = 128.
const descriptorSize = 4 + 4 + SectionSize + NameBufLen + SectionSize

// Descriptor describes a single file or directory entry in a PAK archive's
// directory.
//
// A Descriptor with ContentType zero is a directory descriptor: its
// ContentSize counts the number of descendant descriptors that immediately
// and transitively follow it in the flattened, pre-order directory listing.
// A Descriptor with non-zero ContentType is a file descriptor: its
// ContentSize is the size of the file's content in bytes, and its Section
// locates the encrypted content.
type Descriptor struct {
	ContentType uint32
	ContentSize uint32
	Section     Section
	Name        Name
	// Meta is reserved for future use and is not currently interpreted.
	Meta Section
}

// NewDescriptor builds a descriptor with the given name, content type and
// size.
func NewDescriptor(name []byte, contentType, contentSize uint32) Descriptor {
	return Descriptor{
		ContentType: contentType,
		ContentSize: contentSize,
		Name:        NameFrom(name),
	}
}

// FileDescriptor builds an empty file descriptor.
func FileDescriptor(name []byte) Descriptor {
	return NewDescriptor(name, 1, 0)
}

// DirDescriptor builds a directory descriptor with the given descendant
// count.
func DirDescriptor(name []byte, len uint32) Descriptor {
	return NewDescriptor(name, 0, len)
}

// IsDir reports whether the descriptor is a directory descriptor.
func (d Descriptor) IsDir() bool { return d.ContentType == 0 }

// IsFile reports whether the descriptor is a file descriptor.
func (d Descriptor) IsFile() bool { return d.ContentType != 0 }

// Bytes encodes the Descriptor to its 128-byte representation.
func (d Descriptor) Bytes() []byte {
	buf := make([]byte, descriptorSize)
	binary.LittleEndian.PutUint32(buf[0:4], d.ContentType)
	binary.LittleEndian.PutUint32(buf[4:8], d.ContentSize)
	d.Section.putBytes(buf[8:48])
	copy(buf[48:88], d.Name.Buffer[:])
	d.Meta.putBytes(buf[88:128])
	return buf
}

// DescriptorFromBytes decodes a Descriptor from its 128-byte representation.
func DescriptorFromBytes(buf []byte) Descriptor {
	var d Descriptor
	d.ContentType = binary.LittleEndian.Uint32(buf[0:4])
	d.ContentSize = binary.LittleEndian.Uint32(buf[4:8])
	d.Section = sectionFromBytes(buf[8:48])
	copy(d.Name.Buffer[:], buf[48:88])
	d.Meta = sectionFromBytes(buf[88:128])
	return d
}

// Blocks encodes the Descriptor as DescriptorBlocksLen blocks.
func (d Descriptor) Blocks() []Block {
	return BlocksFromBytes(d.Bytes())
}

// DescriptorFromBlocks decodes a Descriptor from DescriptorBlocksLen blocks.
func DescriptorFromBlocks(blocks []Block) Descriptor {
	return DescriptorFromBytes(BlocksToBytes(blocks))
}

func init() {
	if descriptorSize%BlockSize != 0 {
		panic("record: Descriptor size is not a multiple of BlockSize")
	}
}

// Version returns the file format's magic version value.
func Version() uint32 { return version }
