package record

import (
	"bytes"
	"testing"
)

func TestSizes(t *testing.T) {
	cases := []struct {
		name      string
		size      int
		blocksLen int
	}{
		{"InfoHeader", infoHeaderSize, InfoHeaderBlocksLen},
		{"Header", headerSize, HeaderBlocksLen},
		{"Descriptor", descriptorSize, DescriptorBlocksLen},
	}
	for _, c := range cases {
		if c.size%BlockSize != 0 {
			t.Errorf("%s size %d is not a multiple of BlockSize", c.name, c.size)
		}
		if c.size/BlockSize != c.blocksLen {
			t.Errorf("%s size %d does not match blocksLen %d", c.name, c.size, c.blocksLen)
		}
	}
}

func TestBlockRoundTrip(t *testing.T) {
	b := Block{0x0102030405060708, 0x1112131415161718}
	buf := b.Bytes()
	got := BlockFromBytes(buf[:])
	if got != b {
		t.Fatalf("BlockFromBytes(Bytes()) = %#x, want %#x", got, b)
	}
}

func TestHeaderSectionConstant(t *testing.T) {
	if HeaderSection.Offset != 2 || HeaderSection.Size != 3 {
		t.Fatalf("HeaderSection = %+v, want offset=2 size=3", HeaderSection)
	}
}

func TestInfoHeaderRoundTrip(t *testing.T) {
	h := InfoHeader{
		Version: version,
		Directory: Section{
			Offset: 5,
			Size:   12,
			Nonce:  Block{1, 2},
			Mac:    Block{3, 4},
		},
	}
	blocks := h.Blocks()
	if len(blocks) != InfoHeaderBlocksLen {
		t.Fatalf("len(Blocks()) = %d, want %d", len(blocks), InfoHeaderBlocksLen)
	}
	got := InfoHeaderFromBlocks(blocks)
	if got != h {
		t.Fatalf("InfoHeaderFromBlocks(Blocks()) = %+v, want %+v", got, h)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Nonce: Block{0xaa, 0xbb},
		Mac:   Block{0xcc, 0xdd},
		Info: InfoHeader{
			Version: version,
			Directory: Section{
				Offset: 7,
				Size:   1,
			},
		},
	}
	blocks := h.Blocks()
	if len(blocks) != HeaderBlocksLen {
		t.Fatalf("len(Blocks()) = %d, want %d", len(blocks), HeaderBlocksLen)
	}
	got := HeaderFromBlocks(blocks)
	if got != h {
		t.Fatalf("HeaderFromBlocks(Blocks()) = %+v, want %+v", got, h)
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	d := NewDescriptor([]byte("foo/example.txt"), 1, 123)
	d.Section = Section{Offset: 9, Size: 8, Nonce: Block{1, 1}, Mac: Block{2, 2}}

	blocks := d.Blocks()
	if len(blocks) != DescriptorBlocksLen {
		t.Fatalf("len(Blocks()) = %d, want %d", len(blocks), DescriptorBlocksLen)
	}
	got := DescriptorFromBlocks(blocks)
	if got != d {
		t.Fatalf("DescriptorFromBlocks(Blocks()) = %+v, want %+v", got, d)
	}
	if !bytes.Equal(got.Name.Get(), []byte("foo/example.txt")) {
		t.Fatalf("Name.Get() = %q", got.Name.Get())
	}
	if !got.IsFile() || got.IsDir() {
		t.Fatalf("expected file descriptor")
	}
}

func TestDescriptorTypes(t *testing.T) {
	f := FileDescriptor([]byte("a"))
	if !f.IsFile() || f.IsDir() {
		t.Fatalf("FileDescriptor should be a file")
	}
	d := DirDescriptor([]byte("b"), 3)
	if !d.IsDir() || d.IsFile() {
		t.Fatalf("DirDescriptor should be a directory")
	}
	if d.ContentSize != 3 {
		t.Fatalf("DirDescriptor content size = %d, want 3", d.ContentSize)
	}
}

func TestNameTruncation(t *testing.T) {
	long := bytes.Repeat([]byte("x"), NameBufLen+10)
	n := NameFrom(long)
	if len(n.Get()) != NameBufLen-1 {
		t.Fatalf("len(Get()) = %d, want %d", len(n.Get()), NameBufLen-1)
	}
}

func TestBytesToBlocks(t *testing.T) {
	cases := []struct {
		size uint32
		want uint32
	}{
		{0, 0},
		{1, 1},
		{16, 1},
		{17, 2},
		{32, 2},
	}
	for _, c := range cases {
		if got := BytesToBlocks(c.size); got != c.want {
			t.Errorf("BytesToBlocks(%d) = %d, want %d", c.size, got, c.want)
		}
	}
}
