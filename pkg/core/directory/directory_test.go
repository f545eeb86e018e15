package directory

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/CasualX/pak-rs/pkg/core/record"
)

func TestNameEq(t *testing.T) {
	var desc record.Descriptor
	desc.Name.Set([]byte("test"))

	if tail, ok := NameEq(desc, []byte("test")); !ok || len(tail) != 0 {
		t.Fatalf("NameEq(test) = %q, %v", tail, ok)
	}
	if tail, ok := NameEq(desc, []byte("test/a/b")); !ok || string(tail) != "a/b" {
		t.Fatalf("NameEq(test/a/b) = %q, %v", tail, ok)
	}
	if _, ok := NameEq(desc, []byte("testing")); ok {
		t.Fatalf("NameEq(testing) should not match")
	}
	if _, ok := NameEq(desc, []byte("te")); ok {
		t.Fatalf("NameEq(te) should not match")
	}
}

func TestFindEmpty(t *testing.T) {
	if got := Find(nil, []byte("path")); len(got) != 0 {
		t.Fatalf("Find on empty directory = %v, want empty", got)
	}
}

func exampleFlatDir() []record.Descriptor {
	return []record.Descriptor{
		record.FileDescriptor([]byte("before")),
		record.DirDescriptor([]byte("a"), 3),
		record.DirDescriptor([]byte("b"), 2),
		record.DirDescriptor([]byte("c"), 1),
		record.FileDescriptor([]byte("file")),
	}
}

func TestFind(t *testing.T) {
	dir := exampleFlatDir()

	if got := Find(dir, []byte("before")); len(got) != 1 || !bytes.Equal(got[0].Name.Get(), []byte("before")) {
		t.Fatalf("Find(before) = %v", got)
	}
	if got := Find(dir, []byte("a")); len(got) != 4 {
		t.Fatalf("Find(a) length = %d, want 4", len(got))
	}
	if got := Find(dir[2:], []byte("b")); len(got) != 3 {
		t.Fatalf("Find(b) on subslice length = %d, want 3", len(got))
	}
	if got := Find(dir, []byte("file")); len(got) != 0 {
		t.Fatalf("Find(file) at top level should not match a nested file: got %v", got)
	}
	if got := Find(dir[4:], []byte("file")); len(got) != 1 {
		t.Fatalf("Find(file) on subslice length = %d, want 1", len(got))
	}

	desc, ok := FindDesc(dir, []byte(`a\b\c\file`))
	if !ok || !bytes.Equal(desc.Name.Get(), []byte("file")) {
		t.Fatalf("FindDesc(a\\b\\c\\file) = %+v, %v", desc, ok)
	}
}

func TestCreateSimple(t *testing.T) {
	path := []byte("stuff.txt")
	var dir []record.Descriptor
	i := Create(&dir, path)

	if len(dir) != 1 {
		t.Fatalf("len(dir) = %d, want 1", len(dir))
	}
	file := dir[i]
	if file.ContentType != 0 || file.ContentSize != 0 {
		t.Fatalf("created descriptor = %+v, want zero content type/size", file)
	}
	if file.Section != (record.Section{}) {
		t.Fatalf("created descriptor has non-default section: %+v", file.Section)
	}
	if !bytes.Equal(file.Name.Get(), path) {
		t.Fatalf("Name = %q, want %q", file.Name.Get(), path)
	}
}

func TestCreateSimpleDirs(t *testing.T) {
	var dir []record.Descriptor
	Create(&dir, []byte("A/FOO"))
	Create(&dir, []byte("A/BAR"))

	want := []record.Descriptor{
		record.DirDescriptor([]byte("A"), 2),
		record.DirDescriptor([]byte("FOO"), 0),
		record.DirDescriptor([]byte("BAR"), 0),
	}
	if len(dir) != len(want) {
		t.Fatalf("len(dir) = %d, want %d", len(dir), len(want))
	}
	for i := range want {
		if dir[i] != want[i] {
			t.Fatalf("dir[%d] = %+v, want %+v", i, dir[i], want[i])
		}
	}
}

func TestCreateExistingReturnsSameIndex(t *testing.T) {
	var dir []record.Descriptor
	i1 := Create(&dir, []byte("A/B/C"))
	before := len(dir)
	i2 := Create(&dir, []byte("A/B/C"))

	if i1 != i2 {
		t.Fatalf("Create on existing path returned different index: %d != %d", i1, i2)
	}
	if len(dir) != before {
		t.Fatalf("Create on existing path changed directory length: %d != %d", len(dir), before)
	}
}

func TestRemoveFlattensChildren(t *testing.T) {
	var dir []record.Descriptor
	Create(&dir, []byte("A/B/file1"))
	Create(&dir, []byte("A/B/file2"))

	removed, ok := Remove(&dir, []byte("A/B"))
	if !ok || !removed.IsDir() {
		t.Fatalf("Remove(A/B) = %+v, %v", removed, ok)
	}

	// The two files should now be direct children of A.
	children, ok := FindDir(dir, []byte("A"))
	if !ok {
		t.Fatalf("FindDir(A) failed after removing B")
	}
	if len(children) != 2 {
		t.Fatalf("len(children) = %d, want 2", len(children))
	}
	if _, ok := FindDesc(dir, []byte("A/file1")); !ok {
		t.Fatalf("A/file1 should exist after flattening")
	}
	if _, ok := FindDesc(dir, []byte("A/file2")); !ok {
		t.Fatalf("A/file2 should exist after flattening")
	}
}

func TestRemoveMissing(t *testing.T) {
	var dir []record.Descriptor
	Create(&dir, []byte("A/B"))
	if _, ok := Remove(&dir, []byte("A/nope")); ok {
		t.Fatalf("Remove of a missing path should report false")
	}
}

func TestMoveFileRefusesDirectory(t *testing.T) {
	d := New()
	d.CreateDir([]byte("A"))
	if d.MoveFile([]byte("A"), []byte("B")) {
		t.Fatalf("MoveFile should refuse to move a directory descriptor")
	}
}

func TestMoveFile(t *testing.T) {
	d := New()
	desc := d.CreateDescriptor([]byte("A/file"))
	desc.ContentType = 1
	desc.ContentSize = 42

	if !d.MoveFile([]byte("A/file"), []byte("B/file")) {
		t.Fatalf("MoveFile should succeed")
	}
	if _, ok := d.FindDesc([]byte("A/file")); ok {
		t.Fatalf("source path should no longer exist")
	}
	moved, ok := d.FindFile([]byte("B/file"))
	if !ok || moved.ContentSize != 42 {
		t.Fatalf("moved descriptor = %+v, %v", moved, ok)
	}
}

func TestCreateLinkRefusesNonFile(t *testing.T) {
	d := New()
	dirDesc, _ := d.FindDesc(nil)
	d.CreateLink([]byte("link"), dirDesc)
	if _, ok := d.FindDesc([]byte("link")); ok {
		t.Fatalf("CreateLink should not create an entry for a non-file descriptor")
	}
}

func TestFsckDetectsOutOfBoundsSection(t *testing.T) {
	d := New()
	desc := d.CreateDescriptor([]byte("bad"))
	desc.ContentType = 1
	desc.Section = record.Section{Offset: 0, Size: 1}

	var log strings.Builder
	if d.Fsck(100, &log) {
		t.Fatalf("Fsck should reject a file section overlapping the header")
	}
	if log.Len() == 0 {
		t.Fatalf("Fsck should log the violation")
	}
}

func TestFsckAcceptsValidFile(t *testing.T) {
	d := New()
	desc := d.CreateDescriptor([]byte("ok"))
	desc.ContentType = 1
	desc.ContentSize = 5
	desc.Section = record.Section{Offset: record.HeaderBlocksLen, Size: 1}

	var log strings.Builder
	if !d.Fsck(record.HeaderBlocksLen+1, &log) {
		t.Fatalf("Fsck unexpectedly failed: %s", log.String())
	}
}

func TestFormatTree(t *testing.T) {
	dir := []record.Descriptor{
		record.DirDescriptor([]byte("Foo"), 2),
		record.FileDescriptor([]byte("Bar")),
		record.FileDescriptor([]byte("Baz")),
		record.DirDescriptor([]byte("Sub"), 1),
		record.DirDescriptor([]byte("Dir"), 0),
		record.FileDescriptor([]byte("File")),
	}
	want := "./\n" +
		"+- Foo/\n" +
		"|  |  Bar\n" +
		"|  `  Baz\n" +
		"|  \n" +
		"+- Sub/\n" +
		"|  `- Dir/\n" +
		"|  \n" +
		"`  File\n"
	got := FormatTree(".", dir, ArtASCII)
	if got != want {
		t.Fatalf("FormatTree() =\n%q\nwant\n%q", got, want)
	}
}

func TestNextSiblingSkipsChildren(t *testing.T) {
	// a/ (a1, a2), b/ (b1), c — two top-level directories each owning
	// children that must be skipped, plus a trailing top-level file.
	dir := []record.Descriptor{
		record.DirDescriptor([]byte("a"), 2),
		record.FileDescriptor([]byte("a1")),
		record.FileDescriptor([]byte("a2")),
		record.DirDescriptor([]byte("b"), 1),
		record.FileDescriptor([]byte("b1")),
		record.FileDescriptor([]byte("c")),
	}
	want := []bool{true, false, false, true, false, true}

	visited := make([]bool, len(dir))
	i, end := 0, len(dir)
	for i < end {
		visited[i] = true
		i = NextSibling(dir[i], i, end)
	}
	if !reflect.DeepEqual(visited, want) {
		t.Fatalf("visited = %v, want %v", visited, want)
	}
}
