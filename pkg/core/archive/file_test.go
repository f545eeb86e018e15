package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestFileArchiveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.pak")

	e, err := CreateNewFile(path, testKey)
	if err != nil {
		t.Fatalf("CreateNewFile failed: %v", err)
	}
	data := bytes.Repeat([]byte{0xCF}, 65)
	if _, err := e.CreateFile([]byte("sub/foo"), data, testKey); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	if err := e.Finish(testKey); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := OpenFileReader(path, testKey)
	if err != nil {
		t.Fatalf("OpenFileReader failed: %v", err)
	}
	defer r.Close()

	if r.Directory().Len() != 2 {
		t.Fatalf("directory has %d descriptors, want 2", r.Directory().Len())
	}
	desc, ok := r.Directory().FindFile([]byte("sub/foo"))
	if !ok {
		t.Fatalf("sub/foo not found")
	}
	got, err := r.ReadData(desc, testKey)
	if err != nil {
		t.Fatalf("ReadData failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("ReadData = %x, want %x", got, data)
	}
}

func TestFileArchiveCreateEmptyThenOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.pak")
	if err := CreateEmptyFile(path, testKey); err != nil {
		t.Fatalf("CreateEmptyFile failed: %v", err)
	}

	e, err := OpenFile(path, testKey)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer e.Close()
	if !e.Directory().IsEmpty() {
		t.Fatalf("expected an empty directory")
	}
}

func TestFileArchiveFinishIsCrashTolerant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.pak")

	e, err := CreateNewFile(path, testKey)
	if err != nil {
		t.Fatalf("CreateNewFile failed: %v", err)
	}
	if _, err := e.CreateFile([]byte("first"), []byte("one"), testKey); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	if err := e.Finish(testKey); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading archive failed: %v", err)
	}

	e2, err := OpenFile(path, testKey)
	if err != nil {
		t.Fatalf("reopening archive failed: %v", err)
	}
	if _, err := e2.CreateFile([]byte("second"), []byte("two"), testKey); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}

	// Simulate a crash before Finish: the new file's payload may have been
	// staged past the old high mark, but the on-disk header still points at
	// the original, still-valid directory.
	if err := e2.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading archive after abandoned edit failed: %v", err)
	}
	if !bytes.Equal(before[:len(before)], after[:len(before)]) {
		t.Fatalf("abandoning an edit without Finish must not alter the previously durable bytes")
	}

	r, err := OpenFileReader(path, testKey)
	if err != nil {
		t.Fatalf("OpenFileReader after abandoned edit failed: %v", err)
	}
	defer r.Close()
	if _, ok := r.Directory().FindFile([]byte("second")); ok {
		t.Fatalf("an abandoned edit must not be visible after reopening")
	}
	desc, ok := r.Directory().FindFile([]byte("first"))
	if !ok {
		t.Fatalf("first should still be present")
	}
	got, err := r.ReadData(desc, testKey)
	if err != nil || !bytes.Equal(got, []byte("one")) {
		t.Fatalf("ReadData(first) = %q, %v", got, err)
	}
}

func TestFileEditorReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.pak")
	e, err := CreateNewFile(path, testKey)
	if err != nil {
		t.Fatalf("CreateNewFile failed: %v", err)
	}
	if _, err := e.CreateFile([]byte("file"), []byte("data"), testKey); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	if err := e.Finish(testKey); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	ro, err := OpenFileReadOnly(path, testKey)
	if err != nil {
		t.Fatalf("OpenFileReadOnly failed: %v", err)
	}
	defer ro.Close()
	desc, ok := ro.Directory().FindFile([]byte("file"))
	if !ok {
		t.Fatalf("file not found")
	}
	got, err := ro.ReadData(desc, testKey)
	if err != nil || !bytes.Equal(got, []byte("data")) {
		t.Fatalf("ReadData = %q, %v", got, err)
	}
}
