// Package directory implements the PAK archive's flat, pre-order-flattened
// directory structure: a sequence of record.Descriptor values encoding a
// light-weight TLV tree.
//
// A directory descriptor has ContentType zero; its ContentSize counts the
// descendants that immediately and transitively follow it in the sequence.
// A file descriptor has non-zero ContentType; its ContentSize is the size
// of the file's content in bytes. Both kinds share the same fixed-size
// Descriptor record, so the whole tree can be walked without ever
// following a pointer.
package directory

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/CasualX/pak-rs/pkg/core/record"
)

// NameEq compares the next path component against desc's name.
//
// It reports whether the name matches, and if so returns the remainder of
// path with the matched component (and its separator) removed.
func NameEq(desc record.Descriptor, path []byte) (tail []byte, ok bool) {
	name := desc.Name.Get()
	i := 0
	for {
		if len(name) == i {
			if len(path) == i {
				return path[i:], true
			}
			if path[i] == '/' || path[i] == '\\' {
				return path[i+1:], true
			}
			return nil, false
		}
		if len(path) == i || name[i] != path[i] {
			return nil, false
		}
		i++
	}
}

// NextSibling computes the index of the descriptor following desc and all
// of its descendants, within dir[i:end].
//
// A corrupt directory descriptor (one whose ContentSize overruns end) is
// handled gracefully: the result is clamped to end rather than overflowing
// past it.
func NextSibling(desc record.Descriptor, i, end int) int {
	if i >= end {
		panic("directory: index out of range")
	}
	if desc.IsDir() {
		maxSize := end - (i + 1)
		minSize := int(desc.ContentSize)
		if minSize > maxSize {
			minSize = maxSize
		}
		return i + 1 + minSize
	}
	return i + 1
}

// Find traverses dir along path.
//
// It returns a zero-length slice if no descriptor is found at path.
// It returns a length-one slice if a file descriptor is found at path.
// It returns a slice of length one or more if a directory descriptor is
// found at path: the first entry is the directory descriptor itself, the
// remainder are its descendants (including those of any nested
// subdirectories).
func Find(dir []record.Descriptor, path []byte) []record.Descriptor {
	if len(path) == 0 {
		return dir[:0]
	}
	i, end := 0, len(dir)
	for i < end {
		desc := dir[i]
		nextI := NextSibling(desc, i, end)
		if tail, ok := NameEq(desc, path); ok {
			if len(tail) == 0 {
				return dir[i:nextI]
			}
			if desc.IsDir() {
				path = tail
				i = i + 1
				end = nextI
				continue
			}
			// A file matched this name component but a directory was
			// expected; keep scanning in case a directory with the same
			// name also exists.
		}
		i = nextI
	}
	return dir[:0]
}

// FindDesc finds the descriptor at path.
func FindDesc(dir []record.Descriptor, path []byte) (record.Descriptor, bool) {
	result := Find(dir, path)
	if len(result) == 0 {
		return record.Descriptor{}, false
	}
	return result[0], true
}

// FindDir finds the children of the directory descriptor at path.
func FindDir(dir []record.Descriptor, path []byte) ([]record.Descriptor, bool) {
	if len(path) == 0 {
		return dir, true
	}
	result := Find(dir, path)
	if len(result) == 0 {
		return nil, false
	}
	return result[1:], true
}

//----------------------------------------------------------------

// Art supplies the box-drawing strings used to render a directory tree.
type Art struct {
	MarginOpen   string
	MarginClosed string
	DirEntry     string
	DirLast      string
	FileEntry    string
	FileLast     string
}

// ArtASCII renders the tree using plain ASCII characters.
var ArtASCII = Art{
	MarginOpen:   "   ",
	MarginClosed: "|  ",
	DirEntry:     "+- ",
	DirLast:      "`- ",
	FileEntry:    "|  ",
	FileLast:     "`  ",
}

// ArtUnicode renders the tree using Unicode box-drawing characters.
var ArtUnicode = Art{
	MarginOpen:   "   ",
	MarginClosed: "│  ",
	DirEntry:     "├─ ",
	DirLast:      "└─ ",
	FileEntry:    "│  ",
	FileLast:     "└  ",
}

// FormatTree renders dir as a tree rooted at root, in the given art style.
func FormatTree(root string, dir []record.Descriptor, art Art) string {
	var b strings.Builder
	b.WriteString(root)
	if strings.HasSuffix(root, "/") {
		b.WriteString("\n")
	} else {
		b.WriteString("/\n")
	}
	fmtRec(&b, 0, 0, dir, art)
	return b.String()
}

func fmtMargin(b *strings.Builder, margin uint32, depth uint32, art Art) {
	for i := uint32(0); i < depth; i++ {
		if margin&(1<<i) != 0 {
			b.WriteString(art.MarginOpen)
		} else {
			b.WriteString(art.MarginClosed)
		}
	}
}

// maxTreeDepth bounds recursive tree rendering against a corrupt or
// adversarially deep directory.
const maxTreeDepth = 31

func fmtRec(b *strings.Builder, margin uint32, depth uint32, dir []record.Descriptor, art Art) {
	if depth >= maxTreeDepth {
		return
	}

	wasDir := false
	i := 0
	for i < len(dir) {
		desc := dir[i]

		if i != 0 && (desc.IsDir() || wasDir) {
			fmtMargin(b, margin, depth+1, art)
			b.WriteString("\n")
		}
		wasDir = desc.IsDir()

		fmtMargin(b, margin, depth, art)

		nextI := NextSibling(desc, i, len(dir))
		isLast := len(dir) == nextI

		var prefix string
		switch {
		case isLast && desc.IsDir():
			prefix = art.DirLast
		case isLast && !desc.IsDir():
			prefix = art.FileLast
		case !isLast && desc.IsDir():
			prefix = art.DirEntry
		default:
			prefix = art.FileEntry
		}
		b.WriteString(prefix)
		b.Write(desc.Name.Get())

		if desc.IsDir() {
			b.WriteString("/\n")
			newMargin := margin
			if isLast {
				newMargin |= 1 << depth
			}
			fmtRec(b, newMargin, depth+1, dir[i+1:nextI], art)
		} else {
			b.WriteString("\n")
		}

		i = nextI
	}
}

//----------------------------------------------------------------

// dirInc walks dir along path, incrementing every ancestor directory
// descriptor's ContentSize by inc along the way, and returns the index at
// which path's final component is (or should be) found.
//
// It does not care whether a descriptor already exists there: callers use
// inc == 0 as a dry run to locate an insertion point without mutating
// anything.
func dirInc(dir []record.Descriptor, path *[]byte, inc int32) int {
	i, end := 0, len(dir)
	for i < end {
		desc := &dir[i]
		nextI := NextSibling(*desc, i, end)
		if tail, ok := NameEq(*desc, *path); ok {
			if len(tail) == 0 {
				*path = tail
				return i
			}
			if desc.IsDir() {
				desc.ContentSize = uint32(int32(desc.ContentSize) + inc)
				*path = tail
				i = i + 1
				end = nextI
				continue
			}
			// A file occupies this name; suggest inserting a sibling
			// directory with the same name.
			return i
		}
		i = nextI
	}
	return i
}

// flenck counts the number of path components in path, the way Create needs
// to know how many directory descriptors to splice in.
func flenck(path []byte) int32 {
	if len(path) == 0 {
		return 0
	}
	components := int32(0)
	for i := 0; i < len(path); i++ {
		if path[i] == '/' || path[i] == '\\' {
			if i+1 == len(path) {
				return components + 1
			}
			components++
		}
	}
	return components + 1
}

func insertDescriptors(dir []record.Descriptor, i int, items []record.Descriptor) []record.Descriptor {
	out := make([]record.Descriptor, len(dir)+len(items))
	copy(out, dir[:i])
	copy(out[i:], items)
	copy(out[i+len(items):], dir[i:])
	return out
}

// Create inserts, if necessary, the directory descriptors needed to make
// path resolvable, and returns the index of the descriptor at path.
//
// If a descriptor already exists at path, its index is returned unchanged.
// Otherwise fresh directory descriptors are spliced in for every missing
// path component; the caller is responsible for turning the final one into
// a file descriptor if that's what's wanted (see Directory.CreateDescriptor
// and Directory.CreateLink).
//
// If a file descriptor already occupies a path component where a directory
// is needed, a sibling directory descriptor with the same name is created
// alongside it.
func Create(dir *[]record.Descriptor, path []byte) int {
	tail := path
	i := dirInc(*dir, &tail, 0)

	inc := int(flenck(tail))
	if inc == 0 {
		return i
	}

	tail = path
	dirInc(*dir, &tail, int32(inc))

	items := make([]record.Descriptor, inc)
	dirLen := uint32(inc)
	t := tail
	for k := 0; k < inc; k++ {
		j := 0
		for j < len(t) && t[j] != '/' && t[j] != '\\' {
			j++
		}
		dirLen--
		name := t[:j]
		if j == len(t) {
			t = t[j:]
		} else {
			t = t[j+1:]
		}
		items[k] = record.DirDescriptor(name, dirLen)
	}

	*dir = insertDescriptors(*dir, i, items)
	return i + inc - 1
}

// Remove removes the descriptor at path, returning it and true, or false if
// no descriptor is found there.
//
// Removing a directory descriptor flattens its direct children into its
// parent: they are not removed, only the directory descriptor itself is.
func Remove(dir *[]record.Descriptor, path []byte) (record.Descriptor, bool) {
	temp := path
	i := dirInc(*dir, &temp, 0)
	if len(temp) != 0 || i >= len(*dir) {
		return record.Descriptor{}, false
	}

	temp = path
	dirInc(*dir, &temp, -1)

	removed := (*dir)[i]
	*dir = append((*dir)[:i], (*dir)[i+1:]...)
	return removed, true
}

//----------------------------------------------------------------

// Fsck validates the structural integrity of dir against highMark, the
// block index just past the last block a file section may reference,
// writing a description of every problem found to log.
//
// It reports whether the directory is structurally sound. A directory
// descriptor whose ContentSize overruns its containing slice is a
// corruption that fsck cannot safely recurse past; once it is reported,
// the remaining descriptors at that level are not checked.
func Fsck(dir []record.Descriptor, highMark uint32, log io.Writer) bool {
	return fsckRec(dir, highMark, nil, log)
}

type fsckParents struct {
	desc    record.Descriptor
	parents *fsckParents
}

func fsckRec(dir []record.Descriptor, highMark uint32, parents *fsckParents, log io.Writer) bool {
	success := true
	i := 0
	for i < len(dir) {
		desc := dir[i]
		i++

		if int(desc.Name.Buffer[record.NameBufLen-1]) >= record.NameBufLen {
			fsckError(desc, parents, log, "invalid name length (%d)", desc.Name.Buffer[record.NameBufLen-1])
			success = false
		}
		if !utf8.Valid(desc.Name.Get()) {
			fsckError(desc, parents, log, "invalid name (not valid UTF-8)")
			success = false
		}

		if desc.IsFile() {
			if desc.Section.Offset < record.HeaderBlocksLen {
				fsckError(desc, parents, log, "invalid file section (offset=%d, size=%d): overlaps the header", desc.Section.Offset, desc.Section.Size)
				success = false
			}
			if desc.Section.Size > highMark {
				fsckError(desc, parents, log, "invalid file section (offset=%d, size=%d): size too large", desc.Section.Offset, desc.Section.Size)
				success = false
			}
			if desc.Section.Offset > highMark-desc.Section.Size {
				fsckError(desc, parents, log, "invalid file section (offset=%d, size=%d): overlaps the directory", desc.Section.Offset, desc.Section.Size)
				success = false
			}
			if record.BytesToBlocks(desc.ContentSize) > desc.Section.Size {
				fsckError(desc, parents, log, "invalid content size (%d, offset=%d, size=%d): larger than its section", desc.ContentSize, desc.Section.Offset, desc.Section.Size)
				success = false
			}
		} else {
			maxLen := len(dir) - i
			if int(desc.ContentSize) > maxLen {
				fsckError(desc, parents, log, "invalid directory: too many children (%d, max=%d)", desc.ContentSize, maxLen)
				success = false
				break
			}

			children := dir[i : i+int(desc.ContentSize)]
			if !fsckRec(children, highMark, &fsckParents{desc: desc, parents: parents}, log) {
				success = false
			}

			i += int(desc.ContentSize)
		}
	}
	return success
}

func fsckError(desc record.Descriptor, parents *fsckParents, log io.Writer, format string, args ...interface{}) {
	printParents(&fsckParents{desc: desc, parents: parents}, log)
	fmt.Fprint(log, ": ")
	fmt.Fprintf(log, format, args...)
	fmt.Fprint(log, "\n")
}

func printParents(parents *fsckParents, log io.Writer) {
	if parents == nil {
		return
	}
	printParents(parents.parents, log)
	fmt.Fprintf(log, "/%s", parents.desc.Name.Get())
}
