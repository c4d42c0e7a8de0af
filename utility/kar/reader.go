// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"fmt"
	"io"

	"github.com/pierrec/lz4"
	"golang.org/x/exp/mmap"
)

// Open opens the kar archived from r. It will also check
// if the file is actually a kar archive, will return an error
// when file incorrect.
func Open(r io.ReaderAt) (*Archive, error) {
	magic := make([]byte, MagicLength)
	if _, err := r.ReadAt(magic, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	} else if string(magic) != Magic {
		return nil, ErrFileFormat
	}

	headerSizeBytes := make([]byte, HeaderSizeNumberLength)
	if _, err := r.ReadAt(headerSizeBytes, MagicLength); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}
	headerSize := binaryToInt64(headerSizeBytes)
	if headerSize <= 0 || headerSize > 1<<30 {
		return nil, fmt.Errorf("%w: header size %d", ErrFileFormat, headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := r.ReadAt(headerBytes, MagicLength+HeaderSizeNumberLength); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}

	var header Header
	if err := gobDecode(&header, headerBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}

	ar := &Archive{
		reader: r,
		header: header,
		base:   MagicLength + HeaderSizeNumberLength + headerSize,
		index:  make(map[string]IndexEntry, len(header.Index)),
	}
	for _, e := range header.Index {
		if !e.valid() {
			return nil, fmt.Errorf("%w: index entry %q", ErrFileFormat, e.Name)
		}
		ar.index[e.Name] = e
	}
	return ar, nil
}

// Archive provides concurrent io for a kar file, and can provide
// an io.Reader for each file separately to perform actions on.
type Archive struct {
	reader io.ReaderAt
	header Header
	base   int64
	index  map[string]IndexEntry
}

// Header returns the archive's header
func (a *Archive) Header() Header {
	return a.header
}

// Entries lists the file names, in the order they were added
func (a *Archive) Entries() []string {
	names := make([]string, len(a.header.Index))
	for i, e := range a.header.Index {
		names[i] = e.Name
	}
	return names
}

// ReadAll returns the entire contents of a file with a given name
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	data := make([]byte, r.entry.Size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("kar: %s: %w", name, err)
	}
	return data, nil
}

// Open returns a Reader for a file in the Archive
func (a *Archive) Open(name string) (*Reader, error) {
	entry, ok := a.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	section := io.NewSectionReader(a.reader, a.base+entry.Offset, entry.CompressedSize)
	return &Reader{
		entry:  entry,
		reader: lz4.NewReader(section),
	}, nil
}

// Reader is a reader for a single file in an Archive.
// Abstracts away the location that needs to be known.
type Reader struct {
	entry  IndexEntry
	reader io.Reader
}

// Read reads already decompressed data
func (r *Reader) Read(p []byte) (n int, err error) {
	return r.reader.Read(p)
}

// Size is the decompressed size of the file
func (r *Reader) Size() int64 {
	return r.entry.Size
}

// File is an archive memory mapped from disk
type File struct {
	*Archive

	mapped *mmap.ReaderAt
}

// OpenFile maps the archive at path into memory
func OpenFile(path string) (*File, error) {
	mapped, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	ar, err := Open(mapped)
	if err != nil {
		mapped.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &File{
		Archive: ar,
		mapped:  mapped,
	}, nil
}

// Close unmaps the file
func (f *File) Close() error {
	return f.mapped.Close()
}
