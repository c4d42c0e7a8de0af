// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/pierrec/lz4"
)

// NewBuilder creates a new Builder. Do not fill the Index in
// the header, it will be overwritten anyway.
func NewBuilder(header Header) *Builder {
	return &Builder{
		header: header,
		names:  make(map[string]bool),
	}
}

type compressedFile struct {
	Name string
	Size int64
	Data []byte
}

// Builder is the high level builder for the archive format.
// Archives are versioned and cannot be appended to, the Builder
// is the way to create one. Files are compressed as they are
// added and bundled together by WriteTo.
type Builder struct {
	header Header

	mutex sync.Mutex
	files []compressedFile
	names map[string]bool
}

// Add appends data to the builder with a given name.
// Will block until lz4 finishes compression. Is safe
// to use concurrently in different goroutines.
func (b *Builder) Add(name string, data []byte) error {
	var compressed bytes.Buffer
	writer := lz4.NewWriter(&compressed)
	written, err := io.Copy(writer, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.names[name] {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	b.names[name] = true
	b.files = append(b.files, compressedFile{
		Name: name,
		Size: written,
		Data: compressed.Bytes(),
	})
	return nil
}

// Len is the number of files added
func (b *Builder) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.files)
}

// WriteTo bundles and writes all of the files added to the Builder
// into a kar archive that is ready to use.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	header := b.header
	header.Index = make([]IndexEntry, 0, len(b.files))
	var offset int64
	for _, f := range b.files {
		header.Index = append(header.Index, IndexEntry{
			Name:           f.Name,
			Offset:         offset,
			Size:           f.Size,
			CompressedSize: int64(len(f.Data)),
		})
		offset += int64(len(f.Data))
	}

	rawHeader, err := gobEncode(header)
	if err != nil {
		return 0, err
	}

	var total int64
	write := func(bts []byte) error {
		n, err := w.Write(bts)
		total += int64(n)
		return err
	}

	if err := write([]byte(Magic)); err != nil {
		return total, err
	}
	if err := write(int64ToBinary(int64(len(rawHeader)))); err != nil {
		return total, err
	}
	if err := write(rawHeader); err != nil {
		return total, err
	}
	for _, f := range b.files {
		if err := write(f.Data); err != nil {
			return total, err
		}
	}
	return total, nil
}
