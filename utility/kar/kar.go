// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package kar is an api for an lz4 backed file format.
// It is meant to be memory mapped, so unlike tar it knows where
// all of its files are before any of them is read. The archive
// itself is not compressed, every file is compressed on its own
// and can be decompressed straight from its place. An Archive
// can be read from concurrently.
//
// Layout: magic, header size (int64, little endian), gob encoded
// Header, then the compressed files. Offsets in the index are
// relative to the end of the header.
package kar

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
)

// package errors
var (
	ErrFileFormat = errors.New("kar: corrupted or not a kar archive")
	ErrNotFound   = errors.New("kar: no such file in archive")
	ErrDuplicate  = errors.New("kar: file already added")
)

// Magic starts every archive
const Magic = "KAR\x00"

// Sizes relevant to the header of file
const (
	MagicLength            = 4
	HeaderSizeNumberLength = 8
)

// Limits an index entry must be within
const (
	MaxFileSize   = 1 << 32
	MaxFileOffset = 1 << 48
)

// IndexEntry is info for one file in the file index.
type IndexEntry struct {
	Name           string
	Offset         int64
	Size           int64
	CompressedSize int64
}

// Header is the file header for kar files.
type Header struct {
	Author      string
	DateCreated int64
	Version     int64
	Index       []IndexEntry
}

func (e IndexEntry) valid() bool {
	return e.Size >= 0 && e.Size <= MaxFileSize &&
		e.CompressedSize >= 0 && e.CompressedSize <= MaxFileSize &&
		e.Offset >= 0 && e.Offset <= MaxFileOffset
}

func int64ToBinary(num int64) []byte {
	bts := make([]byte, HeaderSizeNumberLength)
	binary.LittleEndian.PutUint64(bts, uint64(num))
	return bts
}

func binaryToInt64(bts []byte) int64 {
	return int64(binary.LittleEndian.Uint64(bts))
}

func gobEncode(data interface{}) ([]byte, error) {
	var encoded bytes.Buffer
	enc := gob.NewEncoder(&encoded)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return encoded.Bytes(), nil
}

func gobDecode(obj interface{}, bts []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(bts))
	return dec.Decode(obj)
}
