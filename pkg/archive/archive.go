/*
 * Copyright 2021 National Library of Norway.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *       http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package archive opens the compressed container a monthly release is published in and exposes its
// single document as a plain byte stream.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/nlnwa/wcprod/pkg/countingreader"
	log "github.com/sirupsen/logrus"
)

// ErrNotSingleEntry is returned when a zip archive does not contain exactly one file.
var ErrNotSingleEntry = errors.New("archive: expected one file in zip archive")

var (
	zipMagic  = []byte("PK\x03\x04")
	zipEmpty  = []byte("PK\x05\x06")
	gzipMagic = []byte{0x1f, 0x8b}
)

// Format is the detected container format.
type Format uint8

const (
	Plain Format = iota
	Zip
	Gzip
)

func (f Format) String() string {
	switch f {
	case Zip:
		return "zip"
	case Gzip:
		return "gzip"
	}
	return "plain"
}

type counter interface {
	N() int64
}

// Entry is the decompressed document of an archive.
type Entry struct {
	Name           string // Name of the document inside the archive
	Format         Format
	CompressedSize int64 // Size of the archive file

	r       io.Reader
	count   counter
	closers []io.Closer
}

func (e *Entry) Read(p []byte) (int, error) {
	return e.r.Read(p)
}

// CompressedRead returns the number of archive bytes consumed so far.
func (e *Entry) CompressedRead() int64 {
	return e.count.N()
}

// Close releases the decompressor and, when opened with Open, the file.
func (e *Entry) Close() error {
	var firstErr error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.closers = nil
	return firstErr
}

// Open opens the archive at path. Zip archives must contain exactly one file, gzip files are decompressed
// and any other file is read as is.
func Open(path string) (*Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	e, err := NewReader(f, fi.Size(), name)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("archive: %s: %w", path, err)
	}
	e.closers = append([]io.Closer{f}, e.closers...)
	return e, nil
}

// NewReader detects the format of the size bytes in r and returns the document they contain.
// The name is used for gzip and plain input without an embedded name.
func NewReader(r io.ReaderAt, size int64, name string) (*Entry, error) {
	magic := make([]byte, 4)
	n, err := r.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	magic = magic[:n]

	e := &Entry{Name: name, CompressedSize: size}
	switch {
	case bytes.HasPrefix(magic, zipMagic) || bytes.HasPrefix(magic, zipEmpty):
		e.Format = Zip
		err = e.openZip(r, size)
	case bytes.HasPrefix(magic, gzipMagic):
		e.Format = Gzip
		err = e.openGzip(r, size)
	default:
		c := countingreader.New(io.NewSectionReader(r, 0, size))
		e.r, e.count = c, c
	}
	if err != nil {
		return nil, err
	}
	log.Debugf("reading %s from %s archive", e.Name, e.Format)
	return e, nil
}

func (e *Entry) openZip(r io.ReaderAt, size int64) error {
	c := countingreader.NewReaderAt(r)
	zr, err := zip.NewReader(c, size)
	if err != nil {
		return err
	}

	var file *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if file != nil {
			return ErrNotSingleEntry
		}
		file = f
	}
	if file == nil {
		return ErrNotSingleEntry
	}

	rc, err := file.Open()
	if err != nil {
		return err
	}
	e.Name = file.Name
	e.r, e.count = rc, c
	e.closers = append(e.closers, rc)
	return nil
}

func (e *Entry) openGzip(r io.ReaderAt, size int64) error {
	c := countingreader.New(io.NewSectionReader(r, 0, size))
	gz, err := gzip.NewReader(c)
	if err != nil {
		return err
	}
	// Only the first member is the document
	gz.Multistream(false)
	if gz.Header.Name != "" {
		e.Name = gz.Header.Name
	}
	e.r, e.count = gz, c
	e.closers = append(e.closers, gz)
	return nil
}
