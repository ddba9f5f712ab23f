/*
 * Copyright 2020 National Library of Norway.
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

// Package countingreader counts bytes read from archive files so that progress through a large release
// can be reported while it is being decompressed.
package countingreader

import (
	"io"
	"sync/atomic"
)

// Reader counts the bytes read through it.
//
// The count may be read from another goroutine, e.g. a progress reporter, while reading is in progress.
type Reader struct {
	ioReader  io.Reader
	bytesRead atomic.Int64
}

// New makes a new Reader that counts the bytes
// read through it.
func New(r io.Reader) *Reader {
	return &Reader{ioReader: r}
}

func (r *Reader) Read(p []byte) (n int, err error) {
	n, err = r.ioReader.Read(p)
	r.bytesRead.Add(int64(n))
	return
}

// N gets the number of bytes that have been read
// so far.
func (r *Reader) N() int64 {
	return r.bytesRead.Load()
}

// ReaderAt counts the bytes read through ReadAt. Overlapping reads are counted each time.
type ReaderAt struct {
	ioReaderAt io.ReaderAt
	bytesRead  atomic.Int64
}

// NewReaderAt makes a new ReaderAt that counts the bytes
// read through it.
func NewReaderAt(r io.ReaderAt) *ReaderAt {
	return &ReaderAt{ioReaderAt: r}
}

func (r *ReaderAt) ReadAt(p []byte, off int64) (n int, err error) {
	n, err = r.ioReaderAt.ReadAt(p, off)
	r.bytesRead.Add(int64(n))
	return
}

// N gets the number of bytes that have been read
// so far.
func (r *ReaderAt) N() int64 {
	return r.bytesRead.Load()
}
