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

package wcprod

import "io"

// maxEmptyReads is the number of reads returning neither data nor error before giving up.
const maxEmptyReads = 100

// ChunkSource is the interface that wraps the NextChunk method.
//
// NextChunk returns the next non-empty chunk of bytes. At end of stream it returns io.EOF, and keeps
// returning io.EOF on every later call. The returned slice is only valid until the next call.
type ChunkSource interface {
	NextChunk() ([]byte, error)
}

// ByteSource reads an uncompressed stream in bounded chunks without seeking.
type ByteSource struct {
	r         io.Reader
	buf       []byte
	bytesRead int64
	err       error // sticky terminal state, io.EOF or *IoError
}

// NewByteSource creates a ByteSource reading at most maxChunkBytes at a time from r.
func NewByteSource(r io.Reader, maxChunkBytes int) *ByteSource {
	if maxChunkBytes <= 0 {
		maxChunkBytes = defaultMaxChunkBytes
	}
	return &ByteSource{
		r:   r,
		buf: make([]byte, maxChunkBytes),
	}
}

// NextChunk implements ChunkSource.
//
// The chunk is filled as far as the underlying reader allows, so a short chunk is only returned
// right before end of stream or a read error. A failing read returns an *IoError, which is never retried.
func (s *ByteSource) NextChunk() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}

	n, err := s.fill()
	s.bytesRead += int64(n)
	switch {
	case err == nil:
	case err == io.EOF:
		s.err = io.EOF
	default:
		s.err = newIoError(s.bytesRead, err)
	}

	if n > 0 {
		return s.buf[:n], nil
	}
	return nil, s.err
}

// fill reads until the buffer is full or the reader fails. Only a plain io.EOF is end of stream; an
// io.ErrUnexpectedEOF from a decompressor means the archive is truncated.
func (s *ByteSource) fill() (int, error) {
	n, empty := 0, 0
	for n < len(s.buf) {
		m, err := s.r.Read(s.buf[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			empty++
			if empty >= maxEmptyReads {
				return n, io.ErrNoProgress
			}
		}
	}
	return n, nil
}

// BytesRead returns the number of bytes delivered so far.
func (s *ByteSource) BytesRead() int64 {
	return s.bytesRead
}
