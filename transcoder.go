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

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	log "github.com/sirupsen/logrus"
)

// Endianness is the byte order of UTF-16 code units.
type Endianness int8

const (
	UnknownEndian Endianness = iota
	LittleEndian
	BigEndian
)

func (e Endianness) String() string {
	switch e {
	case LittleEndian:
		return "little-endian"
	case BigEndian:
		return "big-endian"
	}
	return "unknown"
}

// ParseEndianness parses le, little, be, big or none (case insensitive).
func ParseEndianness(s string) (Endianness, error) {
	switch strings.ToLower(s) {
	case "le", "little", "little-endian", "utf-16le":
		return LittleEndian, nil
	case "be", "big", "big-endian", "utf-16be":
		return BigEndian, nil
	case "", "none", "unknown":
		return UnknownEndian, nil
	}
	return UnknownEndian, fmt.Errorf("wcprod: unknown endianness '%s'", s)
}

// CodePoint is a decoded Unicode scalar value together with the number of bytes it occupied (2 or 4).
type CodePoint struct {
	Rune  rune
	Width int
}

// CodePointSource is the interface that wraps the NextCodePoint method.
//
// NextCodePoint returns io.EOF at end of stream.
type CodePointSource interface {
	NextCodePoint() (CodePoint, error)
}

// Transcoder decodes a UTF-16 byte stream into code points.
//
// Code units and surrogate pairs may be split anywhere between chunks; at most one byte and one
// high surrogate are carried over from one chunk to the next.
type Transcoder struct {
	src        ChunkSource
	fallback   Endianness
	endianness Endianness

	chunk []byte
	pos   int

	// pending tail
	tail    byte
	hasTail bool

	offset     int64 // bytes consumed as complete code units
	codePoints int64
	started    bool
	err        error
}

// NewTranscoder creates a Transcoder reading from src. The fallback byte order is used if the stream does
// not start with a byte-order mark.
func NewTranscoder(src ChunkSource, fallback Endianness) *Transcoder {
	return &Transcoder{
		src:      src,
		fallback: fallback,
	}
}

// NextCodePoint implements CodePointSource.
//
// Malformed input returns an *EncodingError and a failing source returns its error. Both are final.
func (t *Transcoder) NextCodePoint() (CodePoint, error) {
	if t.err != nil {
		return CodePoint{}, t.err
	}
	cp, err := t.next()
	if err != nil {
		t.err = err
		return CodePoint{}, err
	}
	t.codePoints++
	return cp, nil
}

func (t *Transcoder) next() (CodePoint, error) {
	var unit uint16
	if !t.started {
		t.started = true
		b, err := t.readPair()
		if err == io.EOF {
			return CodePoint{}, io.EOF
		}
		if err != nil {
			return CodePoint{}, err
		}
		bomFound, err := t.detectByteOrder(b)
		if err != nil {
			return CodePoint{}, err
		}
		t.offset += 2
		if bomFound {
			unit, err = t.readUnit()
			if err != nil {
				return CodePoint{}, err
			}
		} else {
			unit = t.decodeUnit(b)
		}
	} else {
		var err error
		if unit, err = t.readUnit(); err != nil {
			return CodePoint{}, err
		}
	}

	r := rune(unit)
	switch {
	case !utf16.IsSurrogate(r):
		return CodePoint{Rune: r, Width: 2}, nil
	case r >= 0xDC00:
		return CodePoint{}, newEncodingErrorf(t.offset-2, "lone low surrogate 0x%04X", unit)
	}

	low, err := t.readUnit()
	if err == io.EOF {
		return CodePoint{}, newEncodingErrorf(t.offset, "high surrogate 0x%04X at end of stream", unit)
	}
	if err != nil {
		return CodePoint{}, err
	}
	if low < 0xDC00 || low > 0xDFFF {
		return CodePoint{}, newEncodingErrorf(t.offset-2, "high surrogate 0x%04X followed by 0x%04X", unit, low)
	}
	return CodePoint{Rune: utf16.DecodeRune(r, rune(low)), Width: 4}, nil
}

// detectByteOrder inspects the first two bytes of the stream. It returns true if they were a byte-order mark.
func (t *Transcoder) detectByteOrder(b [2]byte) (bool, error) {
	switch {
	case b[0] == 0xFF && b[1] == 0xFE:
		t.endianness = LittleEndian
		log.Debug("detected little-endian byte-order mark")
		return true, nil
	case b[0] == 0xFE && b[1] == 0xFF:
		t.endianness = BigEndian
		log.Debug("detected big-endian byte-order mark")
		return true, nil
	case b[0] == 0xEF && b[1] == 0xBB:
		return false, newEncodingError(0, "UTF-8 byte-order mark in UTF-16 stream")
	case t.fallback == UnknownEndian:
		return false, newEncodingError(0, "no byte-order mark and no default endianness")
	}
	t.endianness = t.fallback
	return false, nil
}

func (t *Transcoder) readUnit() (uint16, error) {
	b, err := t.readPair()
	if err != nil {
		return 0, err
	}
	t.offset += 2
	return t.decodeUnit(b), nil
}

func (t *Transcoder) decodeUnit(b [2]byte) uint16 {
	if t.endianness == BigEndian {
		return uint16(b[0])<<8 | uint16(b[1])
	}
	return uint16(b[1])<<8 | uint16(b[0])
}

// readPair returns the next two bytes, pulling new chunks as needed. A single byte left at end of
// stream is an encoding error.
func (t *Transcoder) readPair() ([2]byte, error) {
	var b [2]byte
	for {
		remaining := len(t.chunk) - t.pos
		switch {
		case t.hasTail && remaining >= 1:
			b[0], b[1] = t.tail, t.chunk[t.pos]
			t.pos++
			t.hasTail = false
			return b, nil
		case !t.hasTail && remaining >= 2:
			b[0], b[1] = t.chunk[t.pos], t.chunk[t.pos+1]
			t.pos += 2
			return b, nil
		case !t.hasTail && remaining == 1:
			t.tail = t.chunk[t.pos]
			t.hasTail = true
			t.pos++
		}

		chunk, err := t.src.NextChunk()
		if err == io.EOF {
			if t.hasTail {
				return b, newEncodingError(t.offset, "truncated code unit at end of stream")
			}
			return b, io.EOF
		}
		if err != nil {
			return b, err
		}
		t.chunk, t.pos = chunk, 0
	}
}

// Endianness returns the byte order in use. It is UnknownEndian until the first code point is read.
func (t *Transcoder) Endianness() Endianness {
	return t.endianness
}

// CodePoints returns the number of code points decoded so far.
func (t *Transcoder) CodePoints() int64 {
	return t.codePoints
}

// Offset returns the number of bytes consumed as complete code units, including any byte-order mark.
func (t *Transcoder) Offset() int64 {
	return t.offset
}
