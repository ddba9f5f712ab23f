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
	"iter"

	"github.com/nlnwa/wcprod/pkg/archive"
	log "github.com/sirupsen/logrus"
)

// RecordReader is the interface that wraps the Next method.
type RecordReader interface {
	Next() (*Record, error)
}

// Cursor describes how far a pipeline run has progressed.
type Cursor struct {
	BytesRead    int64 // Uncompressed bytes read from the stream
	CodePoints   int64
	Tokens       int64
	Line         int
	Records      int64
	RecordErrors int64
	Filtered     int64
}

func (c Cursor) String() string {
	return fmt.Sprintf("bytes: %d, code points: %d, tokens: %d, line: %d, records: %d, record errors: %d, filtered: %d",
		c.BytesRead, c.CodePoints, c.Tokens, c.Line, c.Records, c.RecordErrors, c.Filtered)
}

// ProductionReader reads production records from an uncompressed UTF-16 XML stream.
//
// Every call to Next pulls just enough bytes through the pipeline to complete one record, so memory use is
// bounded by one chunk and one record regardless of document size.
type ProductionReader struct {
	opts       *options
	source     *ByteSource
	transcoder *Transcoder
	tokenizer  *Tokenizer
	assembler  *Assembler
}

// NewProductionReader creates a ProductionReader reading from r.
func NewProductionReader(r io.Reader, opts ...Option) *ProductionReader {
	o := newOptions(opts...)
	log.Debugf("creating production reader: %s", o)
	pr := &ProductionReader{opts: o}
	pr.source = NewByteSource(r, o.maxChunkBytes)
	pr.transcoder = NewTranscoder(pr.source, o.endianness)
	pr.tokenizer = newTokenizer(pr.transcoder, o)
	pr.assembler = newAssembler(pr.tokenizer, o)
	return pr
}

// Next returns the next record.
//
// Records with missing or invalid fields are reported as *IncompleteRecordError when the record error policy
// is ErrWarn; reading may continue after such an error. Every other error is final: *IoError, *EncodingError
// or *MalformedXMLError is returned on this and every later call.
//
// When at end of document only io.EOF is returned.
func (pr *ProductionReader) Next() (*Record, error) {
	return pr.assembler.NextRecord()
}

// All returns an iterator over the remaining records. Recoverable errors are yielded inline with a nil record.
// A final error is yielded once as the last element. End of document ends the iteration without an error.
func (pr *ProductionReader) All() iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		for {
			rec, err := pr.Next()
			if err == io.EOF {
				return
			}
			if !yield(rec, err) {
				return
			}
			if err != nil && !IsRecoverable(err) {
				return
			}
		}
	}
}

// Cursor returns a snapshot of the progress of this run.
func (pr *ProductionReader) Cursor() Cursor {
	return Cursor{
		BytesRead:    pr.source.BytesRead(),
		CodePoints:   pr.transcoder.CodePoints(),
		Tokens:       pr.tokenizer.Tokens(),
		Line:         pr.tokenizer.Line(),
		Records:      pr.assembler.Records(),
		RecordErrors: pr.assembler.RecordErrors(),
		Filtered:     pr.assembler.Filtered(),
	}
}

// Endianness returns the byte order of the document. It is UnknownEndian until the first record is read.
func (pr *ProductionReader) Endianness() Endianness {
	return pr.transcoder.Endianness()
}

// ProductionFileReader reads production records from a release archive.
type ProductionFileReader struct {
	*ProductionReader
	entry *archive.Entry
}

// NewProductionFileReader opens the archive at path and creates a reader for its XML document.
// See archive.Open for the supported archive formats.
func NewProductionFileReader(path string, opts ...Option) (*ProductionFileReader, error) {
	entry, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	return &ProductionFileReader{
		ProductionReader: NewProductionReader(entry, opts...),
		entry:            entry,
	}, nil
}

// Name returns the name of the document inside the archive.
func (pf *ProductionFileReader) Name() string {
	return pf.entry.Name
}

// Progress returns the number of bytes read from the archive file and its total size.
func (pf *ProductionFileReader) Progress() (read, size int64) {
	return pf.entry.CompressedRead(), pf.entry.CompressedSize
}

// Close closes the archive.
func (pf *ProductionFileReader) Close() error {
	return pf.entry.Close()
}
