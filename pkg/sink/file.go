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

package sink

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nlnwa/wcprod"
	"github.com/prometheus/tsdb/fileutil"
)

// OpenFileSuffix is added to the name of a file while it is being written.
const OpenFileSuffix = ".open"

// AtomicFile is a file which only appears under its final name once it is completely written.
type AtomicFile struct {
	*os.File
	path string
}

// CreateAtomic creates path + OpenFileSuffix for writing.
func CreateAtomic(path string) (*AtomicFile, error) {
	f, err := os.OpenFile(path+OpenFileSuffix, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	return &AtomicFile{File: f, path: path}, nil
}

// Close syncs and closes the file and renames it to its final name. If any step fails the file is removed.
func (f *AtomicFile) Close() error {
	err := f.File.Sync()
	if cerr := f.File.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		if err = fileutil.Rename(f.File.Name(), f.path); err != nil {
			err = fmt.Errorf("sink: renaming %s: %w", f.File.Name(), err)
		}
	}
	if err != nil {
		_ = os.Remove(f.File.Name())
	}
	return err
}

// Abort closes and removes the file. The final name is never created.
func (f *AtomicFile) Abort() error {
	_ = f.File.Close()
	return os.Remove(f.File.Name())
}

// FileSink writes through a sink into an AtomicFile.
type FileSink struct {
	file *AtomicFile
	sink wcprod.Sink
}

// NewFileSink creates the file at path and a sink writing to it with newSink.
func NewFileSink(path string, newSink func(w io.Writer) wcprod.Sink) (*FileSink, error) {
	f, err := CreateAtomic(path)
	if err != nil {
		return nil, err
	}
	return &FileSink{file: f, sink: newSink(f)}, nil
}

// Write implements wcprod.Sink.
func (s *FileSink) Write(rec *wcprod.Record) error {
	return s.sink.Write(rec)
}

// Close implements wcprod.Sink. The file gets its final name only if everything was written successfully.
func (s *FileSink) Close() error {
	if err := s.sink.Close(); err != nil {
		return errors.Join(err, s.file.Abort())
	}
	return s.file.Close()
}

// Abort discards everything written.
func (s *FileSink) Abort() error {
	return s.file.Abort()
}
