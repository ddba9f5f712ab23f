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

import "fmt"

const (
	defaultMaxChunkBytes   = 64 * 1024
	defaultMaxTextRunBytes = 1024 * 1024
	defaultRecordElement   = "wcproduction"
	defaultMaxDepth        = 256
	defaultMaxAttrs        = 256
)

type options struct {
	endianness      Endianness
	maxChunkBytes   int
	maxTextRunBytes int
	recordElement   string
	recordDepth     int
	maxDepth        int
	maxAttrs        int
	keepWhitespace  bool
	errRecord       errorPolicy // How to handle records with missing or invalid fields
	wellFilter      func(WellAPI) bool
}

func (o *options) String() string {
	return fmt.Sprintf("endianness: %s, chunk: %d, text run: %d, record: %s@%d, on record error: %s",
		o.endianness, o.maxChunkBytes, o.maxTextRunBytes, o.recordElement, o.recordDepth, o.errRecord)
}

// The errorPolicy constants describe how to handle records which can't be assembled.
type errorPolicy int8

const (
	ErrIgnore errorPolicy = 0 // Skip the record silently.
	ErrWarn   errorPolicy = 1 // Skip the record, but return the error inline.
	ErrFail   errorPolicy = 2 // Treat the error as fatal.
)

func (p errorPolicy) String() string {
	switch p {
	case ErrIgnore:
		return "ignore"
	case ErrWarn:
		return "warn"
	case ErrFail:
		return "fail"
	}
	return fmt.Sprintf("errorPolicy(%d)", int8(p))
}

// ParseErrorPolicy parses the textual form of an error policy (ignore, warn or fail).
func ParseErrorPolicy(s string) (errorPolicy, error) {
	switch s {
	case "ignore":
		return ErrIgnore, nil
	case "warn", "":
		return ErrWarn, nil
	case "fail":
		return ErrFail, nil
	}
	return ErrWarn, fmt.Errorf("wcprod: unknown error policy '%s'", s)
}

// Option configures the pipeline stages.
type Option interface {
	apply(*options)
}

// funcOption wraps a function that modifies options into an
// implementation of the Option interface.
type funcOption struct {
	f func(*options)
}

func (fo *funcOption) apply(po *options) {
	fo.f(po)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{
		f: f,
	}
}

func defaultOptions() options {
	return options{
		endianness:      UnknownEndian,
		maxChunkBytes:   defaultMaxChunkBytes,
		maxTextRunBytes: defaultMaxTextRunBytes,
		recordElement:   defaultRecordElement,
		recordDepth:     0,
		maxDepth:        defaultMaxDepth,
		maxAttrs:        defaultMaxAttrs,
		errRecord:       ErrWarn,
	}
}

func newOptions(opts ...Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	return &o
}

// WithDefaultEndianness sets the byte order used when the document has no byte-order mark.
// defaults to UnknownEndian, which makes a document without byte-order mark an error
func WithDefaultEndianness(e Endianness) Option {
	return newFuncOption(func(o *options) {
		o.endianness = e
	})
}

// WithMaxChunkBytes sets the size of each read from the underlying stream.
// defaults to 64 KiB
func WithMaxChunkBytes(size int) Option {
	return newFuncOption(func(o *options) {
		if size > 0 {
			o.maxChunkBytes = size
		}
	})
}

// WithMaxTextRunBytes sets the maximum size of a buffered text run, name or attribute value,
// measured in UTF-8 bytes.
// defaults to 1 MiB
func WithMaxTextRunBytes(size int) Option {
	return newFuncOption(func(o *options) {
		if size > 0 {
			o.maxTextRunBytes = size
		}
	})
}

// WithRecordElement sets the local name of the repeating element which makes up one record.
// defaults to "wcproduction"
func WithRecordElement(name string) Option {
	return newFuncOption(func(o *options) {
		if name != "" {
			o.recordElement = name
		}
	})
}

// WithRecordDepth restricts record elements to the given nesting depth, where the document element has depth 1.
// defaults to 0 (any depth)
func WithRecordDepth(depth int) Option {
	return newFuncOption(func(o *options) {
		o.recordDepth = depth
	})
}

// WithMaxDepth sets the maximum element nesting depth.
// defaults to 256
func WithMaxDepth(depth int) Option {
	return newFuncOption(func(o *options) {
		if depth > 0 {
			o.maxDepth = depth
		}
	})
}

// WithMaxAttrs sets the maximum number of attributes in one tag.
// defaults to 256
func WithMaxAttrs(count int) Option {
	return newFuncOption(func(o *options) {
		if count > 0 {
			o.maxAttrs = count
		}
	})
}

// WithKeepWhitespace decides if whitespace only text is emitted by the Tokenizer.
// defaults to false
func WithKeepWhitespace(keep bool) Option {
	return newFuncOption(func(o *options) {
		o.keepWhitespace = keep
	})
}

// WithRecordErrorPolicy sets the policy for records with missing or invalid fields.
// defaults to ErrWarn
func WithRecordErrorPolicy(policy errorPolicy) Option {
	return newFuncOption(func(o *options) {
		o.errRecord = policy
	})
}

// WithWellFilter sets a predicate deciding which wells to return. Records for wells not
// accepted by the filter are skipped.
// defaults to nil (all wells)
func WithWellFilter(filter func(WellAPI) bool) Option {
	return newFuncOption(func(o *options) {
		o.wellFilter = filter
	})
}
