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
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMismatchedEndTag     = errors.New("mismatched end tag")
	ErrUnsupportedConstruct = errors.New("unsupported construct")
	ErrTokenTooLarge        = errors.New("token exceeds maximum size")
	ErrUnexpectedEOF        = errors.New("unexpected end of document")
	ErrInvalidEntity        = errors.New("invalid entity reference")
	ErrDepthLimit           = errors.New("element depth exceeds maximum")
	ErrAttrLimit            = errors.New("attribute count exceeds maximum")
	ErrDuplicateAttr        = errors.New("duplicate attribute name")
)

// IoError is returned when reading the underlying stream fails
type IoError struct {
	Offset int64
	Err    error
}

func newIoError(offset int64, err error) *IoError {
	return &IoError{Offset: offset, Err: err}
}

func (e *IoError) Error() string {
	return fmt.Sprintf("wcprod: read failed at byte %d: %v", e.Offset, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

// EncodingError is used for malformed UTF-16 input
type EncodingError struct {
	Offset int64
	msg    string
}

func newEncodingError(offset int64, msg string) *EncodingError {
	return &EncodingError{Offset: offset, msg: msg}
}

func newEncodingErrorf(offset int64, msg string, param ...interface{}) *EncodingError {
	return &EncodingError{Offset: offset, msg: fmt.Sprintf(msg, param...)}
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("wcprod: %s at byte %d", e.msg, e.Offset)
}

// MalformedXMLError is used for violations of XML well-formedness and for constructs which are not supported
type MalformedXMLError struct {
	Line    int
	Column  int
	msg     string
	wrapped error
}

func newMalformedXMLError(pos position, wrapped error, msg string) *MalformedXMLError {
	return &MalformedXMLError{Line: pos.line, Column: pos.column, msg: msg, wrapped: wrapped}
}

func newMalformedXMLErrorf(pos position, wrapped error, msg string, param ...interface{}) *MalformedXMLError {
	return newMalformedXMLError(pos, wrapped, fmt.Sprintf(msg, param...))
}

func (e *MalformedXMLError) Error() string {
	msg := e.msg
	if msg == "" && e.wrapped != nil {
		msg = e.wrapped.Error()
	} else if e.wrapped != nil {
		msg = e.wrapped.Error() + ": " + msg
	}
	if e.Line > 0 {
		return fmt.Sprintf("wcprod: %s at line %d, column %d", msg, e.Line, e.Column)
	}
	return fmt.Sprintf("wcprod: %s", msg)
}

func (e *MalformedXMLError) Unwrap() error {
	return e.wrapped
}

// FieldError describes a record field which could not be parsed
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s '%s': %v", e.Field, e.Value, e.Err)
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// IncompleteRecordError is returned for a single record which lacks required fields or has unparsable values.
// The pipeline can continue after this error.
type IncompleteRecordError struct {
	Index   int64
	Line    int
	Missing []string
	Invalid []FieldError
}

func (e *IncompleteRecordError) Error() string {
	var problems multiErr
	if len(e.Missing) > 0 {
		problems = append(problems, fmt.Errorf("missing %s", strings.Join(e.Missing, ", ")))
	}
	for _, f := range e.Invalid {
		problems = append(problems, f)
	}
	return fmt.Sprintf("wcprod: incomplete record %d at line %d: %v", e.Index, e.Line, problems)
}

// AbortError is returned when reading stops at an incomplete record because the record error policy is ErrFail.
type AbortError struct {
	Err *IncompleteRecordError
}

func (e *AbortError) Error() string {
	return e.Err.Error()
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// IsRecoverable reports whether err only concerns a single record, so that the caller may keep reading.
func IsRecoverable(err error) bool {
	var abort *AbortError
	if errors.As(err, &abort) {
		return false
	}
	var ire *IncompleteRecordError
	return errors.As(err, &ire)
}

type multiErr []error

func (e multiErr) Error() string {
	switch len(e) {

	case 0:
		return ""

	case 1:
		return e[0].Error()
	}

	const (
		start = "["
		sep   = ", "
		end   = "]"
	)

	n := len(start) + len(end) + (len(sep) * (len(e) - 1))
	for i := 0; i < len(e); i++ {
		n += len(e[i].Error())
	}

	var b strings.Builder
	b.Grow(n)
	b.WriteString(start)
	b.WriteString(e[0].Error())
	for _, s := range e[1:] {
		b.WriteString(sep)
		b.WriteString(s.Error())
	}
	b.WriteString(end)
	return b.String()
}

// position is a location in the decoded document.
type position struct {
	line   int
	column int
}
