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
	"io"
	"strings"
)

// Names of the record fields. Elements and attributes with other names are ignored.
const (
	FieldState        = "api_st_cde"
	FieldCounty       = "api_cnty_cde"
	FieldWell         = "api_well_idn"
	FieldMonth        = "prodn_mth"
	FieldYear         = "prodn_yr"
	FieldProductKind  = "prd_knd_cde"
	FieldAmount       = "prod_amt"
	FieldOGRID        = "ogrid_cde"
	FieldPool         = "pool_idn"
	FieldDaysProduced = "prodn_day_num"
)

var knownFields = map[string]bool{
	FieldState:        true,
	FieldCounty:       true,
	FieldWell:         true,
	FieldMonth:        true,
	FieldYear:         true,
	FieldProductKind:  true,
	FieldAmount:       true,
	FieldOGRID:        true,
	FieldPool:         true,
	FieldDaysProduced: true,
}

type assemblerState uint8

const (
	seeking assemblerState = iota
	inRecord
)

// Assembler builds records from the tokens of each record element.
type Assembler struct {
	src  TokenSource
	opts *options

	state     assemblerState
	depth     int
	rootDepth int
	builder   recordBuilder

	capturing  bool
	fieldName  string
	fieldDepth int
	fieldBuf   strings.Builder

	index        int64
	records      int64
	recordErrors int64
	filtered     int64
	err          error
}

// NewAssembler creates an Assembler reading tokens from src.
func NewAssembler(src TokenSource, opts ...Option) *Assembler {
	return newAssembler(src, newOptions(opts...))
}

func newAssembler(src TokenSource, o *options) *Assembler {
	return &Assembler{
		src:  src,
		opts: o,
	}
}

// NextRecord returns the next record in document order.
// Records rejected by the well filter are skipped.
//
// A record with missing or unparsable fields is handled according to the record error policy.
// With ErrWarn an *IncompleteRecordError is returned and the next call continues with the following record.
// With ErrFail it is wrapped in an *AbortError. All other errors are final too, and every later call returns
// the same error. At end of document io.EOF is returned.
func (a *Assembler) NextRecord() (*Record, error) {
	if a.err != nil {
		return nil, a.err
	}
	for {
		rec, err := a.next()
		if err == nil {
			if rec == nil {
				continue
			}
			return rec, nil
		}
		if !IsRecoverable(err) {
			a.err = err
			return nil, err
		}

		a.recordErrors++
		switch a.opts.errRecord {
		case ErrIgnore:
			continue
		case ErrFail:
			a.err = &AbortError{Err: err.(*IncompleteRecordError)}
			return nil, a.err
		}
		return nil, err
	}
}

// next consumes tokens up to the end of the next record element. A nil record without error means the
// record was filtered out.
func (a *Assembler) next() (*Record, error) {
	for {
		tok, err := a.src.NextToken()
		if err != nil {
			if err == io.EOF && a.state == inRecord {
				err = newMalformedXMLErrorf(position{line: a.line()}, ErrUnexpectedEOF, "record %d not closed", a.index)
			}
			return nil, err
		}

		switch tok.Kind {
		case StartElement:
			a.depth++
			name := tok.LocalName()
			switch {
			case a.state == seeking:
				if name == a.opts.recordElement && (a.opts.recordDepth <= 0 || a.opts.recordDepth == a.depth) {
					a.startRecord()
				}
			case knownFields[name]:
				a.capturing = true
				a.fieldName = name
				a.fieldDepth = a.depth
				a.fieldBuf.Reset()
			}

		case Attribute:
			if a.state == inRecord {
				if name := tok.LocalName(); knownFields[name] {
					a.builder.set(name, strings.TrimSpace(tok.Value))
				}
			}

		case CharData:
			if a.capturing && a.depth == a.fieldDepth {
				if a.fieldBuf.Len()+len(tok.Value) > a.opts.maxTextRunBytes {
					return nil, newMalformedXMLErrorf(position{line: a.line()}, ErrTokenTooLarge, "field %s", a.fieldName)
				}
				a.fieldBuf.WriteString(tok.Value)
			}

		case EndElement:
			if a.depth == 0 {
				return nil, newMalformedXMLErrorf(position{line: a.line()}, ErrMismatchedEndTag, "</%s> without open element", tok.Name)
			}
			if a.state == inRecord {
				if a.capturing && a.depth == a.fieldDepth {
					a.builder.set(a.fieldName, strings.TrimSpace(a.fieldBuf.String()))
					a.capturing = false
				}
				if a.depth == a.rootDepth {
					a.depth--
					a.state = seeking
					return a.finishRecord()
				}
			}
			a.depth--
		}
	}
}

func (a *Assembler) startRecord() {
	a.state = inRecord
	a.rootDepth = a.depth
	a.capturing = false
	a.index++
	a.builder.reset(a.index, a.line())
}

func (a *Assembler) finishRecord() (*Record, error) {
	rec, err := a.builder.build()
	if err != nil {
		return nil, err
	}
	if a.opts.wellFilter != nil && !a.opts.wellFilter(rec.API) {
		a.filtered++
		return nil, nil
	}
	a.records++
	return rec, nil
}

func (a *Assembler) line() int {
	if l, ok := a.src.(interface{ Line() int }); ok {
		return l.Line()
	}
	return 0
}

// Records returns the number of records returned so far.
func (a *Assembler) Records() int64 {
	return a.records
}

// RecordErrors returns the number of records which could not be assembled.
func (a *Assembler) RecordErrors() int64 {
	return a.recordErrors
}

// Filtered returns the number of records skipped by the well filter.
func (a *Assembler) Filtered() int64 {
	return a.filtered
}

var (
	errDuplicateField = errors.New("reported more than once")
	errUnpaired       = errors.New("product kinds and amounts do not pair up")
)

// recordBuilder collects the raw field values of one record element.
type recordBuilder struct {
	index   int64
	line    int
	values  map[string]string
	kinds   []string
	amounts []string
	invalid []FieldError
}

func (b *recordBuilder) reset(index int64, line int) {
	b.index = index
	b.line = line
	if b.values == nil {
		b.values = make(map[string]string)
	}
	clear(b.values)
	b.kinds = b.kinds[:0]
	b.amounts = b.amounts[:0]
	b.invalid = nil
}

func (b *recordBuilder) set(name, value string) {
	switch name {
	case FieldProductKind:
		b.kinds = append(b.kinds, value)
	case FieldAmount:
		b.amounts = append(b.amounts, value)
	default:
		if value == "" {
			return
		}
		if prev, ok := b.values[name]; ok && prev != value {
			b.invalid = append(b.invalid, FieldError{Field: name, Value: value, Err: errDuplicateField})
			return
		}
		b.values[name] = value
	}
}

func (b *recordBuilder) build() (*Record, error) {
	p := fieldParser{values: b.values, invalid: b.invalid}
	rec := &Record{
		Index:        b.index,
		Line:         b.line,
		OGRID:        b.values[FieldOGRID],
		PoolID:       b.values[FieldPool],
		DaysProduced: -1,
	}

	rec.API.State = uint8(p.unsigned(FieldState, 8, 0, 99))
	rec.API.County = uint16(p.unsigned(FieldCounty, 16, 0, 999))
	rec.API.Well = uint32(p.unsigned(FieldWell, 32, 0, 99999))
	rec.Period.Year = uint16(p.unsigned(FieldYear, 16, 1, 9999))
	rec.Period.Month = uint8(p.unsigned(FieldMonth, 8, 1, 12))
	if _, ok := b.values[FieldDaysProduced]; ok {
		rec.DaysProduced = int(p.unsigned(FieldDaysProduced, 16, 0, 31))
	}

	switch {
	case len(b.kinds) == 0 && len(b.amounts) == 0:
		p.missing = append(p.missing, FieldProductKind, FieldAmount)
	case len(b.kinds) != len(b.amounts):
		p.invalid = append(p.invalid, FieldError{Field: FieldProductKind, Value: strings.Join(b.kinds, ","), Err: errUnpaired})
	default:
		rec.Volumes = make([]Volume, 0, len(b.kinds))
		for i := range b.kinds {
			phase, errPhase := parsePhase(b.kinds[i])
			if errPhase != nil {
				p.invalid = append(p.invalid, FieldError{Field: FieldProductKind, Value: b.kinds[i], Err: errPhase})
			}
			amount, ok := p.float(FieldAmount, b.amounts[i])
			if errPhase == nil && ok {
				rec.Volumes = append(rec.Volumes, Volume{Phase: phase, Amount: amount})
			}
		}
	}

	if len(p.missing) > 0 || len(p.invalid) > 0 {
		return nil, &IncompleteRecordError{Index: b.index, Line: b.line, Missing: p.missing, Invalid: p.invalid}
	}
	return rec, nil
}
