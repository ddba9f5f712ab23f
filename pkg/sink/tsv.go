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

// Package sink contains consumers which write production records to files and databases.
package sink

import (
	"bufio"
	"io"
	"strconv"

	"github.com/nlnwa/wcprod"
)

// TSVHeader is the first line written by TSVWriter.
const TSVHeader = "api\tyear\tmonth\togrid\tpool\tdays\toil\tgas\twater\n"

// TSVWriter writes one tab separated line per record. Phases not reported by a record are left empty.
type TSVWriter struct {
	w           *bufio.Writer
	wroteHeader bool
	line        []byte
}

// NewTSVWriter creates a TSVWriter writing to w. Close flushes, but does not close, w.
func NewTSVWriter(w io.Writer) *TSVWriter {
	return &TSVWriter{w: bufio.NewWriterSize(w, 64*1024)}
}

// Write implements wcprod.Sink.
func (t *TSVWriter) Write(rec *wcprod.Record) error {
	if !t.wroteHeader {
		if _, err := t.w.WriteString(TSVHeader); err != nil {
			return err
		}
		t.wroteHeader = true
	}

	b := t.line[:0]
	b = append(b, rec.API.String()...)
	b = append(b, '\t')
	b = strconv.AppendUint(b, uint64(rec.Period.Year), 10)
	b = append(b, '\t')
	b = strconv.AppendUint(b, uint64(rec.Period.Month), 10)
	b = append(b, '\t')
	b = append(b, rec.OGRID...)
	b = append(b, '\t')
	b = append(b, rec.PoolID...)
	b = append(b, '\t')
	if rec.DaysProduced >= 0 {
		b = strconv.AppendInt(b, int64(rec.DaysProduced), 10)
	}
	for _, p := range []wcprod.Phase{wcprod.Oil, wcprod.Gas, wcprod.Water} {
		b = append(b, '\t')
		if v, ok := rec.Volume(p); ok {
			b = strconv.AppendFloat(b, v, 'f', -1, 64)
		}
	}
	b = append(b, '\n')
	t.line = b

	_, err := t.w.Write(b)
	return err
}

// Close implements wcprod.Sink.
func (t *TSVWriter) Close() error {
	return t.w.Flush()
}
