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

// Package pivot aggregates production records into one row per well and month.
//
// A release holds one record per well, month and product kind. The Table merges these into oil, gas and
// water columns in an on-disk store, so the size of the table is not limited by memory.
package pivot

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/cockroachdb/pebble"
	"github.com/nlnwa/wcprod"
)

// Header is the first line written by WriteTo.
const Header = "api\tyear\tmonth\toil\tgas\twater\n"

const (
	keyLen   = 16 // api(10) year(4) month(2)
	valueLen = 1 + 3*8
)

// Row is the aggregated production of one well in one month. A nil volume means the phase was never reported.
type Row struct {
	API    wcprod.WellAPI
	Period wcprod.Period
	Oil    *float64
	Gas    *float64
	Water  *float64
}

// Table is a disk backed pivot table.
type Table struct {
	db            *pebble.DB
	dir           string
	removeOnClose bool
	rows          int64
}

// Open opens a table stored in dir. If dir is empty, a temporary directory is used and removed by Close.
func Open(dir string) (*Table, error) {
	t := &Table{dir: dir}
	if dir == "" {
		tmp, err := os.MkdirTemp("", "wcprod-pivot-")
		if err != nil {
			return nil, err
		}
		t.dir, t.removeOnClose = tmp, true
	}
	db, err := pebble.Open(t.dir, &pebble.Options{})
	if err != nil {
		if t.removeOnClose {
			_ = os.RemoveAll(t.dir)
		}
		return nil, err
	}
	t.db = db
	return t, nil
}

// Write implements wcprod.Sink. Volumes for the same well, month and phase are summed.
func (t *Table) Write(rec *wcprod.Record) error {
	key := encodeKey(rec.API, rec.Period)
	var value [valueLen]byte
	data, closer, err := t.db.Get(key)
	switch {
	case err == nil:
		copy(value[:], data)
		_ = closer.Close()
	case errors.Is(err, pebble.ErrNotFound):
		t.rows++
	default:
		return err
	}

	for _, v := range rec.Volumes {
		i := int(v.Phase)
		if i > 2 {
			continue
		}
		off := 1 + i*8
		sum := v.Amount
		if value[0]&(1<<i) != 0 {
			sum += math.Float64frombits(binary.BigEndian.Uint64(value[off:]))
		}
		binary.BigEndian.PutUint64(value[off:], math.Float64bits(sum))
		value[0] |= 1 << i
	}
	return t.db.Set(key, value[:], pebble.NoSync)
}

// Rows returns the number of distinct well and month combinations written.
func (t *Table) Rows() int64 {
	return t.rows
}

// Each calls fn for every row ordered by API number and period. Iteration stops at the first error.
func (t *Table) Each(fn func(Row) error) error {
	iter, err := t.db.NewIter(nil)
	if err != nil {
		return err
	}
	for valid := iter.First(); valid; valid = iter.Next() {
		row, err := decodeRow(iter.Key(), iter.Value())
		if err != nil {
			_ = iter.Close()
			return err
		}
		if err := fn(row); err != nil {
			_ = iter.Close()
			return err
		}
	}
	return iter.Close()
}

// WriteTo writes the table as tab separated values with a header line.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriterSize(w, 64*1024)
	var n int64
	c, err := bw.WriteString(Header)
	n += int64(c)
	if err != nil {
		return n, err
	}

	var line []byte
	err = t.Each(func(r Row) error {
		line = append(line[:0], r.API.String()...)
		line = append(line, '\t')
		line = strconv.AppendUint(line, uint64(r.Period.Year), 10)
		line = append(line, '\t')
		line = strconv.AppendUint(line, uint64(r.Period.Month), 10)
		for _, v := range []*float64{r.Oil, r.Gas, r.Water} {
			line = append(line, '\t')
			if v != nil {
				line = strconv.AppendFloat(line, *v, 'f', -1, 64)
			}
		}
		line = append(line, '\n')
		c, err := bw.Write(line)
		n += int64(c)
		return err
	})
	if err != nil {
		return n, err
	}
	return n, bw.Flush()
}

// Close closes the store and removes it if it was temporary.
func (t *Table) Close() error {
	err := t.db.Close()
	if t.removeOnClose {
		err = errors.Join(err, os.RemoveAll(t.dir))
	}
	return err
}

func encodeKey(api wcprod.WellAPI, p wcprod.Period) []byte {
	key := make([]byte, 0, keyLen)
	key = append(key, api.String()...)
	key = append(key, fmt.Sprintf("%04d%02d", p.Year, p.Month)...)
	return key
}

func decodeRow(key, value []byte) (Row, error) {
	if len(key) != keyLen || len(value) != valueLen {
		return Row{}, fmt.Errorf("pivot: corrupt entry %q", key)
	}
	var row Row
	var err error
	if row.API, err = wcprod.ParseWellAPI(string(key[:10])); err != nil {
		return Row{}, err
	}
	year, err := strconv.ParseUint(string(key[10:14]), 10, 16)
	if err != nil {
		return Row{}, fmt.Errorf("pivot: corrupt entry %q: %w", key, err)
	}
	month, err := strconv.ParseUint(string(key[14:16]), 10, 8)
	if err != nil {
		return Row{}, fmt.Errorf("pivot: corrupt entry %q: %w", key, err)
	}
	row.Period = wcprod.Period{Year: uint16(year), Month: uint8(month)}

	cols := []**float64{&row.Oil, &row.Gas, &row.Water}
	for i, col := range cols {
		if value[0]&(1<<i) == 0 {
			continue
		}
		v := math.Float64frombits(binary.BigEndian.Uint64(value[1+i*8:]))
		*col = &v
	}
	return row, nil
}
