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
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoRecords = `<?xml version="1.0" encoding="utf-16"?>
<root xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <wcproduction>
    <api_st_cde>30</api_st_cde>
    <api_cnty_cde>15</api_cnty_cde>
    <api_well_idn>20345</api_well_idn>
    <pool_idn>PERMIAN &amp; DELAWARE</pool_idn>
    <prodn_mth>1</prodn_mth>
    <prodn_yr>2019</prodn_yr>
    <prd_knd_cde>O</prd_knd_cde>
    <prod_amt>1234.5</prod_amt>
  </wcproduction>
  <wcproduction>
    <api_st_cde>30</api_st_cde>
    <api_cnty_cde>25</api_cnty_cde>
    <api_well_idn>7</api_well_idn>
    <pool_idn>BLINEBRY</pool_idn>
    <prodn_mth>2</prodn_mth>
    <prodn_yr>2019</prodn_yr>
    <prd_knd_cde>G</prd_knd_cde>
    <prod_amt>42</prod_amt>
  </wcproduction>
</root>
`

func TestProductionReader_TwoRecords(t *testing.T) {
	require.Less(t, len(twoRecords), 1024)
	input := encodeUTF16(t, twoRecords, LittleEndian, true)

	for _, chunkSize := range []int{1, 2, 3, 7, 64, 1 << 16} {
		assert := assert.New(t)
		pr := NewProductionReader(bytes.NewReader(input), WithMaxChunkBytes(chunkSize))

		rec, err := pr.Next()
		require.NoError(t, err, "chunk size %d", chunkSize)
		assert.Equal("3001520345", rec.API.String())
		assert.Equal("PERMIAN & DELAWARE", rec.PoolID)
		assert.Equal(Period{Year: 2019, Month: 1}, rec.Period)
		assert.Equal([]Volume{{Phase: Oil, Amount: 1234.5}}, rec.Volumes)

		rec, err = pr.Next()
		require.NoError(t, err, "chunk size %d", chunkSize)
		assert.Equal("3002500007", rec.API.String())
		assert.Equal("BLINEBRY", rec.PoolID)
		assert.Equal([]Volume{{Phase: Gas, Amount: 42}}, rec.Volumes)

		_, err = pr.Next()
		assert.Equal(io.EOF, err)
		_, err = pr.Next()
		assert.Equal(io.EOF, err)

		assert.Equal(LittleEndian, pr.Endianness())
		cur := pr.Cursor()
		assert.Equal(int64(len(input)), cur.BytesRead)
		assert.Equal(int64(len([]rune(twoRecords))), cur.CodePoints)
		assert.Equal(int64(2), cur.Records)
		assert.Equal(int64(0), cur.RecordErrors)
	}
}

func TestProductionReader_BigEndianFallback(t *testing.T) {
	input := encodeUTF16(t, twoRecords, BigEndian, false)

	pr := NewProductionReader(bytes.NewReader(input))
	_, err := pr.Next()
	var encErr *EncodingError
	assert.ErrorAs(t, err, &encErr)

	pr = NewProductionReader(bytes.NewReader(input), WithDefaultEndianness(BigEndian))
	n := 0
	for rec, err := range pr.All() {
		require.NoError(t, err)
		require.NotNil(t, rec)
		n++
	}
	assert.Equal(t, 2, n)
	assert.Equal(t, BigEndian, pr.Endianness())
}

func TestProductionReader_All(t *testing.T) {
	doc := document(record(15, 1, 1, 1), `<api_st_cde>30</api_st_cde>`, record(15, 3, 1, 1)) +
		"<trailing>" // not closed

	pr := NewProductionReader(bytes.NewReader(encodeUTF16(t, doc, LittleEndian, true)))
	var wells []uint32
	var errs []error
	for rec, err := range pr.All() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		wells = append(wells, rec.API.Well)
	}
	assert.Equal(t, []uint32{1, 3}, wells)
	require.Len(t, errs, 2)
	assert.True(t, IsRecoverable(errs[0]))
	assert.ErrorIs(t, errs[1], ErrUnexpectedEOF)

	// Stopping early
	pr = NewProductionReader(bytes.NewReader(encodeUTF16(t, doc, LittleEndian, true)))
	for range pr.All() {
		break
	}
	assert.Equal(t, int64(1), pr.Cursor().Records)
}

func TestProductionReader_MismatchedEndTag(t *testing.T) {
	assert := assert.New(t)
	doc := "<root><wcproduction>" + record(15, 1, 1, 1) + "</wcproduction>\n<wcproduction>" + record(15, 2, 1, 1) +
		"</wcproduction_x>\n<wcproduction>" + record(15, 3, 1, 1) + "</wcproduction></root>"
	pr := NewProductionReader(bytes.NewReader(encodeUTF16(t, doc, LittleEndian, true)))

	_, err := pr.Next()
	require.NoError(t, err)

	_, err = pr.Next()
	var xmlErr *MalformedXMLError
	require.ErrorAs(t, err, &xmlErr)
	assert.ErrorIs(err, ErrMismatchedEndTag)
	assert.Equal(2, xmlErr.Line)

	for i := 0; i < 3; i++ {
		rec, err2 := pr.Next()
		assert.Nil(rec)
		assert.Equal(err, err2)
	}
	assert.Equal(int64(1), pr.Cursor().Records)
}

func TestProductionReader_ReadError(t *testing.T) {
	input := encodeUTF16(t, twoRecords, LittleEndian, true)
	pr := NewProductionReader(iotest.TimeoutReader(bytes.NewReader(input)), WithMaxChunkBytes(64))

	_, err := pr.Next()
	var ioErr *IoError
	require.ErrorAs(t, err, &ioErr)
	assert.ErrorIs(t, err, iotest.ErrTimeout)
	assert.False(t, IsRecoverable(err))
}

func TestProductionReader_TruncatedGzip(t *testing.T) {
	var doc bytes.Buffer
	doc.WriteString("<root>\n")
	for i := 1; i <= 2000; i++ {
		fmt.Fprintf(&doc, "<wcproduction>"+recordFields+"</wcproduction>\n", 15, i, 1, i)
	}
	doc.WriteString("</root>\n")

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	_, err := zw.Write(encodeUTF16(t, doc.String(), LittleEndian, true))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	truncated := compressed.Bytes()[:compressed.Len()/2]

	zr, err := gzip.NewReader(bytes.NewReader(truncated))
	require.NoError(t, err)
	pr := NewProductionReader(zr)

	n := 0
	for rec, err := range pr.All() {
		if err != nil {
			var ioErr *IoError
			require.ErrorAs(t, err, &ioErr)
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
			break
		}
		require.NotNil(t, rec)
		n++
	}
	assert.Greater(t, n, 0)
	assert.Less(t, n, 2000)

	_, err = pr.Next()
	var ioErr *IoError
	assert.ErrorAs(t, err, &ioErr)
}

func TestProductionFileReader(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "wcproduction.zip")

	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("wcproduction.xml")
	require.NoError(t, err)
	_, err = w.Write(encodeUTF16(t, twoRecords, LittleEndian, true))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	pr, err := NewProductionFileReader(path)
	require.NoError(t, err)
	defer func() { _ = pr.Close() }()
	assert.Equal("wcproduction.xml", pr.Name())

	n := 0
	for _, err := range pr.All() {
		require.NoError(t, err)
		n++
	}
	assert.Equal(2, n)

	read, size := pr.Progress()
	assert.Greater(size, int64(0))
	assert.LessOrEqual(read, size)
	assert.Greater(read, int64(0))
}

func TestProductionFileReader_Missing(t *testing.T) {
	_, err := NewProductionFileReader(filepath.Join(t.TempDir(), "missing.zip"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
