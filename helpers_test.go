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
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	xunicode "golang.org/x/text/encoding/unicode"
)

// encodeUTF16 encodes s as UTF-16 with the given byte order, optionally prefixed with a byte-order mark.
func encodeUTF16(t *testing.T, s string, e Endianness, bom bool) []byte {
	t.Helper()
	order := xunicode.LittleEndian
	if e == BigEndian {
		order = xunicode.BigEndian
	}
	policy := xunicode.IgnoreBOM
	if bom {
		policy = xunicode.UseBOM
	}
	b, err := xunicode.UTF16(order, policy).NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return b
}

// sliceSource is a ChunkSource returning predefined chunks.
type sliceSource struct {
	chunks [][]byte
	err    error // returned after the last chunk instead of io.EOF
}

func (s *sliceSource) NextChunk() ([]byte, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

// splitEvery splits b into chunks of size n.
func splitEvery(b []byte, n int) [][]byte {
	var chunks [][]byte
	for len(b) > n {
		chunks = append(chunks, b[:n])
		b = b[n:]
	}
	if len(b) > 0 {
		chunks = append(chunks, b)
	}
	return chunks
}

// runeSource is a CodePointSource over a string.
type runeSource struct {
	runes []rune
}

func newRuneSource(s string) *runeSource {
	return &runeSource{runes: []rune(s)}
}

func (r *runeSource) NextCodePoint() (CodePoint, error) {
	if len(r.runes) == 0 {
		return CodePoint{}, io.EOF
	}
	c := r.runes[0]
	r.runes = r.runes[1:]
	w := 2
	if c > 0xFFFF {
		w = 4
	}
	return CodePoint{Rune: c, Width: w}, nil
}

// tokenSlice is a TokenSource returning predefined tokens.
type tokenSlice struct {
	tokens []Token
	err    error
}

func (s *tokenSlice) NextToken() (Token, error) {
	if len(s.tokens) == 0 {
		if s.err != nil {
			return Token{}, s.err
		}
		return Token{}, io.EOF
	}
	tok := s.tokens[0]
	s.tokens = s.tokens[1:]
	return tok, nil
}

// errReader returns data and then fails with err.
type errReader struct {
	data []byte
	err  error
}

func (r *errReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

const recordFields = `<api_st_cde>30</api_st_cde><api_cnty_cde>%d</api_cnty_cde><api_well_idn>%d</api_well_idn>` +
	`<prodn_mth>%d</prodn_mth><prodn_yr>2019</prodn_yr><prd_knd_cde>O</prd_knd_cde><prod_amt>%d</prod_amt>`
