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
	"unicode/utf8"
)

// maxEntityRefLen bounds the name between '&' and ';'. The longest accepted reference is a hex
// character reference of the largest code point.
const maxEntityRefLen = 10

var standardEntities = map[string]rune{
	"lt":   '<',
	"gt":   '>',
	"amp":  '&',
	"apos": '\'',
	"quot": '"',
}

var errInvalidCharRef = fmt.Errorf("%w: invalid character reference", ErrInvalidEntity)

// resolveEntity resolves the reference between '&' and ';'.
func resolveEntity(ref []byte) (rune, error) {
	if len(ref) == 0 {
		return 0, ErrInvalidEntity
	}
	if ref[0] == '#' {
		return parseNumericEntity(ref)
	}
	if r, ok := standardEntities[string(ref)]; ok {
		return r, nil
	}
	return 0, ErrInvalidEntity
}

func parseNumericEntity(ref []byte) (rune, error) {
	if len(ref) < 2 {
		return 0, errInvalidCharRef
	}
	base := 10
	start := 1
	if ref[1] == 'x' {
		base = 16
		start = 2
	}
	if start >= len(ref) {
		return 0, errInvalidCharRef
	}
	var value uint64
	for i := start; i < len(ref); i++ {
		b := ref[i]
		var digit byte
		switch {
		case b >= '0' && b <= '9':
			digit = b - '0'
		case base == 16 && b >= 'a' && b <= 'f':
			digit = b - 'a' + 10
		case base == 16 && b >= 'A' && b <= 'F':
			digit = b - 'A' + 10
		default:
			return 0, errInvalidCharRef
		}
		value = value*uint64(base) + uint64(digit)
		if value > utf8.MaxRune {
			return 0, errInvalidCharRef
		}
	}
	r := rune(value)
	if r == 0 || (r >= 0xD800 && r <= 0xDFFF) || r == 0xFFFE || r == 0xFFFF {
		return 0, errInvalidCharRef
	}
	return r, nil
}
