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
	"strconv"
)

// fieldParser converts raw field values, collecting problems instead of stopping at the first one.
type fieldParser struct {
	values  map[string]string
	missing []string
	invalid []FieldError
}

func (p *fieldParser) unsigned(name string, bitSize int, lo, hi uint64) uint64 {
	s, ok := p.values[name]
	if !ok {
		p.missing = append(p.missing, name)
		return 0
	}
	v, err := strconv.ParseUint(s, 10, bitSize)
	if err != nil {
		p.invalid = append(p.invalid, FieldError{Field: name, Value: s, Err: unwrapNumError(err)})
		return 0
	}
	if v < lo || v > hi {
		p.invalid = append(p.invalid, FieldError{Field: name, Value: s, Err: fmt.Errorf("out of range %d-%d", lo, hi)})
		return 0
	}
	return v
}

func (p *fieldParser) float(name, s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.invalid = append(p.invalid, FieldError{Field: name, Value: s, Err: unwrapNumError(err)})
		return 0, false
	}
	return v, true
}

func unwrapNumError(err error) error {
	if ne, ok := err.(*strconv.NumError); ok {
		return ne.Err
	}
	return err
}
