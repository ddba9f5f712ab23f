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
	"strings"
)

// WellAPI is the American Petroleum Institute well number, made up of state code, county code and a
// unique well identifier within the county.
type WellAPI struct {
	State  uint8
	County uint16
	Well   uint32
}

// String returns the ten digit API number.
func (a WellAPI) String() string {
	return fmt.Sprintf("%02d%03d%05d", a.State, a.County, a.Well)
}

// ParseWellAPI parses a ten digit API number. Dashes are allowed as separators.
func ParseWellAPI(s string) (WellAPI, error) {
	digits := strings.ReplaceAll(s, "-", "")
	if len(digits) != 10 {
		return WellAPI{}, fmt.Errorf("wcprod: api number '%s' must have 10 digits", s)
	}
	state, err := strconv.ParseUint(digits[0:2], 10, 8)
	if err != nil {
		return WellAPI{}, fmt.Errorf("wcprod: api number '%s': %w", s, err)
	}
	county, err := strconv.ParseUint(digits[2:5], 10, 16)
	if err != nil {
		return WellAPI{}, fmt.Errorf("wcprod: api number '%s': %w", s, err)
	}
	well, err := strconv.ParseUint(digits[5:10], 10, 32)
	if err != nil {
		return WellAPI{}, fmt.Errorf("wcprod: api number '%s': %w", s, err)
	}
	return WellAPI{State: uint8(state), County: uint16(county), Well: uint32(well)}, nil
}

// Period is the reporting month of a production record.
type Period struct {
	Year  uint16
	Month uint8
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Phase is the kind of produced substance.
type Phase uint8

const (
	Oil Phase = iota
	Gas
	Water
)

var phaseNames = [...]string{"oil", "gas", "water"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// Code returns the one letter product kind code used in the release.
func (p Phase) Code() string {
	switch p {
	case Oil:
		return "O"
	case Gas:
		return "G"
	case Water:
		return "W"
	}
	return ""
}

// parsePhase interprets a product kind code. Only the first letter is significant.
func parsePhase(code string) (Phase, error) {
	if code == "" {
		return 0, fmt.Errorf("empty product kind")
	}
	switch code[0] {
	case 'O', 'o':
		return Oil, nil
	case 'G', 'g':
		return Gas, nil
	case 'W', 'w':
		return Water, nil
	}
	return 0, fmt.Errorf("unknown product kind")
}

// Volume is a produced amount of one substance.
type Volume struct {
	Phase  Phase
	Amount float64
}

func (v Volume) String() string {
	return v.Phase.String() + "=" + strconv.FormatFloat(v.Amount, 'f', -1, 64)
}

// Record is the production reported for one well in one month.
type Record struct {
	Index        int64 // Ordinal of the record element in the document, starting at 1
	Line         int   // Line where the record element starts
	API          WellAPI
	Period       Period
	OGRID        string // Operator id, empty when not reported
	PoolID       string // Pool id, empty when not reported
	DaysProduced int    // -1 when not reported
	Volumes      []Volume
}

// Volume returns the amount reported for phase p, and whether the phase was reported at all.
// If the phase is reported more than once, the amounts are summed.
func (r *Record) Volume(p Phase) (float64, bool) {
	var sum float64
	found := false
	for _, v := range r.Volumes {
		if v.Phase == p {
			sum += v.Amount
			found = true
		}
	}
	return sum, found
}

func (r *Record) String() string {
	vols := make([]string, len(r.Volumes))
	for i, v := range r.Volumes {
		vols[i] = v.String()
	}
	return fmt.Sprintf("production record: api: %s, period: %s, volumes: [%s]", r.API, r.Period, strings.Join(vols, " "))
}
