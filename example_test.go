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

package wcprod_test

import (
	"bytes"
	"fmt"
	"io"

	"github.com/nlnwa/wcprod"
	"golang.org/x/text/encoding/unicode"
)

var release = `<?xml version="1.0" encoding="utf-16"?>
<root>
  <wcproduction>
    <api_st_cde>30</api_st_cde><api_cnty_cde>15</api_cnty_cde><api_well_idn>20345</api_well_idn>
    <prodn_mth>1</prodn_mth><prodn_yr>2019</prodn_yr>
    <prd_knd_cde>O</prd_knd_cde><prod_amt>1234.5</prod_amt>
  </wcproduction>
  <wcproduction>
    <api_st_cde>30</api_st_cde><api_cnty_cde>25</api_cnty_cde><api_well_idn>7</api_well_idn>
    <prodn_mth>1</prodn_mth>
    <prd_knd_cde>G</prd_knd_cde><prod_amt>42</prod_amt>
  </wcproduction>
  <wcproduction>
    <api_st_cde>30</api_st_cde><api_cnty_cde>25</api_cnty_cde><api_well_idn>8</api_well_idn>
    <prodn_mth>2</prodn_mth><prodn_yr>2019</prodn_yr>
    <prd_knd_cde>G</prd_knd_cde><prod_amt>42</prod_amt><prd_knd_cde>W</prd_knd_cde><prod_amt>3</prod_amt>
  </wcproduction>
</root>`

func utf16le(s string) []byte {
	b, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(err)
	}
	return b
}

func ExampleProductionReader() {
	reader := wcprod.NewProductionReader(bytes.NewReader(utf16le(release)))

	for {
		record, err := reader.Next()
		if err == io.EOF {
			break
		}
		if wcprod.IsRecoverable(err) {
			fmt.Println("Skipping:", err)
			continue
		}
		if err != nil {
			fmt.Println("Error reading record:", err)
			return
		}
		fmt.Println(record)
	}

	// Output: production record: api: 3001520345, period: 2019-01, volumes: [oil=1234.5]
	// Skipping: wcprod: incomplete record 2 at line 8: missing prodn_yr
	// production record: api: 3002500008, period: 2019-02, volumes: [gas=42 water=3]
}

func ExampleProductionReader_All() {
	eddy := func(api wcprod.WellAPI) bool { return api.County == 15 }
	reader := wcprod.NewProductionReader(bytes.NewReader(utf16le(release)),
		wcprod.WithWellFilter(eddy),
		wcprod.WithRecordErrorPolicy(wcprod.ErrIgnore))

	for record, err := range reader.All() {
		if err != nil {
			fmt.Println("Error reading record:", err)
			return
		}
		oil, _ := record.Volume(wcprod.Oil)
		fmt.Printf("%s %s oil: %g\n", record.API, record.Period, oil)
	}
	fmt.Println(reader.Cursor().Filtered, "filtered")

	// Output: 3001520345 2019-01 oil: 1234.5
	// 1 filtered
}
