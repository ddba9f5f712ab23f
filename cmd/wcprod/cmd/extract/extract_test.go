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

package extract

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/nlnwa/wcprod"
	"github.com/nlnwa/wcprod/pkg/sink"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

const (
	release = "<root>\n" +
		`<wcproduction><api_st_cde>30</api_st_cde><api_cnty_cde>15</api_cnty_cde><api_well_idn>1</api_well_idn>` +
		`<prodn_mth>1</prodn_mth><prodn_yr>2019</prodn_yr><prd_knd_cde>O</prd_knd_cde><prod_amt>10</prod_amt></wcproduction>` + "\n" +
		`<wcproduction><api_st_cde>30</api_st_cde><api_cnty_cde>15</api_cnty_cde><api_well_idn>1</api_well_idn>` +
		`<prodn_mth>1</prodn_mth><prodn_yr>2019</prodn_yr><prd_knd_cde>G</prd_knd_cde><prod_amt>5</prod_amt></wcproduction>` + "\n" +
		`<wcproduction><api_st_cde>30</api_st_cde><api_cnty_cde>15</api_cnty_cde><api_well_idn>2</api_well_idn>` +
		`<prodn_mth>1</prodn_mth><prd_knd_cde>O</prd_knd_cde><prod_amt>1</prod_amt></wcproduction>` + "\n" +
		"</root>\n"

	broken = "<root>\n" +
		`<wcproduction><api_st_cde>30</api_st_cde><api_cnty_cde>15</api_cnty_cde><api_well_idn>1</api_well_idn>` +
		`<prodn_mth>1</prodn_mth><prodn_yr>2019</prodn_yr><prd_knd_cde>O</prd_knd_cde><prod_amt>10</prod_amt></wcproduction>` + "\n" +
		"<wcproduction><api_st_cde>30</wrong>\n" +
		"</root>\n"
)

// writeRelease stores doc as a zipped UTF-16 release and returns its path.
func writeRelease(t *testing.T, doc string) string {
	t.Helper()
	b, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(doc))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "wcproduction.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("wcproduction.xml")
	require.NoError(t, err)
	_, err = w.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	cmd := NewCommand()
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.Execute()
}

func countRows(t *testing.T, path string) int {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM production").Scan(&n))
	return n
}

func TestExtract(t *testing.T) {
	tests := []struct {
		format string
		check  func(t *testing.T, output string)
	}{
		{"tsv", func(t *testing.T, output string) {
			b, err := os.ReadFile(output)
			require.NoError(t, err)
			assert.Equal(t, sink.TSVHeader+
				"3001500001\t2019\t1\t\t\t\t10\t\t\n"+
				"3001500001\t2019\t1\t\t\t\t\t5\t\n", string(b))
		}},
		{"sqlite", func(t *testing.T, output string) {
			assert.Equal(t, 2, countRows(t, output))
		}},
		{"pivot", func(t *testing.T, output string) {
			b, err := os.ReadFile(output)
			require.NoError(t, err)
			assert.Equal(t, "api\tyear\tmonth\toil\tgas\twater\n3001500001\t2019\t1\t10\t5\t\n", string(b))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			path := writeRelease(t, release)
			output := filepath.Join(t.TempDir(), "out."+tt.format)

			require.NoError(t, execute(t, path, "--format", tt.format, "--output", output, "--batch-size", "1"))
			assert.NoFileExists(t, output+sink.OpenFileSuffix)
			tt.check(t, output)
		})
	}
}

func TestExtract_Aborted(t *testing.T) {
	for _, format := range []string{"tsv", "pivot"} {
		t.Run(format, func(t *testing.T) {
			path := writeRelease(t, broken)
			output := filepath.Join(t.TempDir(), "out."+format)

			var malformed *wcprod.MalformedXMLError
			assert.ErrorAs(t, execute(t, path, "--format", format, "--output", output), &malformed)
			assert.NoFileExists(t, output)
			assert.NoFileExists(t, output+sink.OpenFileSuffix)
		})
	}

	t.Run("sqlite", func(t *testing.T) {
		path := writeRelease(t, broken)
		output := filepath.Join(t.TempDir(), "out.sqlite")

		var malformed *wcprod.MalformedXMLError
		assert.ErrorAs(t, execute(t, path, "--format", "sqlite", "--output", output), &malformed)
		assert.Equal(t, 0, countRows(t, output))
	})
}

func TestExtract_InvalidArguments(t *testing.T) {
	path := writeRelease(t, release)
	assert.Error(t, execute(t))
	assert.Error(t, execute(t, path, "--format", "xml", "--output", filepath.Join(t.TempDir(), "out")))
	assert.Error(t, execute(t, path, "--format", "sqlite"))
	assert.Error(t, execute(t, filepath.Join(t.TempDir(), "missing.zip")))
}

func TestProgressSink(t *testing.T) {
	var buf bytes.Buffer
	var reports []int64
	p := &progressSink{Sink: sink.NewTSVWriter(&buf), every: 2, report: func(n int64) {
		reports = append(reports, n)
	}}

	rec := &wcprod.Record{
		API:          wcprod.WellAPI{State: 30, County: 15, Well: 1},
		Period:       wcprod.Period{Year: 2019, Month: 1},
		DaysProduced: -1,
		Volumes:      []wcprod.Volume{{Phase: wcprod.Oil, Amount: 1}},
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Write(rec))
	}
	require.NoError(t, p.Close())

	assert.Equal(t, []int64{2, 4}, reports)
	assert.Equal(t, 6, bytes.Count(buf.Bytes(), []byte("\n")))
}
