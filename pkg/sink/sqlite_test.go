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

package sink

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/nlnwa/wcprod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM production").Scan(&n))
	return n
}

func TestSQLiteSink(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "production.db")

	s, err := OpenSQLite(path, 0)
	require.NoError(t, err)

	full := record(20345, 1, wcprod.Volume{Phase: wcprod.Oil, Amount: 1234.5}, wcprod.Volume{Phase: wcprod.Gas, Amount: 10})
	full.OGRID = "14744"
	full.DaysProduced = 31
	require.NoError(t, s.Write(full))
	require.NoError(t, s.Write(record(7, 2, wcprod.Volume{Phase: wcprod.Water, Amount: 3})))
	require.NoError(t, s.Close())
	assert.Error(s.Write(full))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	assert.Equal(3, countRows(t, db))

	rows, err := db.Query("SELECT api, year, month, ogrid, pool, days, phase, amount FROM production ORDER BY api, phase")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	type row struct {
		api         string
		year, month int
		ogrid, pool sql.NullString
		days        sql.NullInt64
		phase       string
		amount      float64
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.api, &r.year, &r.month, &r.ogrid, &r.pool, &r.days, &r.phase, &r.amount))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())

	ogrid := sql.NullString{String: "14744", Valid: true}
	days := sql.NullInt64{Int64: 31, Valid: true}
	assert.Equal([]row{
		{"3001500007", 2019, 2, sql.NullString{}, sql.NullString{}, sql.NullInt64{}, "water", 3},
		{"3001520345", 2019, 1, ogrid, sql.NullString{}, days, "gas", 10},
		{"3001520345", 2019, 1, ogrid, sql.NullString{}, days, "oil", 1234.5},
	}, got)
}

func TestSQLiteSink_Batches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "production.db")
	s, err := OpenSQLite(path, 2)
	require.NoError(t, err)

	for i := uint32(1); i <= 3; i++ {
		require.NoError(t, s.Write(record(i, 1, wcprod.Volume{Phase: wcprod.Oil, Amount: float64(i)})))
	}

	// The first two rows are committed, the third is still pending
	reader, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()
	assert.Equal(t, 2, countRows(t, reader))

	require.NoError(t, s.Close())
	assert.Equal(t, 3, countRows(t, reader))
}

func TestSQLiteSink_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "production.db")
	for i := 0; i < 2; i++ {
		s, err := OpenSQLite(path, 0)
		require.NoError(t, err)
		require.NoError(t, s.Write(record(1, 1, wcprod.Volume{Phase: wcprod.Oil, Amount: 1})))
		require.NoError(t, s.Close())
	}

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	assert.Equal(t, 2, countRows(t, db))
}

func TestSQLiteSink_Abort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "production.db")
	s, err := OpenSQLite(path, 2)
	require.NoError(t, err)

	for i := uint32(1); i <= 3; i++ {
		require.NoError(t, s.Write(record(i, 1, wcprod.Volume{Phase: wcprod.Oil, Amount: float64(i)})))
	}
	require.NoError(t, s.Abort())
	assert.Error(t, s.Write(record(4, 1)))

	// Committed batches are kept, the open one is rolled back
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	assert.Equal(t, 2, countRows(t, db))
}
