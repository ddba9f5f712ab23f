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
	"errors"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nlnwa/wcprod"
)

// DefaultBatchSize is the number of rows inserted per transaction.
const DefaultBatchSize = 10000

var schema = []string{
	`CREATE TABLE IF NOT EXISTS production (
		api TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		ogrid TEXT,
		pool TEXT,
		days INTEGER,
		phase TEXT NOT NULL,
		amount REAL NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS production_api_period ON production (api, year, month);`,
}

const insertProduction = `INSERT INTO production (api, year, month, ogrid, pool, days, phase, amount)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteSink inserts one row per reported volume into the production table.
type SQLiteSink struct {
	db        *sql.DB
	tx        *sql.Tx
	stmt      *sql.Stmt
	batchSize int
	pending   int
}

// OpenSQLite opens or creates the database at path and prepares the production table.
func OpenSQLite(path string, batchSize int) (*SQLiteSink, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One writer; a pool only adds lock contention
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	s := &SQLiteSink{db: db, batchSize: batchSize}
	if err := s.begin(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) begin() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(insertProduction)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	s.tx, s.stmt, s.pending = tx, stmt, 0
	return nil
}

func (s *SQLiteSink) commit() error {
	if s.tx == nil {
		return nil
	}
	_ = s.stmt.Close()
	err := s.tx.Commit()
	s.tx, s.stmt = nil, nil
	return err
}

// Write implements wcprod.Sink.
func (s *SQLiteSink) Write(rec *wcprod.Record) error {
	if s.tx == nil {
		return errors.New("sink: write to closed sqlite sink")
	}
	api := rec.API.String()
	ogrid := sql.NullString{String: rec.OGRID, Valid: rec.OGRID != ""}
	pool := sql.NullString{String: rec.PoolID, Valid: rec.PoolID != ""}
	days := sql.NullInt64{Int64: int64(rec.DaysProduced), Valid: rec.DaysProduced >= 0}
	for _, v := range rec.Volumes {
		if _, err := s.stmt.Exec(api, rec.Period.Year, rec.Period.Month, ogrid, pool, days, v.Phase.String(), v.Amount); err != nil {
			return err
		}
		s.pending++
	}
	if s.pending >= s.batchSize {
		if err := s.commit(); err != nil {
			return err
		}
		return s.begin()
	}
	return nil
}

// Abort rolls back the rows written since the last committed batch and closes the database.
func (s *SQLiteSink) Abort() error {
	var err error
	if s.tx != nil {
		_ = s.stmt.Close()
		err = s.tx.Rollback()
		s.tx, s.stmt = nil, nil
	}
	return errors.Join(err, s.db.Close())
}

// Close implements wcprod.Sink. Pending rows are committed.
func (s *SQLiteSink) Close() error {
	err := s.commit()
	return errors.Join(err, s.db.Close())
}
