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

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=mocks/mock_sink.go -package=mocks github.com/nlnwa/wcprod Sink

import (
	"context"
	"fmt"
	"io"
)

// Sink receives records in document order.
type Sink interface {
	Write(record *Record) error
	Close() error
}

// Summary is the outcome of ExtractTo.
type Summary struct {
	Records      int64
	RecordErrors int64
}

func (s Summary) String() string {
	return fmt.Sprintf("records: %d, record errors: %d", s.Records, s.RecordErrors)
}

// ExtractTo reads records from r and writes them to sink until end of document.
//
// Recoverable record errors are passed to onRecordError, if not nil, and reading continues.
// The context is checked between records; on cancellation the context's error is returned.
// The sink is not closed.
func ExtractTo(ctx context.Context, r RecordReader, sink Sink, onRecordError func(error)) (Summary, error) {
	var s Summary
	for {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		rec, err := r.Next()
		switch {
		case err == io.EOF:
			return s, nil
		case IsRecoverable(err):
			s.RecordErrors++
			if onRecordError != nil {
				onRecordError(err)
			}
			continue
		case err != nil:
			return s, err
		}
		if err := sink.Write(rec); err != nil {
			return s, fmt.Errorf("wcprod: writing record %d: %w", rec.Index, err)
		}
		s.Records++
	}
}
