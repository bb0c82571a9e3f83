//
// Copyright 2020 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package worker

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/differential-privacy/quorum/artifact"
	"github.com/google/differential-privacy/quorum/task"
)

// Store is a client's personal data store. Query runs a task's featurizer
// and returns its rows.
type Store interface {
	Query(ctx context.Context, featurizer string) ([]task.Record, error)
}

// MemoryStore answers featurizers from a fixed table of results.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string][]task.Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string][]task.Record)}
}

// Put sets the rows returned for featurizer.
func (s *MemoryStore) Put(featurizer string, rows []task.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[featurizer] = rows
}

// Query implements Store.
func (s *MemoryStore) Query(_ context.Context, featurizer string) ([]task.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.results[featurizer]
	if !ok {
		return nil, fmt.Errorf("no data for featurizer %q", featurizer)
	}
	return rows, nil
}

// SQLStore runs featurizers as SQL queries against a database, for example
// PostgreSQL through lib/pq.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore returns a Store backed by db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// numericTypes are the database column types whose text values are numbers.
var numericTypes = map[string]bool{
	"NUMERIC": true,
	"DECIMAL": true,
	"REAL":    true,
	"FLOAT4":  true,
	"FLOAT8":  true,
	"INT2":    true,
	"INT4":    true,
	"INT8":    true,
}

// Query implements Store. Numeric and boolean columns become numbers, text
// columns categories. NULLs are left out of their row.
func (s *SQLStore) Query(ctx context.Context, featurizer string) ([]task.Record, error) {
	rows, err := s.db.QueryContext(ctx, featurizer)
	if err != nil {
		return nil, fmt.Errorf("running featurizer: %w", err)
	}
	defer rows.Close()
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	var out []task.Record
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(task.Record, len(cols))
		for i, col := range cols {
			if values[i] == nil {
				continue
			}
			v, err := fieldValue(values[i], numericTypes[strings.ToUpper(col.DatabaseTypeName())])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name(), err)
			}
			rec[col.Name()] = v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func fieldValue(v any, numeric bool) (artifact.FieldValue, error) {
	switch v := v.(type) {
	case int64:
		return artifact.Num(float64(v)), nil
	case float64:
		return artifact.Num(v), nil
	case bool:
		if v {
			return artifact.Num(1), nil
		}
		return artifact.Num(0), nil
	case []byte:
		return textValue(string(v), numeric)
	case string:
		return textValue(v, numeric)
	case time.Time:
		return artifact.Num(float64(v.Unix())), nil
	default:
		return artifact.FieldValue{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func textValue(s string, numeric bool) (artifact.FieldValue, error) {
	if !numeric {
		return artifact.Cat(s), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return artifact.FieldValue{}, err
	}
	return artifact.Num(f), nil
}
