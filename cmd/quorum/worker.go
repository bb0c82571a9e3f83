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

package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/quorum/protocol"
	"github.com/google/differential-privacy/quorum/task"
	"github.com/google/differential-privacy/quorum/worker"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newWorkerCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Contribute local data to pending tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := openStore(v)
			if err != nil {
				return err
			}
			defer closeStore()
			client := protocol.NewClient(v.GetString("server"), &protocol.ClientOptions{
				Attempts: v.GetInt("attempts"),
				Backoff:  v.GetDuration("backoff"),
			})
			w := worker.New(client, store, &worker.Options{Interval: v.GetDuration("interval")})
			log.Infof("Polling %s every %v", v.GetString("server"), v.GetDuration("interval"))
			w.Run(cmd.Context())
			return nil
		},
	}
	f := cmd.Flags()
	f.String("server", "http://localhost:8080", "platform base URL")
	f.Duration("interval", time.Second, "interval between two polls")
	f.Int("attempts", 3, "attempts per request before giving up")
	f.Duration("backoff", 100*time.Millisecond, "retry backoff, multiplied by the attempt number")
	f.String("postgres", "", "PostgreSQL DSN; featurizers are run as SQL queries")
	f.String("data", "", "JSON file mapping featurizer names to records")
	return cmd
}

// openStore returns the SQL store when a DSN is configured and the JSON
// backed memory store otherwise.
func openStore(v *viper.Viper) (worker.Store, func(), error) {
	dsn, data := v.GetString("postgres"), v.GetString("data")
	switch {
	case dsn != "" && data != "":
		return nil, nil, errors.New("--postgres and --data are mutually exclusive")
	case dsn != "":
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, nil, err
		}
		return worker.NewSQLStore(db), func() { db.Close() }, nil
	case data != "":
		s, err := loadMemoryStore(data)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		return nil, nil, errors.New("one of --postgres or --data is required")
	}
}

// loadMemoryStore reads a file of the form
//
//	{"featurizer": [{"field": {"number": 1.5}, "other": {"category": "a"}}]}
func loadMemoryStore(path string) (*worker.MemoryStore, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data map[string][]task.Record
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}
	s := worker.NewMemoryStore()
	for featurizer, rows := range data {
		s.Put(featurizer, rows)
	}
	return s, nil
}
