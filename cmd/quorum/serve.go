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
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/quorum/platform"
	"github.com/google/differential-privacy/quorum/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the platform and its HTTP protocol",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), v)
		},
	}
	f := cmd.Flags()
	f.String("addr", ":8080", "listen address")
	f.Duration("sweep-interval", time.Second, "interval between two aggregation sweeps")
	f.Duration("retention", 24*time.Hour, "age after which finished tasks are deleted")
	f.Int("parallelism", 0, "aggregations run concurrently by a sweep (0 is GOMAXPROCS)")
	return cmd
}

func serve(ctx context.Context, v *viper.Viper) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	p := platform.New(&platform.Options{
		Parallelism: v.GetInt("parallelism"),
		Registerer:  reg,
	})
	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           protocol.NewServer(p, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go p.Sweep(ctx, v.GetDuration("sweep-interval"), v.GetDuration("retention"))

	errc := make(chan error, 1)
	go func() {
		log.Infof("Serving on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
