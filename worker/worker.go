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

// Package worker is the client side of the protocol: it polls the platform
// for pending tasks, featurizes its local data store and submits privatized
// contributions.
package worker

import (
	"context"
	"errors"
	"time"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/quorum/task"
)

// Client is the part of protocol.Client a Worker uses.
type Client interface {
	Tasks(ctx context.Context, onlyPending bool) (map[string]task.Task, error)
	Submit(ctx context.Context, id string, c task.Contribution) (bool, error)
}

// Options configures a Worker. The zero value is usable.
type Options struct {
	// Interval between two polls. Defaults to one second.
	Interval time.Duration
}

// Worker contributes to each pending task at most once. It is not safe for
// concurrent use.
type Worker struct {
	client   Client
	store    Store
	interval time.Duration
	// handled holds the tasks this worker is done with, whether it
	// contributed or gave up on them.
	handled map[string]bool
}

// New returns a Worker that answers tasks from store.
func New(client Client, store Store, opts *Options) *Worker {
	if opts == nil {
		opts = &Options{}
	}
	w := &Worker{
		client:   client,
		store:    store,
		interval: opts.Interval,
		handled:  make(map[string]bool),
	}
	if w.interval <= 0 {
		w.interval = time.Second
	}
	return w
}

// Poll lists the pending tasks once and handles each new one. It returns the
// number of contributions the platform accepted. Tasks whose submission
// could not reach the platform are retried by the next Poll; tasks that fail
// locally are logged and skipped from then on.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	pending, err := w.client.Tasks(ctx, true)
	if err != nil {
		return 0, err
	}
	accepted := 0
	var transportErr error
	for id, t := range pending {
		if w.handled[id] {
			continue
		}
		c, err := w.contribution(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return accepted, ctx.Err()
			}
			log.Warningf("Skipping task %s: %v", id, err)
			w.handled[id] = true
			continue
		}
		ok, err := w.client.Submit(ctx, id, c)
		if err != nil {
			log.Warningf("Submitting to task %s: %v", id, err)
			transportErr = errors.Join(transportErr, err)
			continue
		}
		w.handled[id] = true
		if ok {
			accepted++
		} else {
			log.V(1).Infof("Task %s declined the contribution", id)
		}
	}
	return accepted, transportErr
}

func (w *Worker) contribution(ctx context.Context, t task.Task) (task.Contribution, error) {
	rows, err := w.store.Query(ctx, t.Featurizer)
	if err != nil {
		return task.Contribution{}, err
	}
	return Contribute(t, rows)
}

// Run polls every interval until ctx is done. Poll errors are logged.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if n, err := w.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warningf("Poll: %v", err)
		} else if n > 0 {
			log.Infof("Contributed to %d tasks", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
