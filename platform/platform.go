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

// Package platform owns the task table: it creates tasks, gates contributions
// on quorum, runs each task's aggregation at most once and reclaims memory.
package platform

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/quorum/dispatch"
	"github.com/google/differential-privacy/quorum/task"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned by Fetch for an unknown task id.
var ErrNotFound = errors.New("task not found")

// AggregateFn computes the encoded result of a task from its contributions.
type AggregateFn func(spec task.Spec, contributions []task.Contribution) (string, error)

// Options configures a Platform. The zero value is usable.
type Options struct {
	// Parallelism bounds the number of aggregations one Run executes at once.
	// Defaults to GOMAXPROCS.
	Parallelism int
	// Registerer receives the platform's metrics. Metrics are not exported
	// when nil.
	Registerer prometheus.Registerer
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// Aggregate replaces dispatch.Aggregate.
	Aggregate AggregateFn
}

// record is the platform's private state for one task.
type record struct {
	task          task.Task
	contributions []task.Contribution
	// claimed is set once a sweep has taken the task for aggregation.
	claimed bool
}

// Platform is the thread-safe task table. All task state is guarded by one
// mutex; aggregations run outside it.
type Platform struct {
	mu      sync.Mutex
	records map[string]*record

	parallelism int
	now         func() time.Time
	aggregate   AggregateFn
	metrics     *metrics
}

// New returns an empty Platform.
func New(opts *Options) *Platform {
	if opts == nil {
		opts = &Options{}
	}
	p := &Platform{
		records:     make(map[string]*record),
		parallelism: opts.Parallelism,
		now:         opts.Now,
		aggregate:   opts.Aggregate,
		metrics:     newMetrics(opts.Registerer),
	}
	if p.parallelism <= 0 {
		p.parallelism = runtime.GOMAXPROCS(0)
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.aggregate == nil {
		p.aggregate = dispatch.Aggregate
	}
	return p
}

// Create validates spec and stores a new Pending task for it.
func (p *Platform) Create(spec task.Spec) (string, error) {
	if err := dispatch.Validate(spec); err != nil {
		return "", err
	}
	id := uuid.NewString()
	p.mu.Lock()
	p.records[id] = &record{task: task.Task{
		ID:        id,
		Spec:      cloneSpec(spec),
		Status:    task.Pending,
		CreatedAt: p.now(),
	}}
	p.mu.Unlock()
	p.metrics.tasksCreated.Inc()
	log.Infof("Created %v task %s with min_count %d", spec.Type, id, spec.MinCount)
	return id, nil
}

// Submit appends c to the contributions of task id. It returns false, and
// stores nothing, if the task is unknown, no longer Pending or c does not
// have the shape its type requires. The submission that reaches the task's
// min_count moves it to Running.
func (p *Platform) Submit(id string, c task.Contribution) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[id]
	if !ok || rec.task.Status != task.Pending {
		p.metrics.submitted(false)
		return false
	}
	if err := dispatch.Accepts(rec.task.Spec, c); err != nil {
		log.V(1).Infof("Rejected contribution to task %s: %v", id, err)
		p.metrics.submitted(false)
		return false
	}
	rec.contributions = append(rec.contributions, c)
	rec.task.Count = len(rec.contributions)
	if rec.task.Count >= rec.task.MinCount {
		rec.task.Status = task.Running
		log.V(1).Infof("Task %s reached quorum with %d contributions", id, rec.task.Count)
	}
	p.metrics.submitted(true)
	return true
}

// claim is a task taken by one sweep.
type claim struct {
	id            string
	spec          task.Spec
	contributions []task.Contribution
}

// Run aggregates every Running task that no sweep has claimed yet and
// returns how many it processed. A task is claimed under the table lock, so
// overlapping calls never aggregate it twice. A failing or panicking
// aggregation moves its task to Error without affecting the others.
func (p *Platform) Run() int {
	p.mu.Lock()
	var claims []claim
	for id, rec := range p.records {
		if rec.task.Status != task.Running || rec.claimed {
			continue
		}
		rec.claimed = true
		claims = append(claims, claim{id: id, spec: rec.task.Spec, contributions: rec.contributions})
	}
	p.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(p.parallelism)
	for _, c := range claims {
		c := c
		g.Go(func() error {
			start := time.Now()
			result, err := p.safeAggregate(c.spec, c.contributions)
			p.commit(c.id, result, err, time.Since(start))
			return nil
		})
	}
	g.Wait()
	return len(claims)
}

func (p *Platform) safeAggregate(spec task.Spec, contributions []task.Contribution) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("aggregation panicked: %v", r)
		}
	}()
	return p.aggregate(spec, contributions)
}

// commit records the outcome of the aggregation of task id.
func (p *Platform) commit(id, result string, err error, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[id]
	if !ok {
		log.Warningf("Task %s was deleted while it was aggregated", id)
		return
	}
	next := task.Complete
	if err != nil {
		next = task.Error
	}
	if !rec.task.Status.CanTransition(next) {
		log.Errorf("Task %s cannot move from %v to %v", id, rec.task.Status, next)
		return
	}
	rec.task.Status = next
	rec.task.CompletedAt = p.now()
	if err != nil {
		rec.task.Error = err.Error()
		log.Warningf("Task %s failed: %v", id, err)
	} else {
		rec.task.Result = result
		log.Infof("Task %s complete", id)
	}
	p.metrics.finished(next, elapsed.Seconds())
}

// Fetch returns a snapshot of task id, or ErrNotFound.
func (p *Platform) Fetch(id string) (task.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[id]
	if !ok {
		return task.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return snapshot(rec), nil
}

// Tasks returns snapshots of every task, or only of the Pending ones.
func (p *Platform) Tasks(onlyPending bool) map[string]task.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]task.Task, len(p.records))
	for id, rec := range p.records {
		if onlyPending && rec.task.Status != task.Pending {
			continue
		}
		out[id] = snapshot(rec)
	}
	return out
}

// Contributions returns how many contributions are stored for task id. It is
// zero once GC has reclaimed them.
func (p *Platform) Contributions(id string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return len(rec.contributions), nil
}

// GC drops the contributions of every terminal task and deletes terminal
// tasks created more than retention ago. Pending and Running tasks are
// never deleted.
func (p *Platform) GC(retention time.Duration) {
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, rec := range p.records {
		if !rec.task.Status.Terminal() {
			continue
		}
		rec.contributions = nil
		if now.Sub(rec.task.CreatedAt) > retention {
			delete(p.records, id)
			log.V(1).Infof("Deleted task %s", id)
		}
	}
}

// Sweep calls Run then GC every interval until ctx is done.
func (p *Platform) Sweep(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.Run(); n > 0 {
				log.V(1).Infof("Sweep aggregated %d tasks", n)
			}
			p.GC(retention)
		}
	}
}

func snapshot(rec *record) task.Task {
	t := rec.task
	t.Spec = cloneSpec(t.Spec)
	return t
}

// cloneSpec copies the maps and slices of s so that callers cannot mutate
// a stored spec.
func cloneSpec(s task.Spec) task.Spec {
	a := &s.Aggregator
	if a.Bounds != nil {
		bounds := make(map[string]task.Bounds, len(a.Bounds))
		for field, b := range a.Bounds {
			b.Values = append([]string(nil), b.Values...)
			bounds[field] = b
		}
		a.Bounds = bounds
	}
	if a.Inputs != nil {
		a.Inputs = append([]string{}, a.Inputs...)
	}
	if a.Outputs != nil {
		a.Outputs = append([]string{}, a.Outputs...)
	}
	return s
}
