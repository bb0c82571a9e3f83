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

// Package protocol is the HTTP contract between the task platform and its
// clients: a JSON server over a Platform and a retrying client.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/quorum/platform"
	"github.com/google/differential-privacy/quorum/task"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds request bodies. Integrated contributions carry raw
// rows, so this is generous.
const maxBodyBytes = 64 << 20

// Platform is the task table served over HTTP.
type Platform interface {
	Create(spec task.Spec) (string, error)
	Submit(id string, c task.Contribution) bool
	Fetch(id string) (task.Task, error)
	Tasks(onlyPending bool) map[string]task.Task
}

// CreateResponse is the body of a successful POST /tasks.
type CreateResponse struct {
	ID string `json:"id"`
}

// SubmitResponse is the body of POST /tasks/{id}/contributions.
type SubmitResponse struct {
	Accepted bool `json:"accepted"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server routes protocol requests to a Platform.
type Server struct {
	platform Platform
	router   *mux.Router
}

// NewServer returns a Server for p. If gatherer is not nil its metrics are
// exposed on /metrics.
func NewServer(p Platform, gatherer prometheus.Gatherer) *Server {
	s := &Server{platform: p, router: mux.NewRouter()}
	s.router.HandleFunc("/tasks", s.listTasks).Methods(http.MethodGet)
	s.router.HandleFunc("/tasks", s.createTask).Methods(http.MethodPost)
	s.router.HandleFunc("/tasks/{id}", s.fetchTask).Methods(http.MethodGet)
	s.router.HandleFunc("/tasks/{id}/contributions", s.submit).Methods(http.MethodPost)
	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// listTasks handles GET /tasks[?pending=true].
func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	onlyPending := false
	if v := r.URL.Query().Get("pending"); v != "" {
		var err error
		if onlyPending, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid pending parameter %q", v))
			return
		}
	}
	writeJSON(w, http.StatusOK, s.platform.Tasks(onlyPending))
}

// createTask handles POST /tasks.
func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var spec task.Spec
	if err := decodeBody(w, r, &spec); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.platform.Create(spec)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, task.ErrMalformedInput) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateResponse{ID: id})
}

// fetchTask handles GET /tasks/{id}.
func (s *Server) fetchTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.platform.Fetch(mux.Vars(r)["id"])
	if errors.Is(err, platform.ErrNotFound) {
		writeError(w, http.StatusNotFound, platform.ErrNotFound)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// submit handles POST /tasks/{id}/contributions.
func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var c task.Contribution
	if err := decodeBody(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitResponse{Accepted: s.platform.Submit(mux.Vars(r)["id"], c)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", task.ErrMalformedInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warningf("Writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
