package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/simulation"
	"github.com/banshee-data/aeb/internal/db"
	"github.com/banshee-data/aeb/internal/httputil"
	"github.com/banshee-data/aeb/internal/report"
)

type validateRequest struct {
	Trials   int      `json:"trials,omitempty"`
	Seed     uint64   `json:"seed,omitempty"`
	Weathers []string `json:"weathers,omitempty"`
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := httputil.DecodeJSON(w, r, 64<<10, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Trials < 0 || req.Trials > s.maxTrials {
		httputil.BadRequest(w, fmt.Sprintf("trials must be between 1 and %d", s.maxTrials))
		return
	}

	opts := simulation.ValidationOptions{Trials: req.Trials, Seed: req.Seed}
	for _, name := range req.Weathers {
		wc, err := aeb.ParseWeather(name)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		opts.Weathers = append(opts.Weathers, wc)
	}

	rep, err := simulation.Validate(r.Context(), s.constants, opts)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	diagf("validation run %s: passed=%t trials=%d seed=%d", rep.ID, rep.Passed(), rep.Trials, rep.Seed)

	s.mu.Lock()
	s.lastReport = rep
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.InsertValidationRun(rep); err != nil {
			opsf("failed to store validation run %s: %v", rep.ID, err)
		}
	}
	httputil.WriteJSONOK(w, validateResponse{ValidationReport: rep, Passed: rep.Passed()})
}

// validateResponse adds the overall verdict to the stored report form.
type validateResponse struct {
	*simulation.ValidationReport
	Passed bool `json:"passed"`
}

func (s *Server) listValidationRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.NotFound(w, "no validation store configured")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.store.ListValidationRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) showValidationRun(w http.ResponseWriter, r *http.Request) {
	rep, err := s.lookupReport(r.PathValue("id"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	httputil.WriteJSONOK(w, validateResponse{ValidationReport: rep, Passed: rep.Passed()})
}

// validationChart renders the dashboard for ?id=, or for the most recent
// run served by this process.
func (s *Server) validationChart(w http.ResponseWriter, r *http.Request) {
	rep, err := s.lookupReport(r.URL.Query().Get("id"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := report.ValidationDashboard(&buf, rep); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) lookupReport(id string) (*simulation.ValidationReport, error) {
	s.mu.Lock()
	last := s.lastReport
	s.mu.Unlock()

	if id == "" || (last != nil && last.ID == id) {
		if last == nil {
			return nil, db.ErrNotFound
		}
		return last, nil
	}
	if s.store == nil {
		return nil, db.ErrNotFound
	}
	return s.store.ValidationRun(id)
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "validation run not found")
		return
	}
	httputil.InternalServerError(w, err.Error())
}
