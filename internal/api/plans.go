package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/p-n-ai/rapidrevise/internal/examprep"
	"github.com/p-n-ai/rapidrevise/internal/studyplan"
)

const maxBodyBytes = 1 << 16

// planRequest is the JSON body of POST /study-plans.
type planRequest struct {
	Board       string  `json:"board"`
	ClassLevel  string  `json:"class_level"`
	Department  string  `json:"department"`
	Subject     string  `json:"subject"`
	MaxDuration int     `json:"max_duration"`
	SortBy      string  `json:"sort_by"`
	StudyHours  float64 `json:"study_hours"`
}

func (p planRequest) toRequest() examprep.Request {
	return examprep.Request{
		Board:              strings.TrimSpace(p.Board),
		ClassLevel:         strings.TrimSpace(p.ClassLevel),
		Department:         strings.TrimSpace(p.Department),
		Subject:            strings.TrimSpace(p.Subject),
		MaxDurationMinutes: p.MaxDuration,
		SortBy:             examprep.SortBy(p.SortBy),
		StudyHours:         p.StudyHours,
	}
}

// requestFromQuery reads workflow input from URL parameters.
func requestFromQuery(q url.Values) (examprep.Request, error) {
	req := planRequest{
		Board:      q.Get("board"),
		ClassLevel: q.Get("class_level"),
		Department: q.Get("department"),
		Subject:    q.Get("subject"),
		SortBy:     q.Get("sort_by"),
	}
	if v := q.Get("max_duration"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return examprep.Request{}, &examprep.ValidationError{Field: "max_duration", Message: fmt.Sprintf("max_duration must be an integer, got %q", v)}
		}
		req.MaxDuration = n
	}
	if v := q.Get("study_hours"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return examprep.Request{}, &examprep.ValidationError{Field: "study_hours", Message: fmt.Sprintf("study_hours must be a number, got %q", v)}
		}
		req.StudyHours = f
	}
	out := req.toRequest()
	return out, out.Validate()
}

func (s *Server) handleExamPrep(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := s.runner.Run(r.Context(), req)
	if res.Err != nil {
		writeError(w, errorStatus(res.Err), res.Err.Error())
		return
	}
	s.persist(r, res.Plan)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var body planRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req := body.toRequest()
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.runner.Run(r.Context(), req)
	if res.Err != nil {
		writeError(w, errorStatus(res.Err), res.Err.Error())
		return
	}
	id, err := s.store.Save(r.Context(), res.Plan)
	if err != nil {
		s.logger.Error("saving study plan failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save study plan")
		return
	}
	res.Plan.ID = id
	w.Header().Set("Location", "/study-plans/"+id)
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := studyplan.ListOptions{Subject: q.Get("subject")}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &opts.Limit}, {"offset", &opts.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a non-negative integer", p.name))
			return
		}
		*p.dst = n
	}

	plans, err := s.store.List(r.Context(), opts)
	if err != nil {
		s.logger.Error("listing study plans failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list study plans")
		return
	}
	if plans == nil {
		plans = []studyplan.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, ok := s.loadPlan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleExportPlan(w http.ResponseWriter, r *http.Request) {
	plan, ok := s.loadPlan(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := studyplan.ExportXLSX(&buf, plan); err != nil {
		s.logger.Error("exporting study plan failed", "plan_id", plan.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export study plan")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="study-plan-%s.xlsx"`, plan.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, studyplan.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("deleting study plan failed", "plan_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete study plan")
		return
	}
	s.logger.Info("study plan deleted", "plan_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadPlan(w http.ResponseWriter, r *http.Request) (*studyplan.StudyPlan, bool) {
	id := r.PathValue("id")
	plan, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, studyplan.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return nil, false
		}
		s.logger.Error("loading study plan failed", "plan_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load study plan")
		return nil, false
	}
	return plan, true
}

// persist saves a plan produced by a read endpoint. Failures are logged only.
func (s *Server) persist(r *http.Request, plan *studyplan.StudyPlan) {
	if s.store == nil {
		return
	}
	if _, err := s.store.Save(r.Context(), plan); err != nil {
		s.logger.Warn("saving study plan failed", "plan_id", plan.ID, "error", err)
	}
}

// errorStatus maps a workflow error to an HTTP status.
func errorStatus(err error) int {
	var verr *examprep.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}
