package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/spigell/rozgar/internal/jobs"
	"github.com/spigell/rozgar/internal/logger"
	"github.com/spigell/rozgar/internal/matching"
	"go.uber.org/zap"
)

type statusRequest struct {
	Status  string `json:"status"`
	Version int    `json:"version,omitempty"`
}

type voiceDraftRequest struct {
	Transcript  string `json:"transcript"`
	CurrentLang string `json:"currentLang"`
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q, err := searchQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	found, err := s.Engine.Search(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if sess := sessionFrom(r.Context()); sess.IsWorker() {
		text := strings.TrimSpace(q.Role + " " + q.Location)
		if text != "" {
			search := jobs.RecentSearch{Text: text, Role: q.Role, Location: q.Location}
			if _, err := s.Repo.RecordSearch(r.Context(), sess.UserID, search); err != nil {
				logger.FromContext(r.Context(), s.Logger).Warn("failed to record search", zap.Error(err))
			}
		}
	}

	writeJSON(w, http.StatusOK, jobList(found))
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sess := sessionFrom(r.Context())
	if err := sess.Require(jobs.RoleEmployer); err != nil {
		s.fail(w, r, err)
		return
	}

	var draft jobs.Draft
	if err := decodeJSON(r, &draft); err != nil {
		s.fail(w, r, err)
		return
	}

	employer, err := s.Repo.GetUser(r.Context(), sess.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	draft.EmployerID = employer.ID
	draft.EmployerName = employer.DisplayName()
	draft.EmployerVerified = employer.Verified
	if strings.TrimSpace(draft.Location) == "" {
		draft.Location = employer.Location
	}

	job, err := s.Repo.Create(r.Context(), draft)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	job, err := s.Repo.Get(r.Context(), ps.ByName("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) closeJob(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sess := sessionFrom(r.Context())
	if err := sess.Require(jobs.RoleEmployer); err != nil {
		s.fail(w, r, err)
		return
	}

	job, err := s.Repo.CloseJob(r.Context(), ps.ByName("id"), sess.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) apply(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	app, created, err := s.Tracker.Apply(r.Context(), sessionFrom(r.Context()), ps.ByName("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, app)
}

func (s *Server) listApplicants(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	apps, err := s.Tracker.ListApplicants(r.Context(), sessionFrom(r.Context()), ps.ByName("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (s *Server) setApplicantStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	status, err := jobs.ParseApplicationStatus(req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	job, _, err := s.Tracker.SetStatus(r.Context(), sessionFrom(r.Context()), ps.ByName("id"), ps.ByName("workerId"), status, req.Version)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) voiceSearch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var vq matching.VoiceQuery
	if err := decodeJSON(r, &vq); err != nil || strings.TrimSpace(vq.Transcript) == "" {
		writeError(w, http.StatusBadRequest, "Transcript is required")
		return
	}

	result, err := s.Engine.SearchByVoice(r.Context(), sessionFrom(r.Context()), vq)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) voiceDraft(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sess := sessionFrom(r.Context())
	if err := sess.Require(jobs.RoleEmployer); err != nil {
		s.fail(w, r, err)
		return
	}

	var req voiceDraftRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusBadRequest, "Transcript is required")
		return
	}

	employer, err := s.Repo.GetUser(r.Context(), sess.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	draft, err := s.Engine.DraftFromVoice(r.Context(), req.Transcript, req.CurrentLang, employer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) employerJobs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sess := sessionFrom(r.Context())
	if err := sess.Require(jobs.RoleEmployer); err != nil {
		s.fail(w, r, err)
		return
	}

	list, err := s.Repo.ByEmployer(r.Context(), sess.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobList(list))
}

func (s *Server) workerApplications(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sess := sessionFrom(r.Context())
	if err := sess.Require(jobs.RoleWorker); err != nil {
		s.fail(w, r, err)
		return
	}

	list, err := s.Repo.AppliedByWorker(r.Context(), sess.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobList(list))
}

func searchQuery(r *http.Request) (matching.Query, error) {
	v := r.URL.Query()
	q := matching.Query{
		Role:     strings.TrimSpace(v.Get("role")),
		Location: strings.TrimSpace(v.Get("location")),
		Category: strings.TrimSpace(v.Get("category")),
	}

	var err error
	if q.MinWage, err = floatParam(v.Get("minWage"), "minWage"); err != nil {
		return q, err
	}
	if q.Radius, err = floatParam(v.Get("radius"), "radius"); err != nil {
		return q, err
	}

	lat, lng := v.Get("lat"), v.Get("lng")
	if lat != "" && lng != "" {
		la, err := floatParam(lat, "lat")
		if err != nil {
			return q, err
		}
		ln, err := floatParam(lng, "lng")
		if err != nil {
			return q, err
		}
		q.Lat, q.Lng = &la, &ln
	}
	return q, nil
}

func floatParam(raw, name string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", jobs.ErrValidation, name)
	}
	return f, nil
}
