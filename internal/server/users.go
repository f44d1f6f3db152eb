package server

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/spigell/rozgar/internal/jobs"
	"github.com/spigell/rozgar/internal/media"
)

type loginRequest struct {
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  *jobs.User `json:"user"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	role, err := jobs.ParseRole(req.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	user, _, err := s.Repo.Login(r.Context(), req.Phone, role)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	token, _, err := s.Sessions.Issue(user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, err := s.Repo.GetUser(r.Context(), sessionFrom(r.Context()).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var profile jobs.Profile
	if err := decodeJSON(r, &profile); err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.Repo.UpdateProfile(r.Context(), sessionFrom(r.Context()).UserID, profile)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) savedJobs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := s.Repo.SavedJobs(r.Context(), sessionFrom(r.Context()).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobList(list))
}

func (s *Server) toggleSaved(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, err := s.Repo.ToggleSavedJob(r.Context(), sessionFrom(r.Context()).UserID, ps.ByName("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) searchHistory(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, err := s.Repo.GetUser(r.Context(), sessionFrom(r.Context()).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	history := user.SearchHistory
	if history == nil {
		history = []jobs.RecentSearch{}
	}
	writeJSON(w, http.StatusOK, history)
}

// notifications returns the inbox as stored. With markRead=true everything is
// marked read afterwards, so the response still shows what was new.
func (s *Server) notifications(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := sessionFrom(r.Context()).UserID
	user, err := s.Repo.GetUser(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if r.URL.Query().Get("markRead") == "true" && user.UnreadNotifications() > 0 {
		if _, err := s.Repo.MarkNotificationsRead(r.Context(), userID); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	list := user.Notifications
	if list == nil {
		list = []jobs.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) uploadAudioResume(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.Media == nil {
		s.fail(w, r, media.ErrNotConfigured)
		return
	}
	userID := sessionFrom(r.Context()).UserID

	url, err := s.Media.UploadAudio(r.Context(), userID, r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.Repo.SetAudioResume(r.Context(), userID, url)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
