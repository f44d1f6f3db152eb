package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/spigell/rozgar/internal/ai"
	"github.com/spigell/rozgar/internal/logger"
	"go.uber.org/zap"
)

type parseVoiceRequest struct {
	Transcript  string `json:"transcript"`
	CurrentLang string `json:"currentLang"`
}

type descriptionRequest struct {
	Role string          `json:"role"`
	Wage json.RawMessage `json:"wage"`
}

type chatRequest struct {
	History      []ai.ChatTurn `json:"history"`
	NewMessage   string        `json:"newMessage"`
	UserLocation *ai.LatLng    `json:"userLocation,omitempty"`
}

// The AI routes answer 200 with a fallback on any provider problem,
// including a caller over the rate limit. Only a missing required field is a client error.

// throttled answers like a failed provider call without making one.
type throttled struct {
	ai.Unavailable
}

func (throttled) Reply(context.Context, []ai.ChatTurn, string, *ai.LatLng) ai.ChatReply {
	return ai.ChatReply{Text: ai.ChatFailureText}
}

// assistantFor spends one rate limit token for the caller and hands back the
// configured assistant, or the fallbacks once the caller is over the limit.
func (s *Server) assistantFor(r *http.Request) ai.Assistant {
	ip := clientIP(r)
	if s.limiter.Allow(ip) {
		return s.Assistant
	}
	logger.FromContext(r.Context(), s.Logger).Info("ai call throttled", zap.String("ip", ip), zap.String("path", r.URL.Path))
	return throttled{}
}

func (s *Server) parseVoice(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req parseVoiceRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusBadRequest, "Transcript is required")
		return
	}

	writeJSON(w, http.StatusOK, s.assistantFor(r).Extract(r.Context(), req.Transcript, req.CurrentLang))
}

func (s *Server) generateDescription(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req descriptionRequest
	err := decodeJSON(r, &req)
	wage := wageText(req.Wage)
	if err != nil || strings.TrimSpace(req.Role) == "" || wage == "" {
		writeError(w, http.StatusBadRequest, "Role and wage are required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"description": s.assistantFor(r).Describe(r.Context(), strings.TrimSpace(req.Role), wage),
	})
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.NewMessage) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	writeJSON(w, http.StatusOK, s.assistantFor(r).Reply(r.Context(), req.History, req.NewMessage, req.UserLocation))
}

// wageText accepts the wage as a JSON number or string. Zero counts as missing.
func wageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n == 0 {
			return ""
		}
		return ai.FormatWage(n)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	return ""
}
