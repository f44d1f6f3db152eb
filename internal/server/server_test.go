package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spigell/rozgar/internal/ai"
	"github.com/spigell/rozgar/internal/jobs"
	"github.com/spigell/rozgar/internal/lifecycle"
	"github.com/spigell/rozgar/internal/matching"
	"github.com/spigell/rozgar/internal/notify"
	"github.com/spigell/rozgar/internal/repository"
	"github.com/spigell/rozgar/internal/session"
	"github.com/spigell/rozgar/internal/storage"
	"go.uber.org/zap"
)

type testServer struct {
	*Server
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, ai.Unavailable{}, Options{RateLimit: 1000, RateBurst: 1000})
}

func newTestServerWith(t *testing.T, assistant ai.Assistant, opts Options) *testServer {
	t.Helper()

	repo, err := repository.Open(context.Background(), storage.NewMemory(), zap.NewNop(), repository.Options{})
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	sessions, err := session.NewManager("test-secret", 0)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	srv := New(Deps{
		Repo:      repo,
		Engine:    matching.NewEngine(repo, assistant, zap.NewNop(), 0),
		Tracker:   lifecycle.NewTracker(repo, notify.NewNotifier(repo, notify.Nop{}, zap.NewNop()), jobs.PolicyStrict, zap.NewNop()),
		Assistant: assistant,
		Sessions:  sessions,
		Logger:    zap.NewNop(),
	}, opts)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, handler: srv.Handler()}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, phone, role string) (string, *jobs.User) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"phone": phone, "role": role})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	decode(t, rec, &resp)
	return resp.Token, resp.User
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing security headers: %v", rec.Header())
	}
}

func TestAIRoutes(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     any
		wantCode int
		contains string
	}{
		{name: "parse voice fallback", path: "/api/ai/parse-voice", body: map[string]string{"transcript": "driver chahiye"}, wantCode: 200, contains: `"role":"driver chahiye"`},
		{name: "parse voice missing transcript", path: "/api/ai/parse-voice", body: map[string]string{"currentLang": "hi"}, wantCode: 400, contains: "Transcript is required"},
		{name: "parse voice blank transcript", path: "/api/ai/parse-voice", body: map[string]string{"transcript": "   "}, wantCode: 400, contains: "Transcript is required"},
		{name: "parse voice malformed", path: "/api/ai/parse-voice", body: "{", wantCode: 400},
		{name: "description numeric wage", path: "/api/ai/generate-job-description", body: map[string]any{"role": "Mason", "wage": 600}, wantCode: 200, contains: "Looking for Mason paying 600. Good pay."},
		{name: "description string wage", path: "/api/ai/generate-job-description", body: map[string]any{"role": "Cook", "wage": "8000"}, wantCode: 200, contains: "paying 8000"},
		{name: "description missing wage", path: "/api/ai/generate-job-description", body: map[string]any{"role": "Cook"}, wantCode: 400},
		{name: "description zero wage", path: "/api/ai/generate-job-description", body: map[string]any{"role": "Cook", "wage": 0}, wantCode: 400},
		{name: "chat unavailable", path: "/api/ai/chat", body: map[string]any{"history": []any{}, "newMessage": "hello"}, wantCode: 200, contains: "AI service"},
		{name: "chat missing message", path: "/api/ai/chat", body: map[string]any{"history": []any{}}, wantCode: 400},
	}

	ts := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, tt.path, "", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if tt.contains != "" && !strings.Contains(rec.Body.String(), tt.contains) {
				t.Fatalf("expected body to contain %q, got %s", tt.contains, rec.Body.String())
			}
		})
	}
}

type countingAssistant struct {
	calls atomic.Int32
}

func (c *countingAssistant) Extract(_ context.Context, _, _ string) ai.ParsedIntent {
	c.calls.Add(1)
	return ai.ParsedIntent{Intent: ai.IntentFindJob, Role: "driver", Location: "Patna"}
}

func (c *countingAssistant) Describe(_ context.Context, _, _ string) string {
	c.calls.Add(1)
	return "Model written description."
}

func (c *countingAssistant) Reply(context.Context, []ai.ChatTurn, string, *ai.LatLng) ai.ChatReply {
	c.calls.Add(1)
	return ai.ChatReply{Text: "model reply"}
}

func TestAIRoutesFallBackWhenThrottled(t *testing.T) {
	const burst = 3

	tests := []struct {
		name     string
		path     string
		body     any
		fresh    string
		fallback string
	}{
		{
			name:     "parse voice",
			path:     "/api/ai/parse-voice",
			body:     map[string]string{"transcript": "Patna mein driver"},
			fresh:    `"location":"Patna"`,
			fallback: `"role":"Patna mein driver"`,
		},
		{
			name:     "job description",
			path:     "/api/ai/generate-job-description",
			body:     map[string]any{"role": "Mason", "wage": 600},
			fresh:    "Model written description.",
			fallback: "Looking for Mason paying 600. Good pay.",
		},
		{
			name:     "chat",
			path:     "/api/ai/chat",
			body:     map[string]any{"newMessage": "hello"},
			fresh:    "model reply",
			fallback: ai.ChatFailureText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assistant := &countingAssistant{}
			ts := newTestServerWith(t, assistant, Options{RateLimit: 0.001, RateBurst: burst})

			for i := 0; i < burst+5; i++ {
				rec := ts.do(t, http.MethodPost, tt.path, "", tt.body)
				if rec.Code != http.StatusOK {
					t.Fatalf("request %d: expected 200, got %d: %s", i+1, rec.Code, rec.Body.String())
				}
				want := tt.fresh
				if i >= burst {
					want = tt.fallback
				}
				if !strings.Contains(rec.Body.String(), want) {
					t.Fatalf("request %d: expected body to contain %q, got %s", i+1, want, rec.Body.String())
				}
			}
			if got := assistant.calls.Load(); got != burst {
				t.Fatalf("expected %d model calls, got %d", burst, got)
			}
		})
	}
}

func TestVoiceSearchIsThrottled(t *testing.T) {
	ts := newTestServerWith(t, ai.Unavailable{}, Options{RateLimit: 0.001, RateBurst: 1})

	body := map[string]string{"transcript": "driver"}
	if rec := ts.do(t, http.MethodPost, "/api/search/voice", "", body); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := ts.do(t, http.MethodPost, "/api/search/voice", "", body); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestLoginRoleMismatch(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t, "9876543210", "WORKER")

	rec := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"phone": "9876543210", "role": "EMPLOYER"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"phone": "123", "role": "WORKER"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a short phone, got %d", rec.Code)
	}
}

func TestApplicationFlow(t *testing.T) {
	ts := newTestServer(t)
	employerToken, _ := ts.login(t, "9123456789", "EMPLOYER")
	workerToken, worker := ts.login(t, "9876543210", "WORKER")

	rec := ts.do(t, http.MethodPost, "/api/jobs", employerToken, map[string]any{"title": "Driver", "wage": 15000, "wageType": "monthly", "location": "Patna"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var job jobs.Job
	decode(t, rec, &job)
	if job.EmployerName != "My Business" {
		t.Fatalf("employer name must come from the session user, got %q", job.EmployerName)
	}

	if rec := ts.do(t, http.MethodPost, "/api/jobs", workerToken, map[string]any{"title": "x", "wage": 1}); rec.Code != http.StatusForbidden {
		t.Fatalf("worker create: expected 403, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/jobs", employerToken, map[string]any{"title": "Cook", "wage": 0}); rec.Code != http.StatusBadRequest {
		t.Fatalf("zero wage: expected 400, got %d", rec.Code)
	}

	applyPath := "/api/jobs/" + job.ID + "/apply"
	if rec := ts.do(t, http.MethodPost, applyPath, "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous apply: expected 401, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, applyPath, workerToken, nil); rec.Code != http.StatusCreated {
		t.Fatalf("apply: expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := ts.do(t, http.MethodPost, applyPath, workerToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("repeat apply: expected 200, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/jobs/"+job.ID+"/applicants", employerToken, nil)
	var apps []jobs.Application
	decode(t, rec, &apps)
	if len(apps) != 1 || apps[0].Status != jobs.ApplicationSeen {
		t.Fatalf("expected one SEEN applicant, got %+v", apps)
	}

	statusPath := "/api/jobs/" + job.ID + "/applicants/" + worker.ID
	if rec := ts.do(t, http.MethodPut, statusPath, employerToken, map[string]any{"status": "HIRED"}); rec.Code != http.StatusOK {
		t.Fatalf("hire: %d %s", rec.Code, rec.Body.String())
	}
	if rec := ts.do(t, http.MethodPut, statusPath, employerToken, map[string]any{"status": "REJECTED"}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("terminal: expected 422, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPut, statusPath, employerToken, map[string]any{"status": "HIRED", "version": 1}); rec.Code != http.StatusConflict {
		t.Fatalf("stale version: expected 409, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPut, statusPath, employerToken, map[string]any{"status": "LATER"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: expected 400, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/worker/applications", workerToken, nil)
	var applied []jobs.Job
	decode(t, rec, &applied)
	if len(applied) != 1 || applied[0].ID != job.ID {
		t.Fatalf("unexpected applied jobs %+v", applied)
	}

	rec = ts.do(t, http.MethodGet, "/api/users/me/notifications?markRead=true", workerToken, nil)
	var notes []jobs.Notification
	decode(t, rec, &notes)
	if len(notes) != 2 || notes[0].Title != "You are hired!" || notes[0].IsRead {
		t.Fatalf("unexpected notifications %+v", notes)
	}
	rec = ts.do(t, http.MethodGet, "/api/users/me/notifications", workerToken, nil)
	decode(t, rec, &notes)
	if !notes[0].IsRead {
		t.Fatal("notifications must be read after markRead")
	}

	if rec := ts.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/close", employerToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("close: %d", rec.Code)
	}
	other, _ := ts.login(t, "9000000009", "WORKER")
	if rec := ts.do(t, http.MethodPost, applyPath, other, nil); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("apply to closed job: expected 422, got %d", rec.Code)
	}
}

func TestListJobsRecordsWorkerHistory(t *testing.T) {
	ts := newTestServer(t)
	employerToken, _ := ts.login(t, "9123456789", "EMPLOYER")
	workerToken, _ := ts.login(t, "9876543210", "WORKER")

	for _, body := range []map[string]any{
		{"title": "Driver", "wage": 15000, "location": "Patna"},
		{"title": "Cook", "wage": 9000, "location": "Gaya"},
	} {
		if rec := ts.do(t, http.MethodPost, "/api/jobs", employerToken, body); rec.Code != http.StatusCreated {
			t.Fatalf("create: %d", rec.Code)
		}
	}

	rec := ts.do(t, http.MethodGet, "/api/jobs?role=driver&minWage=10000", workerToken, nil)
	var found []jobs.Job
	decode(t, rec, &found)
	if len(found) != 1 || found[0].Title != "Driver" {
		t.Fatalf("unexpected search result %+v", found)
	}

	rec = ts.do(t, http.MethodGet, "/api/users/me/history", workerToken, nil)
	var history []jobs.RecentSearch
	decode(t, rec, &history)
	if len(history) != 1 || history[0].Text != "driver" {
		t.Fatalf("unexpected history %+v", history)
	}

	if rec := ts.do(t, http.MethodGet, "/api/jobs?minWage=lots", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad number: expected 400, got %d", rec.Code)
	}
}

func TestVoiceRoutes(t *testing.T) {
	ts := newTestServer(t)
	employerToken, _ := ts.login(t, "9123456789", "EMPLOYER")
	workerToken, _ := ts.login(t, "9876543210", "WORKER")

	rec := ts.do(t, http.MethodPost, "/api/search/voice", workerToken, map[string]any{"transcript": "driver"})
	if rec.Code != http.StatusOK {
		t.Fatalf("voice search: %d %s", rec.Code, rec.Body.String())
	}
	var result matching.VoiceResult
	decode(t, rec, &result)
	if result.Intent.Intent != ai.IntentFindJob {
		t.Fatalf("unexpected voice result %+v", result)
	}

	if rec := ts.do(t, http.MethodPost, "/api/drafts/voice", workerToken, map[string]any{"transcript": "driver"}); rec.Code != http.StatusForbidden {
		t.Fatalf("worker draft: expected 403, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/api/drafts/voice", employerToken, map[string]any{"transcript": "mason"})
	var draft matching.VoiceDraft
	decode(t, rec, &draft)
	if draft.Draft.Location != "Patna, Bihar" || draft.Draft.Title != "mason" {
		t.Fatalf("unexpected draft %+v", draft.Draft)
	}
}

func TestUserRoutes(t *testing.T) {
	ts := newTestServer(t)
	employerToken, _ := ts.login(t, "9123456789", "EMPLOYER")
	workerToken, _ := ts.login(t, "9876543210", "WORKER")

	rec := ts.do(t, http.MethodPost, "/api/jobs", employerToken, map[string]any{"title": "Driver", "wage": 500, "wageType": "daily"})
	var job jobs.Job
	decode(t, rec, &job)

	rec = ts.do(t, http.MethodPut, "/api/users/me", workerToken, map[string]any{"name": "Sita Devi", "skills": []string{"Cooking", " "}})
	var user jobs.User
	decode(t, rec, &user)
	if user.Name != "Sita Devi" || len(user.Skills) != 1 {
		t.Fatalf("unexpected profile %+v", user)
	}

	if rec := ts.do(t, http.MethodPost, "/api/users/me/saved/"+job.ID, workerToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("save: %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/api/users/me/saved", workerToken, nil)
	var saved []jobs.Job
	decode(t, rec, &saved)
	if len(saved) != 1 {
		t.Fatalf("expected one saved job, got %d", len(saved))
	}
	if rec := ts.do(t, http.MethodPost, "/api/users/me/saved/missing", workerToken, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("save missing: expected 404, got %d", rec.Code)
	}

	if rec := ts.do(t, http.MethodPost, "/api/users/me/audio-resume", workerToken, "audio"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("audio without media: expected 503, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/jobs/missing", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing job: expected 404, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/users/me", "not-a-token", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Stop()

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("burst must be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("expected the third request to be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("other clients keep their own bucket")
	}
}

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()

	rl.Allow("10.0.0.1")
	rl.mu.Lock()
	rl.now = func() time.Time { return time.Now().Add(2 * visitorTTL) }
	rl.mu.Unlock()
	rl.evict()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.visitors) != 0 {
		t.Fatalf("expected idle visitor to be evicted, got %d", len(rl.visitors))
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[error]int{
		jobs.ErrNotFound:          http.StatusNotFound,
		jobs.ErrValidation:        http.StatusBadRequest,
		jobs.ErrForbidden:         http.StatusForbidden,
		jobs.ErrRoleMismatch:      http.StatusConflict,
		jobs.ErrVersionConflict:   http.StatusConflict,
		jobs.ErrTerminalStatus:    http.StatusUnprocessableEntity,
		jobs.ErrInvalidTransition: http.StatusUnprocessableEntity,
		jobs.ErrJobClosed:         http.StatusUnprocessableEntity,
		context.Canceled:          http.StatusInternalServerError,
	}
	for err, want := range tests {
		if got := statusFor(err); got != want {
			t.Fatalf("statusFor(%v) = %d, want %d", err, got, want)
		}
	}
}
