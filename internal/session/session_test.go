package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spigell/rozgar/internal/jobs"
)

func TestIssueAndParse(t *testing.T) {
	m, err := NewManager("top-secret", time.Hour)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	user := &jobs.User{ID: "u1", Name: "Ramesh", Phone: "9876543210", Role: jobs.RoleWorker}
	token, issued, err := m.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.ExpiresAt.Sub(issued.IssuedAt) != time.Hour {
		t.Fatalf("unexpected ttl: %v", issued.ExpiresAt.Sub(issued.IssuedAt))
	}

	s, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.UserID != "u1" || s.Role != jobs.RoleWorker || s.Phone != "9876543210" || s.Name != "Ramesh" {
		t.Fatalf("unexpected session %+v", s)
	}
	if !s.IsWorker() || s.IsEmployer() {
		t.Fatal("unexpected role helpers")
	}
}

func TestParseRejects(t *testing.T) {
	m, _ := NewManager("top-secret", time.Hour)
	other, _ := NewManager("another-secret", time.Hour)
	user := &jobs.User{ID: "u1", Role: jobs.RoleEmployer}

	foreign, _, _ := other.Issue(user)
	if _, err := m.Parse(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for a foreign signature, got %v", err)
	}

	if _, err := m.Parse("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, _ := m.Issue(user)
	m.now = time.Now
	if _, err := m.Parse(expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for an expired token, got %v", err)
	}

	token, _, _ := m.Issue(user)
	tampered := token[:strings.LastIndex(token, ".")] + ".AAAA"
	if _, err := m.Parse(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for a tampered token, got %v", err)
	}
}

func TestRequire(t *testing.T) {
	s := &Session{UserID: "u1", Role: jobs.RoleWorker}
	if err := s.Require(jobs.RoleWorker); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Require(jobs.RoleEmployer); !errors.Is(err, jobs.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	var none *Session
	if err := none.Require(jobs.RoleWorker); !errors.Is(err, jobs.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for nil session, got %v", err)
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager("  ", 0); err == nil {
		t.Fatal("expected error without secret")
	}
	m, _ := NewManager("s", 0)
	if m.ttl != DefaultTTL {
		t.Fatalf("expected default ttl, got %v", m.ttl)
	}
}
