package jobs

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type Role string

const (
	RoleWorker   Role = "WORKER"
	RoleEmployer Role = "EMPLOYER"
)

// MaxSearchHistory bounds the per-user recent search ring.
const MaxSearchHistory = 5

const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationAlert   = "alert"
)

type RecentSearch struct {
	Text      string    `json:"text"`
	Role      string    `json:"role,omitempty"`
	Location  string    `json:"location,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"isRead"`
	Timestamp time.Time `json:"timestamp"`
}

type User struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Phone         string         `json:"phone"`
	Role          Role           `json:"role"`
	Location      string         `json:"location,omitempty"`
	Skills        []string       `json:"skills,omitempty"`
	Experience    string         `json:"experience,omitempty"`
	CompanyName   string         `json:"companyName,omitempty"`
	Verified      bool           `json:"isVerified"`
	Badges        []string       `json:"badges,omitempty"`
	SavedJobIDs   []string       `json:"savedJobIds,omitempty"`
	SearchHistory []RecentSearch `json:"searchHistory,omitempty"`
	AudioResume   string         `json:"audioResume,omitempty"`
	Notifications []Notification `json:"notifications,omitempty"`
}

// Profile holds the fields a user may edit about themselves.
type Profile struct {
	Name        *string  `json:"name"`
	Location    *string  `json:"location"`
	Skills      []string `json:"skills"`
	Experience  *string  `json:"experience"`
	CompanyName *string  `json:"companyName"`
}

func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch role {
	case RoleWorker, RoleEmployer:
		return role, nil
	default:
		return "", fmt.Errorf("%w: unsupported role %q", ErrValidation, s)
	}
}

// NormalizePhone keeps digits only and requires at least ten of them.
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 10 {
		return "", fmt.Errorf("%w: phone number must have at least 10 digits", ErrValidation)
	}
	return digits, nil
}

// DisplayName is what employers publish jobs under.
func (u *User) DisplayName() string {
	if u.Role == RoleEmployer && strings.TrimSpace(u.CompanyName) != "" {
		return u.CompanyName
	}
	return u.Name
}

func (u *User) Apply(p Profile) {
	if p.Name != nil && strings.TrimSpace(*p.Name) != "" {
		u.Name = strings.TrimSpace(*p.Name)
	}
	if p.Location != nil {
		u.Location = strings.TrimSpace(*p.Location)
	}
	if p.Skills != nil {
		u.Skills = cleanList(p.Skills)
	}
	if p.Experience != nil {
		u.Experience = strings.TrimSpace(*p.Experience)
	}
	if p.CompanyName != nil && u.Role == RoleEmployer {
		u.CompanyName = strings.TrimSpace(*p.CompanyName)
	}
}

// ToggleSaved flips the bookmark for jobID and reports whether it is now saved.
func (u *User) ToggleSaved(jobID string) bool {
	if idx := slices.Index(u.SavedJobIDs, jobID); idx != -1 {
		u.SavedJobIDs = slices.Delete(u.SavedJobIDs, idx, idx+1)
		return false
	}
	u.SavedJobIDs = append(u.SavedJobIDs, jobID)
	return true
}

// RecordSearch puts the search first, dropping an older entry with the same text.
func (u *User) RecordSearch(s RecentSearch) {
	history := make([]RecentSearch, 0, MaxSearchHistory)
	history = append(history, s)
	for _, prev := range u.SearchHistory {
		if strings.EqualFold(prev.Text, s.Text) {
			continue
		}
		history = append(history, prev)
		if len(history) == MaxSearchHistory {
			break
		}
	}
	u.SearchHistory = history
}

func (u *User) UnreadNotifications() int {
	n := 0
	for _, item := range u.Notifications {
		if !item.IsRead {
			n++
		}
	}
	return n
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || slices.Contains(out, item) {
			continue
		}
		out = append(out, item)
	}
	return out
}
