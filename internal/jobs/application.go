package jobs

import (
	"fmt"
	"strings"
	"time"
)

// ApplicationStatus is one of the lifecycle states of an application.
type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "PENDING"
	ApplicationSeen      ApplicationStatus = "SEEN"
	ApplicationInterview ApplicationStatus = "INTERVIEW"
	ApplicationHired     ApplicationStatus = "HIRED"
	ApplicationRejected  ApplicationStatus = "REJECTED"
)

// TransitionPolicy decides which status changes an employer may make.
type TransitionPolicy string

const (
	// PolicyStrict keeps the lifecycle forward-only and terminal states final.
	PolicyStrict TransitionPolicy = "strict"
	// PolicyPermissive allows any settable target from any state.
	PolicyPermissive TransitionPolicy = "permissive"
)

var statusRank = map[ApplicationStatus]int{
	ApplicationPending:   0,
	ApplicationSeen:      1,
	ApplicationInterview: 2,
	ApplicationHired:     3,
}

type Application struct {
	JobID            string            `json:"jobId"`
	WorkerID         string            `json:"userId"`
	WorkerName       string            `json:"userName"`
	WorkerPhone      string            `json:"userPhone"`
	WorkerSkills     []string          `json:"userSkills,omitempty"`
	WorkerExperience string            `json:"userExperience,omitempty"`
	Status           ApplicationStatus `json:"status"`
	AppliedAt        time.Time         `json:"appliedAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

func ParseApplicationStatus(s string) (ApplicationStatus, error) {
	status := ApplicationStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case ApplicationPending, ApplicationSeen, ApplicationInterview, ApplicationHired, ApplicationRejected:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown application status %q", ErrValidation, s)
	}
}

func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationHired || s == ApplicationRejected
}

// Settable reports whether an employer may request this status explicitly.
func (s ApplicationStatus) Settable() bool {
	switch s {
	case ApplicationSeen, ApplicationInterview, ApplicationHired, ApplicationRejected:
		return true
	default:
		return false
	}
}

func ParseTransitionPolicy(s string) (TransitionPolicy, error) {
	switch TransitionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyPermissive:
		return PolicyPermissive, nil
	default:
		return "", fmt.Errorf("unsupported transition policy %q", s)
	}
}

// CheckTransition validates moving from one status to another under the policy.
// A nil error with from == to means there is nothing to change.
func (p TransitionPolicy) CheckTransition(from, to ApplicationStatus) error {
	if !to.Settable() {
		return fmt.Errorf("%w: status %s cannot be set", ErrValidation, to)
	}
	if p == PolicyPermissive || from == to {
		return nil
	}
	if from.IsTerminal() {
		return fmt.Errorf("%w: application is already %s", ErrTerminalStatus, from)
	}
	if to == ApplicationRejected {
		return nil
	}
	if statusRank[to] < statusRank[from] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
