package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/spigell/rozgar/internal/jobs"
	"github.com/spigell/rozgar/internal/logger"
	"go.uber.org/zap"
)

const (
	EventApplicationCreated       = "application.created"
	EventApplicationStatusChanged = "application.status_changed"
)

// Event is what gets published to the message broker.
type Event struct {
	Type           string                 `json:"type"`
	JobID          string                 `json:"jobId"`
	JobTitle       string                 `json:"jobTitle"`
	EmployerID     string                 `json:"employerId"`
	WorkerID       string                 `json:"workerId"`
	Status         jobs.ApplicationStatus `json:"status"`
	PreviousStatus jobs.ApplicationStatus `json:"previousStatus,omitempty"`
	OccurredAt     time.Time              `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                          { return nil }

type Inbox interface {
	AddNotification(ctx context.Context, userID string, n jobs.Notification) (*jobs.User, error)
}

// Notifier writes in-app notifications and publishes the matching events.
// Failures are logged and never returned: the triggering change already happened.
type Notifier struct {
	inbox     Inbox
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewNotifier(inbox Inbox, publisher Publisher, logger *zap.Logger) *Notifier {
	if publisher == nil {
		publisher = Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{inbox: inbox, publisher: publisher, logger: logger, now: time.Now}
}

// Applied tells the employer about a new applicant.
func (n *Notifier) Applied(ctx context.Context, job *jobs.Job, app *jobs.Application) {
	n.deliver(ctx, job.EmployerID, jobs.Notification{
		Title:   "New applicant",
		Message: fmt.Sprintf("%s applied for %s.", app.WorkerName, job.Title),
		Type:    jobs.NotificationInfo,
	})
	n.publish(ctx, Event{
		Type:       EventApplicationCreated,
		JobID:      job.ID,
		JobTitle:   job.Title,
		EmployerID: job.EmployerID,
		WorkerID:   app.WorkerID,
		Status:     app.Status,
	})
}

// StatusChanged tells the worker their application moved.
func (n *Notifier) StatusChanged(ctx context.Context, job *jobs.Job, app *jobs.Application, previous jobs.ApplicationStatus) {
	n.deliver(ctx, app.WorkerID, statusNotification(job, app.Status))
	n.publish(ctx, Event{
		Type:           EventApplicationStatusChanged,
		JobID:          job.ID,
		JobTitle:       job.Title,
		EmployerID:     job.EmployerID,
		WorkerID:       app.WorkerID,
		Status:         app.Status,
		PreviousStatus: previous,
	})
}

func (n *Notifier) deliver(ctx context.Context, userID string, note jobs.Notification) {
	if n.inbox == nil {
		return
	}
	if _, err := n.inbox.AddNotification(ctx, userID, note); err != nil {
		n.logger.Warn("failed to store notification", logger.User(userID), zap.Error(err))
	}
}

func (n *Notifier) publish(ctx context.Context, event Event) {
	event.OccurredAt = n.now().UTC()
	if err := n.publisher.Publish(ctx, event); err != nil {
		n.logger.Warn("failed to publish event",
			zap.String("event", event.Type),
			logger.Job(event.JobID),
			zap.Error(err),
		)
	}
}

func statusNotification(job *jobs.Job, status jobs.ApplicationStatus) jobs.Notification {
	switch status {
	case jobs.ApplicationSeen:
		return jobs.Notification{
			Title:   "Application seen",
			Message: fmt.Sprintf("%s viewed your application for %s.", job.EmployerName, job.Title),
			Type:    jobs.NotificationInfo,
		}
	case jobs.ApplicationInterview:
		return jobs.Notification{
			Title:   "Interview call",
			Message: fmt.Sprintf("%s wants to interview you for %s.", job.EmployerName, job.Title),
			Type:    jobs.NotificationSuccess,
		}
	case jobs.ApplicationHired:
		return jobs.Notification{
			Title:   "You are hired!",
			Message: fmt.Sprintf("%s hired you for %s.", job.EmployerName, job.Title),
			Type:    jobs.NotificationSuccess,
		}
	default:
		return jobs.Notification{
			Title:   "Application update",
			Message: fmt.Sprintf("%s did not select you for %s this time.", job.EmployerName, job.Title),
			Type:    jobs.NotificationAlert,
		}
	}
}
