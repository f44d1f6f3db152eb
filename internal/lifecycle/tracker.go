package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spigell/rozgar/internal/jobs"
	"github.com/spigell/rozgar/internal/logger"
	"github.com/spigell/rozgar/internal/repository"
	"github.com/spigell/rozgar/internal/session"
	"go.uber.org/zap"
)

// Store is the part of the repository the tracker mutates.
type Store interface {
	Get(ctx context.Context, id string) (*jobs.Job, error)
	Update(ctx context.Context, id string, expectedVersion int, mutate repository.Mutation) (*jobs.Job, error)
	GetUser(ctx context.Context, id string) (*jobs.User, error)
}

type Notifier interface {
	Applied(ctx context.Context, job *jobs.Job, app *jobs.Application)
	StatusChanged(ctx context.Context, job *jobs.Job, app *jobs.Application, previous jobs.ApplicationStatus)
}

type Tracker struct {
	store    Store
	notifier Notifier
	policy   jobs.TransitionPolicy
	logger   *zap.Logger
	now      func() time.Time
}

func NewTracker(store Store, notifier Notifier, policy jobs.TransitionPolicy, logger *zap.Logger) *Tracker {
	if policy == "" {
		policy = jobs.PolicyStrict
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:    store,
		notifier: notifier,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

func (t *Tracker) Policy() jobs.TransitionPolicy {
	return t.policy
}

// Apply adds the worker to the job's applicants. A repeated call returns the
// existing application with created=false.
func (t *Tracker) Apply(ctx context.Context, sess *session.Session, jobID string) (*jobs.Application, bool, error) {
	if err := sess.Require(jobs.RoleWorker); err != nil {
		return nil, false, err
	}

	worker, err := t.store.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, false, err
	}

	var (
		app     *jobs.Application
		created bool
	)
	job, err := t.store.Update(ctx, jobID, 0, func(job *jobs.Job) (bool, error) {
		if existing := job.FindApplicant(worker.ID); existing != nil {
			app = existing
			return false, nil
		}
		if !job.IsOpen() {
			return false, fmt.Errorf("%w: %s", jobs.ErrJobClosed, job.ID)
		}

		now := t.now().UTC()
		app = &jobs.Application{
			JobID:            job.ID,
			WorkerID:         worker.ID,
			WorkerName:       worker.DisplayName(),
			WorkerPhone:      worker.Phone,
			WorkerSkills:     slices.Clone(worker.Skills),
			WorkerExperience: worker.Experience,
			Status:           jobs.ApplicationPending,
			AppliedAt:        now,
			UpdatedAt:        now,
		}
		job.Applicants = append(job.Applicants, app)
		created = true
		return true, nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		t.logger.Info("application created",
			logger.Job(job.ID),
			zap.String("worker_id", worker.ID),
		)
		t.notifyApplied(ctx, job, app)
	}
	return app, created, nil
}

// MarkSeen moves every PENDING applicant of the employer's job to SEEN.
func (t *Tracker) MarkSeen(ctx context.Context, sess *session.Session, jobID string) (*jobs.Job, error) {
	if err := sess.Require(jobs.RoleEmployer); err != nil {
		return nil, err
	}

	var seen []*jobs.Application
	job, err := t.store.Update(ctx, jobID, 0, func(job *jobs.Job) (bool, error) {
		if err := ownedBy(job, sess); err != nil {
			return false, err
		}
		now := t.now().UTC()
		for _, app := range job.Applicants {
			if app.Status != jobs.ApplicationPending {
				continue
			}
			app.Status = jobs.ApplicationSeen
			app.UpdatedAt = now
			seen = append(seen, app)
		}
		return len(seen) > 0, nil
	})
	if err != nil {
		return nil, err
	}

	if len(seen) > 0 {
		t.logger.Info("applicants marked seen", logger.Job(job.ID), zap.Int("count", len(seen)))
	}
	for _, app := range seen {
		t.notifyStatus(ctx, job, app, jobs.ApplicationPending)
	}
	return job, nil
}

// ListApplicants returns the applicants of the employer's job, marking pending ones as seen.
func (t *Tracker) ListApplicants(ctx context.Context, sess *session.Session, jobID string) ([]*jobs.Application, error) {
	job, err := t.MarkSeen(ctx, sess, jobID)
	if err != nil {
		return nil, err
	}
	if job.Applicants == nil {
		return []*jobs.Application{}, nil
	}
	return job.Applicants, nil
}

// SetStatus changes one applicant's status under the tracker policy.
// A non-zero expectedVersion must match the job version.
func (t *Tracker) SetStatus(ctx context.Context, sess *session.Session, jobID, workerID string, status jobs.ApplicationStatus, expectedVersion int) (*jobs.Job, *jobs.Application, error) {
	if err := sess.Require(jobs.RoleEmployer); err != nil {
		return nil, nil, err
	}

	var (
		app      *jobs.Application
		previous jobs.ApplicationStatus
	)
	job, err := t.store.Update(ctx, jobID, expectedVersion, func(job *jobs.Job) (bool, error) {
		if err := ownedBy(job, sess); err != nil {
			return false, err
		}
		app = job.FindApplicant(workerID)
		if app == nil {
			return false, fmt.Errorf("%w: worker %s has not applied to job %s", jobs.ErrNotFound, workerID, job.ID)
		}
		if err := t.policy.CheckTransition(app.Status, status); err != nil {
			return false, err
		}
		if app.Status == status {
			return false, nil
		}

		previous = app.Status
		app.Status = status
		app.UpdatedAt = t.now().UTC()
		return true, nil
	})
	if err != nil {
		return nil, nil, err
	}

	if previous != "" {
		t.logger.Info("application status changed",
			logger.Job(job.ID),
			zap.String("worker_id", workerID),
			zap.String("from", string(previous)),
			zap.String("to", string(status)),
			zap.Int("version", job.Version),
		)
		t.notifyStatus(ctx, job, app, previous)
	}
	return job, app, nil
}

func (t *Tracker) notifyApplied(ctx context.Context, job *jobs.Job, app *jobs.Application) {
	if t.notifier != nil {
		t.notifier.Applied(ctx, job, app)
	}
}

func (t *Tracker) notifyStatus(ctx context.Context, job *jobs.Job, app *jobs.Application, previous jobs.ApplicationStatus) {
	if t.notifier != nil {
		t.notifier.StatusChanged(ctx, job, app, previous)
	}
}

func ownedBy(job *jobs.Job, sess *session.Session) error {
	if job.EmployerID != sess.UserID {
		return fmt.Errorf("%w: job %s belongs to another employer", jobs.ErrForbidden, job.ID)
	}
	return nil
}
