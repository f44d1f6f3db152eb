package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spigell/rozgar/internal/geo"
	"github.com/spigell/rozgar/internal/jobs"
	"github.com/spigell/rozgar/internal/logger"
	"go.uber.org/zap"
)

// Filter narrows List. Both fields are case-insensitive substrings and combine with AND.
type Filter struct {
	Role     string
	Location string
}

// Mutation changes a job in place and reports whether anything changed.
// Returning false skips the write and keeps the version.
type Mutation func(job *jobs.Job) (bool, error)

// List returns jobs newest first.
func (r *Repository) List(ctx context.Context, filter Filter) (*jobs.Jobs, error) {
	all, err := r.allJobs(ctx)
	if err != nil {
		return nil, err
	}

	all.Keep(func(j *jobs.Job) bool {
		return j.Contains(filter.Role) && j.InLocation(filter.Location)
	})
	return all, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*jobs.Job, error) {
	var job jobs.Job
	if err := r.load(ctx, jobKey(id), &job); err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}
	return &job, nil
}

// Create validates the draft and stores a new OPEN job.
func (r *Repository) Create(ctx context.Context, draft jobs.Draft) (*jobs.Job, error) {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	job := r.newJob(draft, r.now().UTC())

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.save(ctx, jobKey(job.ID), job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	r.logger.Info("job created",
		logger.Job(job.ID),
		zap.String("employer_id", job.EmployerID),
		zap.String("title", job.Title),
	)
	return job, nil
}

// Update runs mutate on the stored job under the repository lock.
// A non-zero expectedVersion must match the stored version.
func (r *Repository) Update(ctx context.Context, id string, expectedVersion int, mutate Mutation) (*jobs.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion != 0 && expectedVersion != job.Version {
		return nil, fmt.Errorf("%w: job %s is at version %d, not %d", jobs.ErrVersionConflict, id, job.Version, expectedVersion)
	}

	changed, err := mutate(job)
	if err != nil {
		return nil, err
	}
	if !changed {
		return job, nil
	}

	job.Version++
	if err := r.save(ctx, jobKey(id), job); err != nil {
		return nil, fmt.Errorf("update job %s: %w", id, err)
	}
	return job, nil
}

// CloseJob moves an OPEN job to CLOSED. Only the owning employer may do that.
func (r *Repository) CloseJob(ctx context.Context, id, employerID string) (*jobs.Job, error) {
	return r.Update(ctx, id, 0, func(job *jobs.Job) (bool, error) {
		if job.EmployerID != employerID {
			return false, fmt.Errorf("%w: job %s belongs to another employer", jobs.ErrForbidden, id)
		}
		if !job.IsOpen() {
			return false, nil
		}
		job.Status = jobs.StatusClosed
		r.logger.Info("job closed", logger.Job(id))
		return true, nil
	})
}

func (r *Repository) ByEmployer(ctx context.Context, employerID string) (*jobs.Jobs, error) {
	all, err := r.allJobs(ctx)
	if err != nil {
		return nil, err
	}
	all.Keep(func(j *jobs.Job) bool { return j.EmployerID == employerID })
	return all, nil
}

func (r *Repository) AppliedByWorker(ctx context.Context, workerID string) (*jobs.Jobs, error) {
	all, err := r.allJobs(ctx)
	if err != nil {
		return nil, err
	}
	all.Keep(func(j *jobs.Job) bool { return j.HasApplicant(workerID) })
	return all, nil
}

func (r *Repository) allJobs(ctx context.Context) (*jobs.Jobs, error) {
	entries, err := r.store.List(ctx, jobPrefix)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	list := &jobs.Jobs{Items: make([]*jobs.Job, 0, len(entries))}
	for _, e := range entries {
		var job jobs.Job
		if err := json.Unmarshal(e.Value, &job); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Key, err)
		}
		list.Items = append(list.Items, &job)
	}

	sort.SliceStable(list.Items, func(i, j int) bool {
		return list.Items[i].PostedAt.After(list.Items[j].PostedAt)
	})
	return list, nil
}

func (r *Repository) newJob(d jobs.Draft, postedAt time.Time) *jobs.Job {
	job := &jobs.Job{
		ID:               r.newID(),
		Title:            d.Title,
		Category:         d.Category,
		Description:      d.Description,
		Wage:             d.Wage,
		WageType:         d.WageType,
		Location:         d.Location,
		Coordinates:      d.Coordinates,
		Urgent:           d.Urgent,
		Status:           jobs.StatusOpen,
		PostedAt:         postedAt,
		EmployerID:       d.EmployerID,
		EmployerName:     d.EmployerName,
		EmployerVerified: d.EmployerVerified,
		Version:          1,
		Applicants:       []*jobs.Application{},
	}
	job.Distance = r.distanceFromOrigin(job.Coordinates)
	return job
}

func (r *Repository) distanceFromOrigin(c *jobs.Coordinates) *float64 {
	if r.origin == nil || c == nil {
		return nil
	}
	d := geo.Round1(geo.DistanceKm(r.origin.Lat, r.origin.Lng, c.Lat, c.Lng))
	return &d
}

func jobKey(id string) string {
	return jobPrefix + id
}
