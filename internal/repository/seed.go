package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	_ "embed"

	"github.com/spigell/rozgar/internal/jobs"
	"go.uber.org/zap"
)

//go:embed demo_jobs.json
var demoData []byte

type demoSet struct {
	Employers []jobs.User `json:"employers"`
	Jobs      []demoJob   `json:"jobs"`
}

type demoJob struct {
	jobs.Draft
	PostedHoursAgo int `json:"postedHoursAgo"`
}

// SeedDemo loads the bundled demo employers and jobs when the store has no jobs.
// It returns the number of jobs written.
func (r *Repository) SeedDemo(ctx context.Context) (int, error) {
	existing, err := r.store.List(ctx, jobPrefix)
	if err != nil {
		return 0, fmt.Errorf("list jobs: %w", err)
	}
	if len(existing) > 0 {
		r.logger.Debug("store already has jobs, skipping demo seed", zap.Int("jobs", len(existing)))
		return 0, nil
	}

	var set demoSet
	if err := json.Unmarshal(demoData, &set); err != nil {
		return 0, fmt.Errorf("decode demo data: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	employers := make(map[string]jobs.User, len(set.Employers))
	for _, e := range set.Employers {
		e.Role = jobs.RoleEmployer
		if err := r.save(ctx, userKey(e.ID), e); err != nil {
			return 0, fmt.Errorf("seed employer %s: %w", e.ID, err)
		}
		if err := r.save(ctx, phoneKey(e.Phone), phoneRecord{UserID: e.ID}); err != nil {
			return 0, fmt.Errorf("seed employer phone %s: %w", e.ID, err)
		}
		employers[e.ID] = e
	}

	now := r.now().UTC()
	for _, d := range set.Jobs {
		employer := employers[d.EmployerID]
		d.EmployerName = employer.DisplayName()
		d.EmployerVerified = employer.Verified
		d.Normalize()
		if err := d.Validate(); err != nil {
			return 0, fmt.Errorf("demo job %q: %w", d.Title, err)
		}

		job := r.newJob(d.Draft, now.Add(-time.Duration(d.PostedHoursAgo)*time.Hour))

		if err := r.save(ctx, jobKey(job.ID), job); err != nil {
			return 0, fmt.Errorf("seed job %q: %w", job.Title, err)
		}
	}

	r.logger.Info("demo data seeded", zap.Int("employers", len(set.Employers)), zap.Int("jobs", len(set.Jobs)))
	return len(set.Jobs), nil
}
