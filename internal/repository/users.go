package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/rozgar/internal/jobs"
	"github.com/spigell/rozgar/internal/logger"
	"go.uber.org/zap"
)

const (
	defaultWorkerName   = "New Worker"
	defaultEmployerName = "New Employer"
	defaultLocation     = "Patna, Bihar"
	defaultCompanyName  = "My Business"
)

type phoneRecord struct {
	UserID string `json:"userId"`
}

// Login finds the user registered under phone or registers a new one.
// The bool result reports whether the user was created.
func (r *Repository) Login(ctx context.Context, phone string, role jobs.Role) (*jobs.User, bool, error) {
	phone, err := jobs.NormalizePhone(phone)
	if err != nil {
		return nil, false, err
	}
	if role != jobs.RoleWorker && role != jobs.RoleEmployer {
		return nil, false, fmt.Errorf("%w: unsupported role %q", jobs.ErrValidation, role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.userByPhone(ctx, phone)
	switch {
	case err == nil:
		if existing.Role != role {
			return nil, false, fmt.Errorf("%w: phone is registered as %s", jobs.ErrRoleMismatch, existing.Role)
		}
		return existing, false, nil
	case !errors.Is(err, jobs.ErrNotFound):
		return nil, false, err
	}

	user := &jobs.User{
		ID:       r.newID(),
		Phone:    phone,
		Role:     role,
		Name:     defaultWorkerName,
		Location: defaultLocation,
	}
	if role == jobs.RoleEmployer {
		user.Name = defaultEmployerName
		user.CompanyName = defaultCompanyName
	}

	if err := r.save(ctx, userKey(user.ID), user); err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	if err := r.save(ctx, phoneKey(phone), phoneRecord{UserID: user.ID}); err != nil {
		return nil, false, fmt.Errorf("index phone: %w", err)
	}

	r.logger.Info("user registered", logger.User(user.ID), zap.String("role", string(role)))
	return user, true, nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (*jobs.User, error) {
	var user jobs.User
	if err := r.load(ctx, userKey(id), &user); err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return &user, nil
}

func (r *Repository) UserByPhone(ctx context.Context, phone string) (*jobs.User, error) {
	phone, err := jobs.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	return r.userByPhone(ctx, phone)
}

func (r *Repository) userByPhone(ctx context.Context, phone string) (*jobs.User, error) {
	var rec phoneRecord
	if err := r.load(ctx, phoneKey(phone), &rec); err != nil {
		return nil, err
	}
	return r.GetUser(ctx, rec.UserID)
}

// UpdateUser runs mutate on the stored user under the repository lock.
func (r *Repository) UpdateUser(ctx context.Context, id string, mutate func(*jobs.User) error) (*jobs.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, err := r.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(user); err != nil {
		return nil, err
	}
	if err := r.save(ctx, userKey(id), user); err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	return user, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, id string, profile jobs.Profile) (*jobs.User, error) {
	return r.UpdateUser(ctx, id, func(u *jobs.User) error {
		u.Apply(profile)
		return nil
	})
}

// ToggleSavedJob flips the bookmark. The job must exist.
func (r *Repository) ToggleSavedJob(ctx context.Context, userID, jobID string) (*jobs.User, error) {
	if _, err := r.Get(ctx, jobID); err != nil {
		return nil, err
	}
	return r.UpdateUser(ctx, userID, func(u *jobs.User) error {
		u.ToggleSaved(jobID)
		return nil
	})
}

// SavedJobs resolves the user's bookmarks, skipping jobs that no longer resolve.
func (r *Repository) SavedJobs(ctx context.Context, userID string) (*jobs.Jobs, error) {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	saved := &jobs.Jobs{Items: make([]*jobs.Job, 0, len(user.SavedJobIDs))}
	for _, id := range user.SavedJobIDs {
		job, err := r.Get(ctx, id)
		if errors.Is(err, jobs.ErrNotFound) {
			r.logger.Debug("saved job is gone", logger.User(userID), logger.Job(id))
			continue
		}
		if err != nil {
			return nil, err
		}
		saved.Items = append(saved.Items, job)
	}
	return saved, nil
}

func (r *Repository) RecordSearch(ctx context.Context, userID string, search jobs.RecentSearch) (*jobs.User, error) {
	search.Text = strings.TrimSpace(search.Text)
	if search.Text == "" {
		return nil, fmt.Errorf("%w: search text is empty", jobs.ErrValidation)
	}
	if search.Timestamp.IsZero() {
		search.Timestamp = r.now().UTC()
	}
	return r.UpdateUser(ctx, userID, func(u *jobs.User) error {
		u.RecordSearch(search)
		return nil
	})
}

// AddNotification prepends a notification to the user's inbox.
func (r *Repository) AddNotification(ctx context.Context, userID string, n jobs.Notification) (*jobs.User, error) {
	if n.ID == "" {
		n.ID = r.newID()
	}
	if n.Type == "" {
		n.Type = jobs.NotificationInfo
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = r.now().UTC()
	}
	n.IsRead = false
	return r.UpdateUser(ctx, userID, func(u *jobs.User) error {
		u.Notifications = append([]jobs.Notification{n}, u.Notifications...)
		return nil
	})
}

func (r *Repository) MarkNotificationsRead(ctx context.Context, userID string) (*jobs.User, error) {
	return r.UpdateUser(ctx, userID, func(u *jobs.User) error {
		for i := range u.Notifications {
			u.Notifications[i].IsRead = true
		}
		return nil
	})
}

func (r *Repository) SetAudioResume(ctx context.Context, userID, url string) (*jobs.User, error) {
	return r.UpdateUser(ctx, userID, func(u *jobs.User) error {
		u.AudioResume = url
		return nil
	})
}

func userKey(id string) string {
	return userPrefix + id
}

func phoneKey(phone string) string {
	return phonePrefix + phone
}
