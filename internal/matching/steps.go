package matching

import (
	"context"
	"strconv"
	"strings"

	"github.com/spigell/rozgar/internal/geo"
	"github.com/spigell/rozgar/internal/jobs"
	"go.uber.org/zap"
)

const (
	DefaultRadiusKm = 5
	MinRadiusKm     = 1
	MaxRadiusKm     = 20

	notRequested = "not requested"
)

// ClampRadius applies the default to a non-positive radius and keeps the result in range.
func ClampRadius(radius, fallback float64) float64 {
	if radius <= 0 {
		radius = fallback
	}
	if radius <= 0 {
		radius = DefaultRadiusKm
	}
	if radius < MinRadiusKm {
		return MinRadiusKm
	}
	if radius > MaxRadiusKm {
		return MaxRadiusKm
	}
	return radius
}

type roleFilter struct {
	toggle
	role string
}

// NewRole keeps jobs whose title, category or description mention the role.
func NewRole() Filter {
	return &roleFilter{}
}

func (f *roleFilter) Name() string { return "role" }

func (f *roleFilter) Validate(q *Query) error {
	f.reset()
	f.role = strings.TrimSpace(q.Role)
	if f.role == "" {
		f.Disable(notRequested)
	}
	return nil
}

func (f *roleFilter) Apply(_ context.Context, deps Deps, v *jobs.Jobs) (*jobs.Jobs, Step, error) {
	initial := v.Len()
	excluded := v.Keep(func(j *jobs.Job) bool { return j.Contains(f.role) })
	if len(excluded) > 0 {
		deps.Logger.Debug("excluding jobs by role",
			zap.String("role", f.role),
			zap.Strings("excluded_jobs", excluded),
		)
	}
	return v, Step{Initial: initial, Dropped: len(excluded), Left: v.Len()}, nil
}

func (f *roleFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: map[string]string{"role": f.role}}
}

type locationFilter struct {
	toggle
	location string
}

// NewLocation keeps jobs whose location mentions the requested place.
func NewLocation() Filter {
	return &locationFilter{}
}

func (f *locationFilter) Name() string { return "location" }

func (f *locationFilter) Validate(q *Query) error {
	f.reset()
	f.location = strings.TrimSpace(q.Location)
	if f.location == "" {
		f.Disable(notRequested)
	}
	return nil
}

func (f *locationFilter) Apply(_ context.Context, deps Deps, v *jobs.Jobs) (*jobs.Jobs, Step, error) {
	initial := v.Len()
	excluded := v.Keep(func(j *jobs.Job) bool { return j.InLocation(f.location) })
	if len(excluded) > 0 {
		deps.Logger.Debug("excluding jobs by location",
			zap.String("location", f.location),
			zap.Strings("excluded_jobs", excluded),
		)
	}
	return v, Step{Initial: initial, Dropped: len(excluded), Left: v.Len()}, nil
}

func (f *locationFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: map[string]string{"location": f.location}}
}

type categoryFilter struct {
	toggle
	category string
}

// NewCategory keeps jobs of exactly the requested category, ignoring case.
func NewCategory() Filter {
	return &categoryFilter{}
}

func (f *categoryFilter) Name() string { return "category" }

func (f *categoryFilter) Validate(q *Query) error {
	f.reset()
	f.category = strings.TrimSpace(q.Category)
	if f.category == "" {
		f.Disable(notRequested)
	}
	return nil
}

func (f *categoryFilter) Apply(_ context.Context, deps Deps, v *jobs.Jobs) (*jobs.Jobs, Step, error) {
	initial := v.Len()
	excluded := v.Keep(func(j *jobs.Job) bool { return strings.EqualFold(j.Category, f.category) })
	if len(excluded) > 0 {
		deps.Logger.Debug("excluding jobs by category",
			zap.String("category", f.category),
			zap.Strings("excluded_jobs", excluded),
		)
	}
	return v, Step{Initial: initial, Dropped: len(excluded), Left: v.Len()}, nil
}

func (f *categoryFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: map[string]string{"category": f.category}}
}

type minWageFilter struct {
	toggle
	minWage float64
}

// NewMinWage drops jobs paying less than the requested amount.
func NewMinWage() Filter {
	return &minWageFilter{}
}

func (f *minWageFilter) Name() string { return "min_wage" }

func (f *minWageFilter) Validate(q *Query) error {
	f.reset()
	f.minWage = q.MinWage
	if f.minWage <= 0 {
		f.Disable(notRequested)
	}
	return nil
}

func (f *minWageFilter) Apply(_ context.Context, deps Deps, v *jobs.Jobs) (*jobs.Jobs, Step, error) {
	initial := v.Len()
	excluded := v.Keep(func(j *jobs.Job) bool { return j.Wage >= f.minWage })
	if len(excluded) > 0 {
		deps.Logger.Debug("excluding jobs below minimum wage",
			zap.Float64("min_wage", f.minWage),
			zap.Strings("excluded_jobs", excluded),
		)
	}
	return v, Step{Initial: initial, Dropped: len(excluded), Left: v.Len()}, nil
}

func (f *minWageFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason,
		Details: map[string]string{"min_wage": strconv.FormatFloat(f.minWage, 'f', -1, 64)}}
}

type radiusFilter struct {
	toggle
	fallback float64
	radius   float64
	origin   *jobs.Coordinates
}

// NewRadius drops jobs farther than the query radius. Jobs without a known
// distance are kept. With searcher coordinates the distance is recomputed
// for every job that has coordinates.
func NewRadius(defaultRadius float64) Filter {
	return &radiusFilter{fallback: defaultRadius}
}

func (f *radiusFilter) Name() string { return "radius" }

func (f *radiusFilter) Validate(q *Query) error {
	f.reset()
	f.radius = ClampRadius(q.Radius, f.fallback)
	f.origin = nil
	if q.Lat != nil && q.Lng != nil {
		f.origin = &jobs.Coordinates{Lat: *q.Lat, Lng: *q.Lng}
	}
	return nil
}

func (f *radiusFilter) Apply(_ context.Context, deps Deps, v *jobs.Jobs) (*jobs.Jobs, Step, error) {
	initial := v.Len()

	if f.origin != nil {
		for _, job := range v.Items {
			if job.Coordinates == nil {
				continue
			}
			d := geo.Round1(geo.DistanceKm(f.origin.Lat, f.origin.Lng, job.Coordinates.Lat, job.Coordinates.Lng))
			job.Distance = &d
		}
	}

	excluded := v.Keep(func(j *jobs.Job) bool {
		return j.Distance == nil || *j.Distance <= f.radius
	})
	if len(excluded) > 0 {
		deps.Logger.Debug("excluding jobs outside radius",
			zap.Float64("radius_km", f.radius),
			zap.Bool("searcher_position", f.origin != nil),
			zap.Strings("excluded_jobs", excluded),
		)
	}
	return v, Step{Initial: initial, Dropped: len(excluded), Left: v.Len()}, nil
}

func (f *radiusFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: true,
		Details: map[string]string{"radius_km": strconv.FormatFloat(f.radius, 'f', -1, 64)}}
}
