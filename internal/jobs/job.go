package jobs

import (
	"fmt"
	"strings"
	"time"
)

const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"

	WageDaily   = "daily"
	WageMonthly = "monthly"
)

type Jobs struct {
	Items []*Job
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Job struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Category         string         `json:"category"`
	Description      string         `json:"description"`
	Wage             float64        `json:"wage"`
	WageType         string         `json:"wageType"`
	Location         string         `json:"location"`
	Coordinates      *Coordinates   `json:"coordinates,omitempty"`
	Urgent           bool           `json:"urgent"`
	Status           string         `json:"status"`
	PostedAt         time.Time      `json:"postedAt"`
	EmployerID       string         `json:"employerId"`
	EmployerName     string         `json:"employerName"`
	EmployerVerified bool           `json:"employerVerified"`
	Distance         *float64       `json:"distance,omitempty"`
	Version          int            `json:"version"`
	Applicants       []*Application `json:"applicants"`
}

// Draft is the employer-supplied part of a job. The rest is assigned on create.
type Draft struct {
	Title            string       `json:"title"`
	Category         string       `json:"category"`
	Description      string       `json:"description"`
	Wage             float64      `json:"wage"`
	WageType         string       `json:"wageType"`
	Location         string       `json:"location"`
	Coordinates      *Coordinates `json:"coordinates,omitempty"`
	Urgent           bool         `json:"urgent"`
	EmployerID       string       `json:"employerId"`
	EmployerName     string       `json:"employerName"`
	EmployerVerified bool         `json:"employerVerified"`
}

// Normalize trims the free-text fields and fills the defaults the posting form uses.
func (d *Draft) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Location = strings.TrimSpace(d.Location)
	d.Description = strings.TrimSpace(d.Description)
	d.WageType = strings.ToLower(strings.TrimSpace(d.WageType))
	if d.WageType == "" {
		d.WageType = WageMonthly
	}
	d.Category = strings.ToLower(strings.TrimSpace(d.Category))
	if d.Category == "" {
		d.Category = strings.ToLower(d.Title)
	}
}

func (d *Draft) Validate() error {
	if d.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if d.Wage <= 0 {
		return fmt.Errorf("%w: wage must be positive, got %v", ErrValidation, d.Wage)
	}
	if !ValidWageType(d.WageType) {
		return fmt.Errorf("%w: unsupported wage type %q", ErrValidation, d.WageType)
	}
	if d.EmployerID == "" {
		return fmt.Errorf("%w: employer is required", ErrValidation)
	}
	return nil
}

func ValidWageType(s string) bool {
	return s == WageDaily || s == WageMonthly
}

func (j *Job) IsOpen() bool {
	return j.Status == StatusOpen
}

// FindApplicant returns the application of the given worker or nil.
func (j *Job) FindApplicant(workerID string) *Application {
	for _, a := range j.Applicants {
		if a.WorkerID == workerID {
			return a
		}
	}
	return nil
}

func (j *Job) HasApplicant(workerID string) bool {
	return j.FindApplicant(workerID) != nil
}

// Clone returns a deep copy so callers can hand jobs out without sharing applicant slices.
func (j *Job) Clone() *Job {
	c := *j
	if j.Coordinates != nil {
		coords := *j.Coordinates
		c.Coordinates = &coords
	}
	if j.Distance != nil {
		d := *j.Distance
		c.Distance = &d
	}
	c.Applicants = make([]*Application, 0, len(j.Applicants))
	for _, a := range j.Applicants {
		app := *a
		app.WorkerSkills = append([]string(nil), a.WorkerSkills...)
		c.Applicants = append(c.Applicants, &app)
	}
	return &c
}

// Contains reports whether the needle occurs in the title, category or description.
func (j *Job) Contains(needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(j.Title), needle) ||
		strings.Contains(strings.ToLower(j.Category), needle) ||
		strings.Contains(strings.ToLower(j.Description), needle)
}

func (j *Job) InLocation(location string) bool {
	location = strings.ToLower(strings.TrimSpace(location))
	if location == "" {
		return true
	}
	return strings.Contains(strings.ToLower(j.Location), location)
}

func (v *Jobs) Len() int {
	if v == nil {
		return 0
	}
	return len(v.Items)
}

func (v *Jobs) FindByID(id string) *Job {
	for _, job := range v.Items {
		if job.ID == id {
			return job
		}
	}
	return nil
}

func (v *Jobs) IDs() []string {
	ids := make([]string, 0, len(v.Items))
	for _, job := range v.Items {
		ids = append(ids, job.ID)
	}
	return ids
}

// Keep retains the jobs accepted by fn and returns the ids of dropped ones.
// Order of the kept jobs is preserved.
func (v *Jobs) Keep(fn func(*Job) bool) []string {
	var dropped []string
	kept := v.Items[:0]
	for _, job := range v.Items {
		if fn(job) {
			kept = append(kept, job)
			continue
		}
		dropped = append(dropped, job.ID)
	}
	v.Items = kept
	return dropped
}

// ReportByEmployer groups jobs under "<employer name> (<employer id>)".
func (v *Jobs) ReportByEmployer() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, job := range v.Items {
		key := fmt.Sprintf("%s (%s)", job.EmployerName, job.EmployerID)
		report[key] = append(report[key], map[string]string{
			"title":      job.Title,
			"location":   job.Location,
			"wage":       fmt.Sprintf("%.0f/%s", job.Wage, job.WageType),
			"status":     job.Status,
			"applicants": fmt.Sprintf("%d", len(job.Applicants)),
		})
	}
	return report
}
