package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/rozgar/internal/ai"
	"github.com/spigell/rozgar/internal/jobs"
	"github.com/spigell/rozgar/internal/repository"
	"github.com/spigell/rozgar/internal/session"
	"go.uber.org/zap"
)

// Query is a worker search. Zero values mean "not requested", except Radius
// which falls back to the engine default.
type Query struct {
	Role     string   `json:"role,omitempty"`
	Location string   `json:"location,omitempty"`
	Category string   `json:"category,omitempty"`
	MinWage  float64  `json:"minWage,omitempty"`
	Radius   float64  `json:"radius,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
}

// VoiceQuery is a spoken search with optional position and radius.
type VoiceQuery struct {
	Transcript string   `json:"transcript"`
	Lang       string   `json:"currentLang"`
	Radius     float64  `json:"radius,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

type VoiceResult struct {
	Intent ai.ParsedIntent `json:"intent"`
	Jobs   []*jobs.Job     `json:"jobs"`
}

type VoiceDraft struct {
	Intent ai.ParsedIntent `json:"intent"`
	Draft  jobs.Draft      `json:"draft"`
}

type JobStore interface {
	List(ctx context.Context, filter repository.Filter) (*jobs.Jobs, error)
	RecordSearch(ctx context.Context, userID string, search jobs.RecentSearch) (*jobs.User, error)
}

type Interpreter interface {
	ai.IntentExtractor
	ai.DescriptionWriter
}

// Engine runs searches through the filter pipeline and ranks the result.
type Engine struct {
	store         JobStore
	interpreter   Interpreter
	logger        *zap.Logger
	defaultRadius float64
}

func NewEngine(store JobStore, interpreter Interpreter, logger *zap.Logger, defaultRadius float64) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:         store,
		interpreter:   interpreter,
		logger:        logger,
		defaultRadius: ClampRadius(defaultRadius, DefaultRadiusKm),
	}
}

// Steps returns a fresh pipeline. Filters keep per-run state, so every search builds its own.
func (e *Engine) Steps() []Filter {
	return []Filter{
		NewRole(),
		NewLocation(),
		NewCategory(),
		NewMinWage(),
		NewRadius(e.defaultRadius),
	}
}

// Explain validates a fresh pipeline against q and reports what every step would do.
func (e *Engine) Explain(q Query) ([]Status, error) {
	steps := e.Steps()
	for _, step := range steps {
		if err := step.Validate(&q); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return Describe(steps), nil
}

func (e *Engine) Search(ctx context.Context, q Query) (*jobs.Jobs, error) {
	all, err := e.store.List(ctx, repository.Filter{})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	left, err := Run(ctx, &q, Deps{Logger: e.logger}, e.Steps(), all)
	if err != nil {
		return nil, err
	}
	return Rank(left), nil
}

// SearchByVoice extracts the intent and searches with its role and location.
// Without either it returns the unfiltered list. Worker searches are recorded
// in the search history.
func (e *Engine) SearchByVoice(ctx context.Context, sess *session.Session, vq VoiceQuery) (*VoiceResult, error) {
	intent := e.interpreter.Extract(ctx, vq.Transcript, vq.Lang)

	q := Query{Radius: vq.Radius, Lat: vq.Lat, Lng: vq.Lng}
	if intent.Role != "" || intent.Location != "" {
		q.Role = intent.Role
		q.Location = intent.Location

		if sess.IsWorker() {
			search := jobs.RecentSearch{Text: strings.TrimSpace(vq.Transcript), Role: intent.Role, Location: intent.Location}
			if _, err := e.store.RecordSearch(ctx, sess.UserID, search); err != nil {
				e.logger.Warn("failed to record search", zap.String("user_id", sess.UserID), zap.Error(err))
			}
		}
	}

	found, err := e.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	e.logger.Info("voice search",
		zap.String("intent", intent.Intent),
		zap.String("role", q.Role),
		zap.String("location", q.Location),
		zap.Int("jobs", found.Len()),
	)
	return &VoiceResult{Intent: intent, Jobs: found.Items}, nil
}

// DraftFromVoice turns an employer's utterance into a job draft for review.
// The employer's own location is used when the utterance names none.
func (e *Engine) DraftFromVoice(ctx context.Context, transcript, lang string, employer *jobs.User) (*VoiceDraft, error) {
	if employer == nil || employer.Role != jobs.RoleEmployer {
		return nil, fmt.Errorf("%w: employer only", jobs.ErrForbidden)
	}

	intent := e.interpreter.Extract(ctx, transcript, lang)

	draft := jobs.Draft{
		Title:            intent.Role,
		Category:         strings.ToLower(intent.Role),
		Wage:             intent.MinWage,
		WageType:         intent.WageType,
		Location:         intent.Location,
		EmployerID:       employer.ID,
		EmployerName:     employer.DisplayName(),
		EmployerVerified: employer.Verified,
	}
	if draft.Location == "" {
		draft.Location = employer.Location
	}
	if draft.Title != "" && draft.Wage > 0 {
		draft.Description = e.interpreter.Describe(ctx, draft.Title, ai.FormatWage(draft.Wage))
	}

	e.logger.Info("voice draft",
		zap.String("employer_id", employer.ID),
		zap.String("intent", intent.Intent),
		zap.String("title", draft.Title),
	)
	return &VoiceDraft{Intent: intent, Draft: draft}, nil
}
