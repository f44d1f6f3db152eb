package ai

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const (
	IntentFindJob = "find_job"
	IntentPostJob = "post_job"
	IntentUnknown = "unknown"
)

const (
	// ChatFailureText is returned when the provider call fails.
	ChatFailureText = "Maaf kijiye, main abhi baat nahi kar pa raha hoon. Kripya thodi der baad koshish karein."
	// ChatUnavailableText is returned when no provider is configured.
	ChatUnavailableText = "Maaf kijiye, AI service abhi available nahi hai. Thodi der baad try kariye."
)

// ParsedIntent is the structured reading of a single utterance.
type ParsedIntent struct {
	Intent   string  `json:"intent" mapstructure:"intent"`
	Role     string  `json:"role,omitempty" mapstructure:"role"`
	Location string  `json:"location,omitempty" mapstructure:"location"`
	MinWage  float64 `json:"minWage,omitempty" mapstructure:"minWage"`
	WageType string  `json:"wageType,omitempty" mapstructure:"wageType"`
}

// ValidIntent reports whether s is one of the known intents.
func ValidIntent(s string) bool {
	switch s {
	case IntentFindJob, IntentPostJob, IntentUnknown:
		return true
	default:
		return false
	}
}

// FallbackIntent is what callers get whenever extraction cannot produce a result:
// the whole transcript is treated as the role of a job search.
func FallbackIntent(transcript string) ParsedIntent {
	return ParsedIntent{Intent: IntentFindJob, Role: transcript}
}

// FallbackDescription is the templated description used without a model.
func FallbackDescription(role, wage string) string {
	return fmt.Sprintf("Looking for %s paying %s. Good pay.", role, wage)
}

// FormatWage renders a wage without a trailing ".0" for whole amounts.
func FormatWage(wage float64) string {
	return strconv.FormatFloat(wage, 'f', -1, 64)
}

type ChatPart struct {
	Text string `json:"text"`
}

// ChatTurn is one message of a conversation. Role is "user" or "model".
type ChatTurn struct {
	Role  string     `json:"role"`
	Parts []ChatPart `json:"parts"`
}

// Text joins the textual parts of the turn.
func (t ChatTurn) Text() string {
	texts := make([]string, 0, len(t.Parts))
	for _, p := range t.Parts {
		if s := strings.TrimSpace(p.Text); s != "" {
			texts = append(texts, s)
		}
	}
	return strings.Join(texts, "\n")
}

type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type GroundingSource struct {
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
}

type GroundingChunk struct {
	Maps *GroundingSource `json:"maps,omitempty"`
	Web  *GroundingSource `json:"web,omitempty"`
}

type ChatReply struct {
	Text            string           `json:"text"`
	GroundingChunks []GroundingChunk `json:"groundingChunks,omitempty"`
}

// IntentExtractor never fails: any provider problem degrades to FallbackIntent.
type IntentExtractor interface {
	Extract(ctx context.Context, transcript, languageHint string) ParsedIntent
}

type DescriptionWriter interface {
	Describe(ctx context.Context, role, wage string) string
}

type ChatAssistant interface {
	Reply(ctx context.Context, history []ChatTurn, message string, location *LatLng) ChatReply
}

// Assistant bundles every AI capability the service uses.
type Assistant interface {
	IntentExtractor
	DescriptionWriter
	ChatAssistant
}

// Unavailable answers with the fallbacks. It is used when no API key is configured.
type Unavailable struct{}

func (Unavailable) Extract(_ context.Context, transcript, _ string) ParsedIntent {
	return FallbackIntent(transcript)
}

func (Unavailable) Describe(_ context.Context, role, wage string) string {
	return FallbackDescription(role, wage)
}

func (Unavailable) Reply(context.Context, []ChatTurn, string, *LatLng) ChatReply {
	return ChatReply{Text: ChatUnavailableText}
}
