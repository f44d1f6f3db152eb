package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spigell/rozgar/internal/ai"
	"github.com/spigell/rozgar/internal/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genai"
)

type stubGenerator struct {
	response string
	err      error

	chatResp *genai.GenerateContentResponse
	chatErr  error

	lastPrompt  string
	lastConfig  *genai.GenerateContentConfig
	lastHistory []*genai.Content
	lastMessage string
	deadline    time.Time
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	s.lastPrompt = prompt
	s.lastConfig = config
	s.deadline, _ = ctx.Deadline()
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Chat(ctx context.Context, config *genai.GenerateContentConfig, history []*genai.Content, message string) (*genai.GenerateContentResponse, error) {
	s.lastConfig = config
	s.lastHistory = history
	s.lastMessage = message
	s.deadline, _ = ctx.Deadline()
	return s.chatResp, s.chatErr
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func TestExtractParsesModelOutput(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     ai.ParsedIntent
	}{
		{
			name:     "plain json",
			response: `{"intent":"find_job","role":"driver","location":"Patna","minWage":15000,"wageType":"monthly"}`,
			want:     ai.ParsedIntent{Intent: "find_job", Role: "driver", Location: "Patna", MinWage: 15000, WageType: "monthly"},
		},
		{
			name:     "fenced json with string wage",
			response: "```json\n{\"intent\":\"post_job\",\"role\":\" mason \",\"minWage\":\"600\",\"wageType\":\"daily\"}\n```",
			want:     ai.ParsedIntent{Intent: "post_job", Role: "mason", MinWage: 600, WageType: "daily"},
		},
		{
			name:     "rupee wage and unknown wage type",
			response: `{"intent":"find_job","role":"maid","minWage":"₹8,000","wageType":"weekly"}`,
			want:     ai.ParsedIntent{Intent: "find_job", Role: "maid", MinWage: 8000},
		},
		{
			name:     "negative wage dropped",
			response: `{"intent":"find_job","role":"cook","minWage":-5}`,
			want:     ai.ParsedIntent{Intent: "find_job", Role: "cook"},
		},
		{
			name:     "unknown intent kept",
			response: `{"intent":"unknown"}`,
			want:     ai.ParsedIntent{Intent: "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubGenerator{response: tt.response}
			a := NewAssistant(stub, zap.NewNop(), 0, 0)

			got := a.Extract(context.Background(), "some transcript", "hi-IN")
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestExtractFallsBackOnFailure(t *testing.T) {
	const transcript = "mujhe Patna mein driver ka kaam chahiye"
	want := ai.ParsedIntent{Intent: ai.IntentFindJob, Role: transcript}

	tests := []struct {
		name string
		stub *stubGenerator
	}{
		{name: "call error", stub: &stubGenerator{err: errors.New("network down")}},
		{name: "timeout", stub: &stubGenerator{err: context.DeadlineExceeded}},
		{name: "malformed json", stub: &stubGenerator{response: `{"intent": "find_job",`}},
		{name: "intent outside enum", stub: &stubGenerator{response: `{"intent":"buy_house","role":"x"}`}},
		{name: "missing intent", stub: &stubGenerator{response: `{"role":"driver"}`}},
		{name: "not an object", stub: &stubGenerator{response: `["find_job"]`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssistant(tt.stub, zap.NewNop(), 0, 0)
			if got := a.Extract(context.Background(), transcript, ""); got != want {
				t.Fatalf("expected fallback %+v, got %+v", want, got)
			}
		})
	}
}

func TestExtractEmptyModelTextIsUnknown(t *testing.T) {
	stub := &stubGenerator{err: ErrEmptyResponse}
	a := NewAssistant(stub, zap.NewNop(), 0, 0)

	got := a.Extract(context.Background(), "hello", "en")
	if got != (ai.ParsedIntent{Intent: ai.IntentUnknown}) {
		t.Fatalf("expected unknown intent, got %+v", got)
	}
}

func TestExtractPromptAndSchema(t *testing.T) {
	stub := &stubGenerator{response: `{"intent":"find_job"}`}
	a := NewAssistant(stub, zap.NewNop(), 2*time.Second, 0)

	start := time.Now()
	a.Extract(context.Background(), "  plumber chahiye  ", "")

	if !strings.Contains(stub.lastPrompt, `User Input (unknown): "plumber chahiye"`) {
		t.Fatalf("unexpected prompt: %s", stub.lastPrompt)
	}
	if stub.lastConfig == nil || stub.lastConfig.ResponseMIMEType != "application/json" {
		t.Fatal("expected json response mime type")
	}
	schema := stub.lastConfig.ResponseSchema
	if schema == nil || len(schema.Required) != 1 || schema.Required[0] != "intent" {
		t.Fatalf("unexpected schema: %+v", schema)
	}
	if got := schema.Properties["wageType"].Enum; len(got) != 2 {
		t.Fatalf("unexpected wage type enum: %v", got)
	}
	if stub.deadline.IsZero() || stub.deadline.Sub(start) > 2*time.Second+time.Second {
		t.Fatalf("expected a bounded deadline, got %v", stub.deadline)
	}
}

func TestExtractBlankTranscript(t *testing.T) {
	stub := &stubGenerator{response: `{"intent":"find_job"}`}
	a := NewAssistant(stub, zap.NewNop(), 0, 0)

	if got := a.Extract(context.Background(), "   ", ""); got.Intent != ai.IntentUnknown {
		t.Fatalf("expected unknown, got %+v", got)
	}
	if stub.lastPrompt != "" {
		t.Fatal("model must not be called for a blank transcript")
	}
}

func TestExtractLogsWithProviderFields(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	stub := &stubGenerator{err: errors.New("quota")}
	a := NewAssistant(stub, zap.New(core), 0, 0)

	a.Extract(context.Background(), "driver", "")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields[logger.FieldProvider] != "gemini" || fields[logger.FieldModel] != "stub-model" {
		t.Fatalf("missing provider fields: %v", fields)
	}
}

func TestDescribe(t *testing.T) {
	stub := &stubGenerator{response: "Need a careful driver for daily city trips."}
	a := NewAssistant(stub, zap.NewNop(), 0, 0)

	got := a.Describe(context.Background(), "Driver", "15000")
	if got != stub.response {
		t.Fatalf("unexpected description %q", got)
	}
	if !strings.Contains(stub.lastPrompt, "for a Driver paying 15000.") {
		t.Fatalf("unexpected prompt %q", stub.lastPrompt)
	}
}

func TestDescribeFallback(t *testing.T) {
	for _, err := range []error{errors.New("boom"), ErrEmptyResponse} {
		a := NewAssistant(&stubGenerator{err: err}, zap.NewNop(), 0, 0)
		if got := a.Describe(context.Background(), "Mason", "600"); got != "Looking for Mason paying 600. Good pay." {
			t.Fatalf("unexpected fallback %q", got)
		}
	}
}

func TestReplyWithGrounding(t *testing.T) {
	resp := textResponse("Gandhi Maidan yahan se 2 km hai.")
	resp.Candidates[0].GroundingMetadata = &genai.GroundingMetadata{
		GroundingChunks: []*genai.GroundingChunk{
			{Maps: &genai.GroundingChunkMaps{URI: "https://maps.google.com/?cid=1", Title: "Gandhi Maidan"}},
			{},
		},
	}
	stub := &stubGenerator{chatResp: resp}
	a := NewAssistant(stub, zap.NewNop(), 0, 0)

	history := []ai.ChatTurn{
		{Role: "user", Parts: []ai.ChatPart{{Text: "namaste"}}},
		{Role: "model", Parts: []ai.ChatPart{{Text: "Namaste! Kaise madad karun?"}}},
		{Role: "user", Parts: []ai.ChatPart{{Text: "  "}}},
	}
	reply := a.Reply(context.Background(), history, "Gandhi Maidan kitna door hai?", &ai.LatLng{Latitude: 25.61, Longitude: 85.14})

	if reply.Text != "Gandhi Maidan yahan se 2 km hai." {
		t.Fatalf("unexpected text %q", reply.Text)
	}
	if len(reply.GroundingChunks) != 1 || reply.GroundingChunks[0].Maps.Title != "Gandhi Maidan" {
		t.Fatalf("unexpected grounding chunks: %+v", reply.GroundingChunks)
	}
	if len(stub.lastHistory) != 2 || stub.lastHistory[1].Role != "model" {
		t.Fatalf("unexpected history: %+v", stub.lastHistory)
	}
	cfg := stub.lastConfig
	if cfg.SystemInstruction == nil || !strings.Contains(cfg.SystemInstruction.Parts[0].Text, "Rozgar Sahayak") {
		t.Fatal("expected the assistant system instruction")
	}
	if len(cfg.Tools) != 1 || cfg.Tools[0].GoogleMaps == nil {
		t.Fatal("expected google maps tool")
	}
	if cfg.ToolConfig == nil || *cfg.ToolConfig.RetrievalConfig.LatLng.Latitude != 25.61 {
		t.Fatal("expected retrieval lat/lng")
	}
}

func TestReplyWithoutLocationHasNoToolConfig(t *testing.T) {
	stub := &stubGenerator{chatResp: textResponse("ok")}
	a := NewAssistant(stub, zap.NewNop(), 0, 0)

	a.Reply(context.Background(), nil, "hello", nil)
	if stub.lastConfig.ToolConfig != nil {
		t.Fatal("tool config must be empty without a location")
	}
}

func TestReplyFailure(t *testing.T) {
	tests := []*stubGenerator{
		{chatErr: errors.New("boom")},
		{chatResp: &genai.GenerateContentResponse{}},
	}
	for _, stub := range tests {
		a := NewAssistant(stub, zap.NewNop(), 0, 0)
		reply := a.Reply(context.Background(), nil, "hello", nil)
		if reply.Text != ai.ChatFailureText || reply.GroundingChunks != nil {
			t.Fatalf("unexpected reply %+v", reply)
		}
	}
}
