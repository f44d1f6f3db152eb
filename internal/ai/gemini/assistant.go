package gemini

import (
	"context"
	"time"

	"github.com/spigell/rozgar/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultTimeout      = 5 * time.Second
	defaultMaxLogLength = 200
)

type generator interface {
	Generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error)
	Chat(ctx context.Context, config *genai.GenerateContentConfig, history []*genai.Content, message string) (*genai.GenerateContentResponse, error)
	Model() string
}

// Assistant implements ai.Assistant on top of a Gemini generator.
// Every method degrades to a fixed fallback instead of returning an error.
type Assistant struct {
	generator generator
	logger    *zap.Logger
	timeout   time.Duration
	maxLogLen int
}

func NewAssistant(generator generator, log *zap.Logger, timeout time.Duration, maxLogLength int) *Assistant {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Assistant{
		generator: generator,
		logger:    logger.ForProvider(log, providerName, generator.Model()),
		timeout:   timeout,
		maxLogLen: maxLogLength,
	}
}

func (a *Assistant) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.timeout)
}
