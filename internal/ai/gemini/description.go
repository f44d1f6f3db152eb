package gemini

import (
	"context"
	"strings"

	_ "embed"

	"github.com/spigell/rozgar/internal/ai"
	"github.com/spigell/rozgar/internal/utils"
	"go.uber.org/zap"
)

//go:embed prompts/description.md
var descriptionTemplate string

// Describe writes a one-sentence job description. Any failure yields the templated fallback.
func (a *Assistant) Describe(ctx context.Context, role, wage string) string {
	role = strings.TrimSpace(role)
	wage = strings.TrimSpace(wage)
	fallback := ai.FallbackDescription(role, wage)

	prompt := strings.ReplaceAll(descriptionTemplate, "{{ROLE}}", role)
	prompt = strings.ReplaceAll(prompt, "{{WAGE}}", wage)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	text, err := a.generator.Generate(ctx, prompt, nil)
	if err != nil {
		a.logger.Warn("job description generation failed, using fallback",
			zap.String("role", role),
			zap.Error(err),
		)
		return fallback
	}

	a.logger.Debug("gemini description response",
		zap.String("role", role),
		zap.String("response_preview", utils.TruncateForLog(text, a.maxLogLen)),
	)
	return text
}
