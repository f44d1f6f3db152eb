package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/rozgar/internal/ai"
	"github.com/spigell/rozgar/internal/jobs"
	"github.com/spigell/rozgar/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

//go:embed prompts/intent.md
var intentTemplate string

// Extract asks the model for the intent behind the transcript.
func (a *Assistant) Extract(ctx context.Context, transcript, languageHint string) ai.ParsedIntent {
	if strings.TrimSpace(transcript) == "" {
		return ai.ParsedIntent{Intent: ai.IntentUnknown}
	}

	prompt := buildIntentPrompt(transcript, languageHint)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	a.logger.Debug("gemini intent request",
		zap.String("language", languageHint),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.generator.Generate(ctx, prompt, intentConfig())
	if errors.Is(err, ErrEmptyResponse) {
		a.logger.Info("gemini returned no text for intent")
		return ai.ParsedIntent{Intent: ai.IntentUnknown}
	}
	if err != nil {
		a.logger.Warn("intent extraction failed, using fallback", zap.Error(err))
		return ai.FallbackIntent(transcript)
	}

	a.logger.Debug("gemini intent response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	intent, err := parseIntent(raw)
	if err != nil {
		a.logger.Warn("intent response rejected, using fallback", zap.Error(err))
		return ai.FallbackIntent(transcript)
	}

	a.logger.Info("intent extracted",
		zap.String("intent", intent.Intent),
		zap.String("role", intent.Role),
		zap.String("location", intent.Location),
	)
	return intent
}

func buildIntentPrompt(transcript, languageHint string) string {
	lang := strings.TrimSpace(languageHint)
	if lang == "" {
		lang = "unknown"
	}
	template := intentTemplate
	if strings.TrimSpace(template) == "" {
		template = "User Input ({{LANG}}): \"{{TRANSCRIPT}}\"\nReturn a JSON object only."
	}
	prompt := strings.ReplaceAll(template, "{{LANG}}", lang)
	prompt = strings.ReplaceAll(prompt, "{{TRANSCRIPT}}", strings.TrimSpace(transcript))
	return prompt
}

func intentConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"intent": {
					Type: genai.TypeString,
					Enum: []string{ai.IntentFindJob, ai.IntentPostJob, ai.IntentUnknown},
				},
				"role": {
					Type:        genai.TypeString,
					Description: "Normalized job role (e.g., driver, maid, mason)",
				},
				"location": {
					Type:        genai.TypeString,
					Description: "City or locality",
				},
				"minWage": {
					Type:        genai.TypeNumber,
					Description: "Expected wage amount",
				},
				"wageType": {
					Type: genai.TypeString,
					Enum: []string{jobs.WageDaily, jobs.WageMonthly},
				},
			},
			Required: []string{"intent"},
		},
	}
}

func parseIntent(raw string) (ai.ParsedIntent, error) {
	var intent ai.ParsedIntent

	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return intent, fmt.Errorf("parse gemini response: %w", err)
	}

	// Wages sometimes arrive as "₹500" or "15,000".
	if v, ok := data["minWage"]; ok {
		wage := coerceFloat(v)
		if math.IsNaN(wage) {
			delete(data, "minWage")
		} else {
			data["minWage"] = wage
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &intent,
	})
	if err != nil {
		return intent, fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return intent, fmt.Errorf("decode intent: %w", err)
	}

	intent.Intent = strings.ToLower(strings.TrimSpace(intent.Intent))
	if !ai.ValidIntent(intent.Intent) {
		return intent, fmt.Errorf("unknown intent %q", intent.Intent)
	}

	intent.Role = strings.TrimSpace(intent.Role)
	intent.Location = strings.TrimSpace(intent.Location)

	intent.WageType = strings.ToLower(strings.TrimSpace(intent.WageType))
	if !jobs.ValidWageType(intent.WageType) {
		intent.WageType = ""
	}
	if intent.MinWage <= 0 || math.IsNaN(intent.MinWage) || math.IsInf(intent.MinWage, 0) {
		intent.MinWage = 0
	}

	return intent, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				return r
			}
			return -1
		}, val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
