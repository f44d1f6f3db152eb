package gemini

import (
	"context"
	"strings"

	_ "embed"

	"github.com/spigell/rozgar/internal/ai"
	"github.com/spigell/rozgar/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

//go:embed prompts/chat_system.md
var chatSystemInstruction string

// Reply continues the conversation with Maps grounding enabled.
func (a *Assistant) Reply(ctx context.Context, history []ai.ChatTurn, message string, location *ai.LatLng) ai.ChatReply {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	a.logger.Debug("gemini chat request",
		zap.Int("history_turns", len(history)),
		zap.Bool("with_location", location != nil),
		zap.String("message_preview", utils.TruncateForLog(message, a.maxLogLen)),
	)

	resp, err := a.generator.Chat(ctx, chatConfig(location), chatHistory(history), message)
	if err != nil {
		a.logger.Warn("chat failed", zap.Error(err))
		return ai.ChatReply{Text: ai.ChatFailureText}
	}

	text := responseText(resp)
	if text == "" {
		a.logger.Warn("chat returned no text")
		return ai.ChatReply{Text: ai.ChatFailureText}
	}

	a.logger.Debug("gemini chat response",
		zap.String("response_preview", utils.TruncateForLog(text, a.maxLogLen)),
	)

	return ai.ChatReply{Text: text, GroundingChunks: groundingChunks(resp)}
}

func chatConfig(location *ai.LatLng) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: strings.TrimSpace(chatSystemInstruction)}},
		},
		Tools: []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}},
	}

	if location != nil && location.Latitude != 0 && location.Longitude != 0 {
		lat, lng := location.Latitude, location.Longitude
		cfg.ToolConfig = &genai.ToolConfig{
			RetrievalConfig: &genai.RetrievalConfig{
				LatLng: &genai.LatLng{Latitude: &lat, Longitude: &lng},
			},
		}
	}
	return cfg
}

func chatHistory(turns []ai.ChatTurn) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		text := turn.Text()
		if text == "" {
			continue
		}
		role := string(genai.RoleUser)
		if strings.EqualFold(turn.Role, string(genai.RoleModel)) {
			role = string(genai.RoleModel)
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: text}},
		})
	}
	return history
}

func groundingChunks(resp *genai.GenerateContentResponse) []ai.GroundingChunk {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return nil
	}

	var chunks []ai.GroundingChunk
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil {
			continue
		}
		var out ai.GroundingChunk
		if chunk.Maps != nil {
			out.Maps = &ai.GroundingSource{URI: chunk.Maps.URI, Title: chunk.Maps.Title}
		}
		if chunk.Web != nil {
			out.Web = &ai.GroundingSource{URI: chunk.Web.URI, Title: chunk.Web.Title}
		}
		if out.Maps == nil && out.Web == nil {
			continue
		}
		chunks = append(chunks, out)
	}
	return chunks
}
