package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Field keys shared across packages.
const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
	FieldJobID    = "job_id"
	FieldUserID   = "user_id"
)

// Compact returns string fields for the given key/value pairs, dropping blank ones.
// Pairs are read as key, value; an odd trailing key is ignored.
func Compact(pairs ...string) []zap.Field {
	fields := make([]zap.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key, value := strings.TrimSpace(pairs[i]), strings.TrimSpace(pairs[i+1])
		if key == "" || value == "" {
			continue
		}
		fields = append(fields, zap.String(key, value))
	}
	return fields
}

// ForProvider tags a logger with the AI backend it talks to.
// A nil logger becomes a no-op one.
func ForProvider(l *zap.Logger, provider, model string) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	fields := Compact(FieldProvider, provider, FieldModel, model)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

func Job(id string) zap.Field {
	return zap.String(FieldJobID, id)
}

func User(id string) zap.Field {
	return zap.String(FieldUserID, id)
}
