package ai

import (
	"context"
	"testing"
)

func TestUnavailableFallbacks(t *testing.T) {
	var a Assistant = Unavailable{}
	ctx := context.Background()

	got := a.Extract(ctx, "mujhe driver ki naukri chahiye", "hi-IN")
	if got != (ParsedIntent{Intent: IntentFindJob, Role: "mujhe driver ki naukri chahiye"}) {
		t.Fatalf("unexpected intent: %+v", got)
	}

	if d := a.Describe(ctx, "Mason", "600"); d != "Looking for Mason paying 600. Good pay." {
		t.Fatalf("unexpected description: %q", d)
	}

	if r := a.Reply(ctx, nil, "hello", nil); r.Text != ChatUnavailableText || r.GroundingChunks != nil {
		t.Fatalf("unexpected reply: %+v", r)
	}
}

func TestFormatWage(t *testing.T) {
	tests := map[float64]string{
		500:     "500",
		15000:   "15000",
		450.5:   "450.5",
		1200.25: "1200.25",
	}
	for in, want := range tests {
		if got := FormatWage(in); got != want {
			t.Fatalf("FormatWage(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestChatTurnText(t *testing.T) {
	turn := ChatTurn{Role: "user", Parts: []ChatPart{{Text: " namaste "}, {Text: ""}, {Text: "kaam chahiye"}}}
	if got := turn.Text(); got != "namaste\nkaam chahiye" {
		t.Fatalf("unexpected text %q", got)
	}
}
