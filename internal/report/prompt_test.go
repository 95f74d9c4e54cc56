package report

import (
	"strings"
	"testing"

	"courtside/internal/metrics"
)

func sampleMetrics() metrics.PlayerMetrics {
	agg := metrics.NewAggregator(metrics.Options{Players: 1})
	m := agg.Finalize()[0]
	m.Frames = 10
	m.Misses = 2
	m.JointAngles["right_elbow"] = []metrics.Sample{{Timestamp: 1, Value: 90}, {Timestamp: 2, Value: 150}}
	m.Events = []metrics.Event{{Timestamp: 65.5, Label: "peak right wrist velocity", Value: 2.5}}
	return m
}

func TestBuildPromptIncludesDataAndSchema(t *testing.T) {
	prompt := BuildPrompt(PromptInput{
		Request:      Request{Player: 1, Role: RoleCoach, Language: "hi"},
		Metrics:      sampleMetrics(),
		Transcript:   "great rally keep your elbow high",
		ExcerptChars: 100,
	})
	for _, want := range []string{
		"Player 2",
		"Hindi",
		"Keep the section headings in English",
		"5. Next Training Focus",
		"right elbow: min 90.0, max 150.0, mean 120.0 over 2 samples",
		"left knee: no reliable samples",
		"peak right wrist velocity: 2.500 at 01:05.5",
		"Frames analysed: 10 (player detected in 8)",
		"keep your elbow high",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPromptWithoutTranscript(t *testing.T) {
	prompt := BuildPrompt(PromptInput{
		Request: Request{Role: RoleParent, Language: "en"},
		Metrics: sampleMetrics(),
	})
	if !strings.Contains(prompt, "No audio transcript is available") {
		t.Fatalf("expected no-transcript notice:\n%s", prompt)
	}
	if strings.Contains(prompt, "Keep the section headings in English") {
		t.Fatal("English prompts need no heading instruction")
	}
	if !strings.Contains(prompt, "4. Next Steps") {
		t.Fatal("expected parent schema")
	}
}

func TestBuildPromptTruncatesTranscript(t *testing.T) {
	long := strings.Repeat("word ", 200)
	prompt := BuildPrompt(PromptInput{
		Request:      Request{Role: RoleStudent, Language: "en"},
		Metrics:      sampleMetrics(),
		Transcript:   long,
		ExcerptChars: 40,
	})
	idx := strings.Index(prompt, "(excerpt)\n")
	if idx < 0 {
		t.Fatal("expected transcript excerpt")
	}
	excerpt := strings.TrimSpace(prompt[idx+len("(excerpt)\n"):])
	if len(excerpt) > 40 {
		t.Fatalf("excerpt not truncated: %d chars", len(excerpt))
	}
}
