package report

import (
	"fmt"
	"strings"

	"courtside/internal/language"
	"courtside/internal/metrics"
	"courtside/internal/textutil"
)

var roleBriefs = map[Role]string{
	RoleCoach: "Audience: the player's coach. Give a detailed technical analysis. " +
		"Reference joint angles, distances and velocity peaks with their timestamps, " +
		"and propose concrete drills.",
	RoleStudent: "Audience: the player. Give direct, encouraging, player-focused feedback " +
		"in second person. Explain what the numbers mean for their game and what to practise next.",
	RoleParent: "Audience: the player's parent, who is not a badminton expert. Give a general " +
		"progress summary in plain language. Avoid jargon and raw numbers unless they help.",
}

// PromptInput carries everything needed to build one generation prompt.
type PromptInput struct {
	Request    Request
	Metrics    metrics.PlayerMetrics
	Transcript string
	// ExcerptChars caps the transcript excerpt; zero omits the transcript.
	ExcerptChars int
}

// BuildPrompt renders the prompt for one report branch.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder
	req := in.Request
	lang := language.EnglishName(req.Language)

	fmt.Fprintf(&b, "Write a badminton performance report for Player %d.\n", req.Player+1)
	b.WriteString(roleBriefs[req.Role])
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Write the section bodies in %s.", lang)
	if req.Language != language.Default {
		b.WriteString(" Keep the section headings in English exactly as listed.")
	}
	b.WriteString("\nUse exactly these sections, in this order, each introduced by a line of the form \"## <heading>\":\n")
	for i, h := range Headings(req.Role) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, h)
	}

	b.WriteString("\n# Analysis data\n")
	writeMetrics(&b, in.Metrics)

	transcript := strings.TrimSpace(in.Transcript)
	if in.ExcerptChars > 0 && transcript != "" {
		b.WriteString("\n## On-court audio transcript (excerpt)\n")
		b.WriteString(textutil.Truncate(transcript, in.ExcerptChars))
		b.WriteString("\n")
	} else {
		b.WriteString("\nNo audio transcript is available; do not speculate about communication.\n")
	}
	return b.String()
}

func writeMetrics(b *strings.Builder, m metrics.PlayerMetrics) {
	detected := m.Frames - m.Misses
	fmt.Fprintf(b, "Frames analysed: %d (player detected in %d)\n", m.Frames, detected)

	b.WriteString("\n## Joint angles (degrees)\n")
	for _, j := range metrics.Joints {
		writeStats(b, humanize(j.Name), metrics.Summarize(m.JointAngles[j.Name]), "%.1f")
	}
	b.WriteString("\n## Distances (normalized frame units)\n")
	for _, p := range metrics.Pairs {
		writeStats(b, humanize(p.Name), metrics.Summarize(m.Distances[p.Name]), "%.3f")
	}
	b.WriteString("\n## Velocities (normalized frame units per second)\n")
	for _, l := range metrics.VelocityLandmarks {
		writeStats(b, l.Label(), metrics.SummarizeVelocity(m.Velocities[l.String()]), "%.3f")
	}
	b.WriteString("\n## Notable moments\n")
	if len(m.Events) == 0 {
		b.WriteString("- none recorded\n")
	}
	for _, e := range m.Events {
		fmt.Fprintf(b, "- %s: %.3f at %s\n", e.Label, e.Value, formatTimestamp(e.Timestamp))
	}
}

func writeStats(b *strings.Builder, name string, st metrics.Stats, format string) {
	if st.Count == 0 {
		fmt.Fprintf(b, "- %s: no reliable samples\n", name)
		return
	}
	f := func(v float64) string { return fmt.Sprintf(format, v) }
	fmt.Fprintf(b, "- %s: min %s, max %s, mean %s over %d samples\n", name, f(st.Min), f(st.Max), f(st.Mean), st.Count)
}

func humanize(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d.%d", total/60, total%60, int((seconds-float64(total))*10))
}
