package report

import (
	"fmt"
	"strings"
	"time"
)

// Role is a report audience.
type Role string

const (
	RoleCoach   Role = "coach"
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
)

// Roles lists every audience in canonical order.
var Roles = []Role{RoleCoach, RoleStudent, RoleParent}

// ParseRole maps a case-insensitive role name to a Role.
func ParseRole(value string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown report role %q", value)
}

func (r Role) String() string { return string(r) }

var (
	athleteSchema = []string{
		"Technical Performance",
		"Tactical Analysis",
		"Physical Metrics",
		"Key Areas for Improvement",
		"Next Training Focus",
	}
	parentSchema = []string{
		"Summary",
		"Strengths",
		"Development Areas",
		"Next Steps",
	}
)

// Headings returns the required section headings for r, in order.
func Headings(r Role) []string {
	if r == RoleParent {
		return append([]string(nil), parentSchema...)
	}
	return append([]string(nil), athleteSchema...)
}

// Request identifies one report branch.
type Request struct {
	Player   int
	Role     Role
	Language string
}

// Key returns a stable identifier such as "player1_coach_en". Player numbers
// are one-based.
func (r Request) Key() string {
	return fmt.Sprintf("player%d_%s_%s", r.Player+1, r.Role, r.Language)
}

// Section is one headed block of report text.
type Section struct {
	Heading string
	Body    string
}

// Artifact is a report ready to persist.
type Artifact struct {
	Request       Request
	Title         string
	Sections      []Section
	GeneratedAt   time.Time
	Attempts      int
	Failed        bool
	FailureReason string
}

// Text renders the artifact as plain text with underlined headings.
func (a Artifact) Text() string {
	var b strings.Builder
	if a.Title != "" {
		b.WriteString(a.Title)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("=", len([]rune(a.Title))))
		b.WriteString("\n\n")
	}
	for i, s := range a.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(s.Heading)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", len([]rune(s.Heading))))
		b.WriteString("\n")
		b.WriteString(s.Body)
		b.WriteString("\n")
	}
	return b.String()
}
