package devhost

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	goalLine    = regexp.MustCompile(`(?m)^Goal:\s*(.*)$`)
	limitLine   = regexp.MustCompile(`(?m)^- Propose at most (\d+) tasks\.`)
	taskLine    = regexp.MustCompile(`(?m)^- \[[a-z_]+\] (.+)$`)
	questionRow = regexp.MustCompile(`(?m)^Question:\s*(.*)$`)
	goalSplit   = regexp.MustCompile(`\s*(?:;|,|\band\b)\s*`)
)

// defaultPlanLimit applies when a prompt carries no limit line.
const defaultPlanLimit = 10

// Planner answers the AI commands without a model. Output depends only on
// the prompt text.
type Planner struct{}

type plannedTask struct {
	Title  string `json:"title"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type plan struct {
	Tasks []plannedTask `json:"tasks"`
	Notes []string      `json:"notes"`
}

// Breakdown turns a planning prompt into a fenced JSON work breakdown. A
// prompt without a goal gets a plain-text refusal.
func (Planner) Breakdown(prompt string) string {
	m := goalLine.FindStringSubmatch(prompt)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return "I need a goal before I can plan any work."
	}
	goal := strings.TrimSpace(m[1])

	limit := defaultPlanLimit
	if lm := limitLine.FindStringSubmatch(prompt); lm != nil {
		if n, err := strconv.Atoi(lm[1]); err == nil && n > 0 {
			limit = n
		}
	}

	existing := make(map[string]bool)
	for _, tm := range taskLine.FindAllStringSubmatch(prompt, -1) {
		existing[strings.ToLower(strings.TrimSpace(tm[1]))] = true
	}

	var out plan
	for _, title := range candidateTitles(goal) {
		if len(out.Tasks) == limit {
			break
		}
		if existing[strings.ToLower(title)] {
			continue
		}
		out.Tasks = append(out.Tasks, plannedTask{
			Title:  title,
			Status: "backlog",
			Reason: fmt.Sprintf("Part of %q.", goal),
		})
	}
	out.Notes = []string{"Generated offline by the dev host planner."}

	body, _ := json.MarshalIndent(out, "", "  ")
	return "Here is a proposed breakdown.\n```json\n" + string(body) + "\n```\n"
}

func candidateTitles(goal string) []string {
	var parts []string
	for _, p := range goalSplit.Split(goal, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) <= 1 {
		g := lowerFirst(goal)
		return []string{
			"Outline " + g,
			"Build " + g,
			"Test " + g,
			"Document " + g,
		}
	}
	titles := make([]string, 0, len(parts)+1)
	for _, p := range parts {
		titles = append(titles, "Implement "+lowerFirst(p))
	}
	return append(titles, "Review "+lowerFirst(goal))
}

// Reply answers a selection question in one line.
func (Planner) Reply(selection, prompt string) string {
	question := strings.TrimSpace(prompt)
	if m := questionRow.FindStringSubmatch(prompt); m != nil {
		question = strings.TrimSpace(m[1])
	}
	selection = strings.Join(strings.Fields(selection), " ")
	if len(selection) > 60 {
		selection = selection[:57] + "..."
	}

	switch {
	case selection != "" && question != "":
		return fmt.Sprintf("On %q: %s Consider turning it into a task on the board.", selection, sentence(question))
	case selection != "":
		return fmt.Sprintf("%q looks like a task. Consider adding it to the backlog.", selection)
	default:
		return sentence(question) + " Consider turning it into a task on the board."
	}
}

func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if last := s[len(s)-1]; last != '.' && last != '?' && last != '!' {
		s += "."
	}
	return s
}

func lowerFirst(s string) string {
	r := []rune(s)
	if len(r) > 1 && unicode.IsUpper(r[0]) && !unicode.IsUpper(r[1]) {
		r[0] = unicode.ToLower(r[0])
	}
	return string(r)
}
