package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/leonletto/huddle/internal/config"
	"github.com/leonletto/huddle/internal/types"
)

var (
	// ErrMalformedAiPayload is returned when no JSON object can be located
	// in the AI response, or the located region does not parse.
	ErrMalformedAiPayload = errors.New("malformed AI payload")

	// ErrEmptyAiResponse is returned when the response carries no usable
	// entities.
	ErrEmptyAiResponse = errors.New("empty AI response")
)

// Candidate is one task the AI proposed.
type Candidate struct {
	Title             string           `json:"title"`
	Status            types.TaskStatus `json:"status"`
	Reason            string           `json:"reason,omitempty"`
	SuggestedAssignee string           `json:"suggestedAssignee,omitempty"`
}

// Breakdown is a validated work breakdown.
type Breakdown struct {
	Tasks []Candidate `json:"tasks"`
	Notes []string    `json:"notes"`
}

func clamp(n int) int { return config.ClampMaxTasks(n) }

// ParseBreakdown extracts a Breakdown from free-form AI text. An optional
// surrounding code fence is stripped, then the outermost {...} region is
// decoded. Candidates without a title are dropped; statuses other than
// in_progress and done become backlog. The result holds at most
// maxTasks candidates, clamped to the supported range.
func ParseBreakdown(text string, maxTasks int) (Breakdown, error) {
	region, ok := jsonRegion(stripFence(text))
	if !ok {
		return Breakdown{}, fmt.Errorf("%w: no JSON object in response", ErrMalformedAiPayload)
	}

	var raw struct {
		Tasks json.RawMessage `json:"tasks"`
		Notes json.RawMessage `json:"notes"`
	}
	if err := json.Unmarshal([]byte(region), &raw); err != nil {
		return Breakdown{}, fmt.Errorf("%w: %v", ErrMalformedAiPayload, err)
	}

	out := Breakdown{Tasks: []Candidate{}, Notes: []string{}}
	limit := clamp(maxTasks)
	for _, item := range rawArray(raw.Tasks) {
		c, ok := candidate(item)
		if !ok {
			continue
		}
		out.Tasks = append(out.Tasks, c)
		if len(out.Tasks) == limit {
			break
		}
	}
	if len(out.Tasks) == 0 {
		return Breakdown{}, fmt.Errorf("%w: no valid tasks", ErrEmptyAiResponse)
	}

	for _, item := range rawArray(raw.Notes) {
		var note string
		if json.Unmarshal(item, &note) == nil {
			if note = strings.TrimSpace(note); note != "" {
				out.Notes = append(out.Notes, note)
			}
		}
	}
	return out, nil
}

func stripFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// Drop the opening fence line, which may name a language.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func jsonRegion(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

func rawArray(data json.RawMessage) []json.RawMessage {
	var items []json.RawMessage
	if json.Unmarshal(data, &items) != nil {
		return nil
	}
	return items
}

func candidate(data json.RawMessage) (Candidate, bool) {
	var fields map[string]json.RawMessage
	if json.Unmarshal(data, &fields) != nil {
		return Candidate{}, false
	}
	str := func(key string) string {
		var s string
		if v, ok := fields[key]; ok && json.Unmarshal(v, &s) == nil {
			return strings.TrimSpace(s)
		}
		return ""
	}

	c := Candidate{
		Title:             oneLine(str("title")),
		Reason:            str("reason"),
		SuggestedAssignee: str("suggestedAssignee"),
	}
	if c.Title == "" {
		return Candidate{}, false
	}
	switch types.TaskStatus(str("status")) {
	case types.TaskInProgress:
		c.Status = types.TaskInProgress
	case types.TaskDone:
		c.Status = types.TaskDone
	default:
		c.Status = types.TaskBacklog
	}
	return c, true
}
