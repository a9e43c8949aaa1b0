package cli

import (
	"math/rand"
	"time"
)

var (
	// Random source for hint rotation (not security-sensitive, just UI hint selection).
	hintRandom = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // G404: non-security random for hint rotation
)

// Hint returns a contextual hint for the given command.
// Returns empty string if hints should be suppressed (quiet/JSON mode).
func Hint(command string, quiet, jsonMode bool) string {
	if quiet || jsonMode {
		return ""
	}

	hints, ok := commandHints[command]
	if !ok || len(hints) == 0 {
		return ""
	}

	idx := hintRandom.Intn(len(hints))
	return "  " + hints[idx] + "\n"
}

var commandHints = map[string][]string{
	"login": {
		"Tip: Create a project with 'huddle project create \"name\"'",
		"Tip: Switch projects with 'huddle project use prj_...'",
	},
	"project.create": {
		"Tip: Invite people with 'huddle members invite someone@example.com'",
		"Tip: Add a card with 'huddle tasks add \"title\"'",
	},
	"tasks.empty": {
		"Tip: Add a card with 'huddle tasks add \"title\"'",
		"Tip: Let the planner propose cards with 'huddle plan \"goal\"'",
	},
	"tasks": {
		"Tip: Advance a card with 'huddle tasks advance tsk_...'",
		"Tip: Assign a card with 'huddle tasks assign tsk_... usr_...'",
	},
	"messages.empty": {
		"Tip: Say hello with 'huddle send \"hello team\"'",
		"Tip: Ask the assistant with 'huddle ask \"question\"'",
	},
	"send": {
		"Tip: Follow the chat live with 'huddle watch'",
	},
	"plan": {
		"Tip: Review the new cards with 'huddle tasks list'",
	},
}
