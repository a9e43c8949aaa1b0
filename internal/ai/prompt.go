package ai

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leonletto/huddle/internal/types"
)

// Prompt context bounds.
const (
	MaxPromptTasks        = 20
	MaxPromptChat         = 10
	MaxPromptCommits      = 5
	MaxPromptPullRequests = 5
)

// PromptInput is everything a work-breakdown prompt is built from.
type PromptInput struct {
	ProjectName string
	Goal        string
	Tasks       []types.Task
	Chat        []types.Message
	Constraints []string
	Repo        *types.RepoSummary
	MaxTasks    int
}

// BuildPrompt renders in as the planning prompt. Existing tasks and chat
// are bounded to the most recent entries by creation time; repository
// activity to the first entries the host reported.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString("You are planning work for a small team sharing a task board.\n")
	if in.ProjectName != "" {
		fmt.Fprintf(&b, "Project: %s\n", in.ProjectName)
	}
	fmt.Fprintf(&b, "Goal: %s\n", strings.TrimSpace(in.Goal))

	if tasks := recentTasks(in.Tasks, MaxPromptTasks); len(tasks) > 0 {
		b.WriteString("\nExisting tasks (do not duplicate these):\n")
		for _, t := range tasks {
			fmt.Fprintf(&b, "- [%s] %s\n", t.Status, oneLine(t.Title))
		}
	}

	if chat := recentMessages(in.Chat, MaxPromptChat); len(chat) > 0 {
		b.WriteString("\nRecent chat:\n")
		for _, m := range chat {
			fmt.Fprintf(&b, "- %s: %s\n", speaker(m), oneLine(m.Text))
		}
	}

	if in.Repo != nil {
		if commits := firstN(in.Repo.Commits, MaxPromptCommits); len(commits) > 0 {
			b.WriteString("\nRecent commits:\n")
			for _, c := range commits {
				fmt.Fprintf(&b, "- %s %s\n", shortSHA(c.SHA), oneLine(c.Message))
			}
		}
		if prs := firstN(in.Repo.PullRequests, MaxPromptPullRequests); len(prs) > 0 {
			b.WriteString("\nPull requests:\n")
			for _, pr := range prs {
				fmt.Fprintf(&b, "- #%d [%s] %s\n", pr.Number, pr.State, oneLine(pr.Title))
			}
		}
	}

	b.WriteString("\nConstraints:\n")
	fmt.Fprintf(&b, "- Propose at most %d tasks.\n", clamp(in.MaxTasks))
	b.WriteString("- Each task needs a short imperative title.\n")
	b.WriteString("- status is one of backlog, in_progress, done; default backlog.\n")
	for _, c := range in.Constraints {
		if c = strings.TrimSpace(c); c != "" {
			fmt.Fprintf(&b, "- %s\n", oneLine(c))
		}
	}

	b.WriteString("\nRespond with only a JSON object of the form:\n")
	b.WriteString(`{"tasks":[{"title":"...","status":"backlog","reason":"...","suggestedAssignee":"..."}],"notes":["..."]}`)
	b.WriteString("\n")
	return b.String()
}

// ReplyInput is the context for an assistant chat reply.
type ReplyInput struct {
	ProjectID string
	Selection string
	Question  string
	Chat      []types.Message
}

// BuildReplyPrompt renders the question about a selection, preceded by the
// recent chat.
func BuildReplyPrompt(in ReplyInput) string {
	var b strings.Builder
	b.WriteString("You are the assistant in a team chat. Answer briefly.\n")
	if chat := recentMessages(in.Chat, MaxPromptChat); len(chat) > 0 {
		b.WriteString("\nRecent chat:\n")
		for _, m := range chat {
			fmt.Fprintf(&b, "- %s: %s\n", speaker(m), oneLine(m.Text))
		}
	}
	if q := strings.TrimSpace(in.Question); q != "" {
		fmt.Fprintf(&b, "\nQuestion: %s\n", q)
	}
	return b.String()
}

func recentTasks(in []types.Task, n int) []types.Task {
	sorted := slices.Clone(in)
	slices.SortStableFunc(sorted, func(a, b types.Task) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return lastN(sorted, n)
}

func recentMessages(in []types.Message, n int) []types.Message {
	sorted := slices.Clone(in)
	slices.SortStableFunc(sorted, func(a, b types.Message) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return lastN(sorted, n)
}

func lastN[T any](in []T, n int) []T {
	if len(in) > n {
		return in[len(in)-n:]
	}
	return in
}

func firstN[T any](in []T, n int) []T {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func speaker(m types.Message) string {
	switch {
	case m.SenderLabel != "":
		return m.SenderLabel
	case m.Sender == types.SenderAssistant:
		return "assistant"
	case m.AuthorID != "":
		return m.AuthorID
	default:
		return "someone"
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
