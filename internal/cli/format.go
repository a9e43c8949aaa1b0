// Package cli holds the terminal presentation helpers and local CLI state of
// the huddle command.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/leonletto/huddle/internal/identity"
	"github.com/leonletto/huddle/internal/prefs"
	"github.com/leonletto/huddle/internal/types"
)

var boardColumns = []struct {
	status types.TaskStatus
	title  string
}{
	{types.TaskBacklog, "Backlog"},
	{types.TaskInProgress, "In progress"},
	{types.TaskDone, "Done"},
}

// MemberNames maps member user ids to a display name, falling back to email.
func MemberNames(members []types.Member) map[string]string {
	names := make(map[string]string, len(members))
	for _, m := range members {
		name := m.DisplayName
		if name == "" {
			name = m.Email
		}
		names[m.UserID] = name
	}
	return names
}

// FormatBoard renders tasks grouped by column. Rows with a status outside
// the known columns are listed under "Other". names resolves assignee ids
// and may be nil.
func FormatBoard(tasks []types.Task, names map[string]string) string {
	if len(tasks) == 0 {
		return "No tasks on the board.\n"
	}

	byStatus := make(map[types.TaskStatus][]types.Task)
	for _, t := range tasks {
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}

	var output strings.Builder
	for _, col := range boardColumns {
		rows := byStatus[col.status]
		delete(byStatus, col.status)
		output.WriteString(fmt.Sprintf("%s (%d)\n", col.title, len(rows)))
		for _, t := range rows {
			output.WriteString(formatTaskRow(t, names))
		}
	}

	var other []types.Task
	for _, rows := range byStatus {
		other = append(other, rows...)
	}
	if len(other) > 0 {
		output.WriteString(fmt.Sprintf("Other (%d)\n", len(other)))
		for _, t := range other {
			output.WriteString(formatTaskRow(t, names))
		}
	}
	return output.String()
}

func formatTaskRow(t types.Task, names map[string]string) string {
	row := fmt.Sprintf("  %-30s %s", truncateID(t.ID, 30), t.Title)
	if t.AssigneeID != nil {
		who := *t.AssigneeID
		if n, ok := names[who]; ok {
			who = n
		}
		row += "  @" + who
	}
	if identity.IsTempID(t.ID) {
		row += "  (pending)"
	}
	if !t.Status.Valid() {
		row += fmt.Sprintf("  [%s]", t.Status)
	}
	return row + "\n"
}

// FormatTask renders a single card on one line.
func FormatTask(t types.Task) string {
	line := fmt.Sprintf("%s  %s  [%s]", t.ID, t.Title, t.Status)
	if t.AssigneeID != nil {
		line += "  @" + *t.AssigneeID
	}
	return line + "\n"
}

// FormatMessages renders the chat feed in a box sized to the terminal.
func FormatMessages(msgs []types.Message, now time.Time) string {
	if len(msgs) == 0 {
		return "No messages yet.\n"
	}

	boxWidth := GetTerminalWidth() - 2
	if boxWidth < 40 {
		boxWidth = 40
	}
	if boxWidth > 120 {
		boxWidth = 120
	}
	contentWidth := boxWidth - 2

	var output strings.Builder
	output.WriteString("┌" + strings.Repeat("─", boxWidth) + "┐\n")
	for i, m := range msgs {
		header := fmt.Sprintf("│ %s  %s  %s", senderName(m), formatRelativeTime(m.CreatedAt, now), m.ID)
		switch m.Status {
		case types.MessageSending:
			header += "  (sending)"
		case types.MessageFailed:
			header += "  (failed)"
		}
		output.WriteString(padLine(header, boxWidth) + "│\n")

		for _, line := range strings.Split(wordWrap(m.Text, contentWidth), "\n") {
			output.WriteString("│ " + padLine(line, contentWidth) + "│\n")
		}

		if i < len(msgs)-1 {
			output.WriteString("├" + strings.Repeat("─", boxWidth) + "┤\n")
		} else {
			output.WriteString("└" + strings.Repeat("─", boxWidth) + "┘\n")
		}
	}
	return output.String()
}

// FormatMessageLine renders one message as a single line for streaming.
func FormatMessageLine(m types.Message) string {
	return fmt.Sprintf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), senderName(m), m.Text)
}

func senderName(m types.Message) string {
	switch {
	case m.SenderLabel != "":
		return m.SenderLabel
	case m.Sender == types.SenderAssistant:
		return "assistant"
	default:
		return m.AuthorID
	}
}

// FormatMembers lists project members with their role.
func FormatMembers(members []types.Member) string {
	if len(members) == 0 {
		return "No members.\n"
	}
	var output strings.Builder
	for _, m := range members {
		name := m.DisplayName
		if name == "" {
			name = "-"
		}
		output.WriteString(fmt.Sprintf("  %-32s %-20s %-28s %s\n", m.UserID, name, m.Email, m.Role))
	}
	return output.String()
}

// FormatWhoami describes the signed-in user and the selected project.
func FormatWhoami(u *types.User, p *types.Project) string {
	if u == nil {
		return "Not signed in.\n"
	}
	var output strings.Builder
	output.WriteString(fmt.Sprintf("User:    %s <%s>\n", u.DisplayName, u.Email))
	output.WriteString(fmt.Sprintf("ID:      %s\n", u.UID))
	if p != nil {
		name := p.Name
		if name == "" {
			name = "(unnamed)"
		}
		output.WriteString(fmt.Sprintf("Project: %s (%s)\n", name, p.ID))
	} else {
		output.WriteString("Project: none selected\n")
	}
	return output.String()
}

// FormatPrefs lists every preference key with its current value.
func FormatPrefs(p prefs.Preferences) string {
	var output strings.Builder
	for _, key := range prefs.Keys() {
		v, _ := p.Get(key)
		if v == "" {
			v = "(default)"
		}
		output.WriteString(fmt.Sprintf("  %-24s %s\n", key, v))
	}
	return output.String()
}

// FormatPlan summarizes a plan run.
func FormatPlan(created []types.Task, failed []string, notes []string) string {
	var output strings.Builder
	if len(created) == 0 && len(failed) == 0 {
		output.WriteString("The planner proposed no tasks.\n")
	}
	if len(created) > 0 {
		output.WriteString(fmt.Sprintf("✓ Created %d task(s)\n", len(created)))
		for _, t := range created {
			output.WriteString(fmt.Sprintf("  %s  %s  [%s]\n", t.ID, t.Title, t.Status))
		}
	}
	if len(failed) > 0 {
		output.WriteString(fmt.Sprintf("✗ %d task(s) could not be created\n", len(failed)))
		for _, title := range failed {
			output.WriteString("  " + title + "\n")
		}
	}
	for _, n := range notes {
		output.WriteString("Note: " + n + "\n")
	}
	return output.String()
}

func truncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen-3] + "..."
}

// formatRelativeTime formats t relative to now.
func formatRelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Local().Format("2006-01-02")
	}
}

// wordWrap wraps text to width, keeping existing line breaks.
func wordWrap(text string, width int) string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, word := range words[1:] {
			if len(line)+1+len(word) <= width {
				line += " " + word
			} else {
				out = append(out, line)
				line = word
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// padLine pads or cuts line to length runes.
func padLine(line string, length int) string {
	r := []rune(line)
	if len(r) >= length {
		return string(r[:length])
	}
	return line + strings.Repeat(" ", length-len(r))
}
