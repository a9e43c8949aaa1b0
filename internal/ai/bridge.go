// Package ai turns workspace context into prompts for the remote AI
// gateway and maps its free-form answers back into tasks and chat text.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leonletto/huddle/internal/gateway"
)

// Remote is the subset of the command gateway the bridge uses.
// *gateway.Gateway satisfies it.
type Remote interface {
	GenerateWorkBreakdown(ctx context.Context, cmd gateway.GenerateWorkBreakdown) (string, error)
	SuggestFromSelection(ctx context.Context, cmd gateway.SuggestFromSelection) (string, error)
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithModel selects the AI model passed to the remote. Empty lets the host
// choose.
func WithModel(model string) Option {
	return func(b *Bridge) { b.model = model }
}

// WithMaxTasks sets the default breakdown size used when a PromptInput
// does not name one.
func WithMaxTasks(n int) Option {
	return func(b *Bridge) { b.maxTasks = clamp(n) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// Bridge issues AI commands and validates their results. It never writes
// to the store; callers apply the result.
type Bridge struct {
	remote   Remote
	model    string
	maxTasks int
	logger   *slog.Logger
}

// NewBridge creates a Bridge over r.
func NewBridge(r Remote, opts ...Option) *Bridge {
	b := &Bridge{remote: r, maxTasks: clamp(0), logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Model returns the configured model.
func (b *Bridge) Model() string { return b.model }

// GenerateWorkBreakdown asks the AI for tasks toward in.Goal.
func (b *Bridge) GenerateWorkBreakdown(ctx context.Context, projectID string, in PromptInput) (Breakdown, error) {
	if strings.TrimSpace(in.Goal) == "" {
		return Breakdown{}, fmt.Errorf("%w: ai.generateWorkBreakdown: goal is required", gateway.ErrInvalidCommand)
	}
	if in.MaxTasks <= 0 {
		in.MaxTasks = b.maxTasks
	}

	text, err := b.remote.GenerateWorkBreakdown(ctx, gateway.GenerateWorkBreakdown{
		ProjectID: projectID,
		Prompt:    BuildPrompt(in),
		Model:     b.model,
	})
	if err != nil {
		return Breakdown{}, fmt.Errorf("generate work breakdown: %w", err)
	}

	bd, err := ParseBreakdown(text, in.MaxTasks)
	if err != nil {
		b.logger.Warn("ai: unusable work breakdown", "project_id", projectID, "error", err, "response_bytes", len(text))
		return Breakdown{}, err
	}
	b.logger.Debug("ai: work breakdown", "project_id", projectID, "tasks", len(bd.Tasks), "notes", len(bd.Notes))
	return bd, nil
}

// Reply asks the AI about a selection and returns the chat text to post.
func (b *Bridge) Reply(ctx context.Context, in ReplyInput) (string, error) {
	if strings.TrimSpace(in.Selection) == "" && strings.TrimSpace(in.Question) == "" {
		return "", fmt.Errorf("%w: ai.suggestFromSelection: selection or question is required", gateway.ErrInvalidCommand)
	}
	cmd := gateway.SuggestFromSelection{
		ProjectID: in.ProjectID,
		Selection: strings.TrimSpace(in.Selection),
		Prompt:    BuildReplyPrompt(in),
		Model:     b.model,
	}
	text, err := b.remote.SuggestFromSelection(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("suggest from selection: %w", err)
	}
	text = strings.TrimSpace(stripFence(text))
	if text == "" {
		return "", fmt.Errorf("%w: no reply text", ErrEmptyAiResponse)
	}
	return text, nil
}
