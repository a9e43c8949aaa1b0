package optimistic

import (
	"context"
	"fmt"

	"github.com/leonletto/huddle/internal/gateway"
	"github.com/leonletto/huddle/internal/identity"
	"github.com/leonletto/huddle/internal/store"
	"github.com/leonletto/huddle/internal/types"
)

// SendMessage posts text as the signed-in user. On failure the local entry
// stays in the feed marked failed, and its id is returned with the error so
// the caller can offer RetryMessage or DiscardMessage.
func (c *Coordinator) SendMessage(ctx context.Context, text string) (types.Message, error) {
	return c.SendAs(ctx, text, types.SenderUser, "")
}

// SendAs posts text with an explicit sender kind and label. Assistant
// replies go through here so they are optimistic like any other send.
func (c *Coordinator) SendAs(ctx context.Context, text string, sender types.SenderKind, label string) (types.Message, error) {
	user, project, err := c.scope()
	if err != nil {
		return types.Message{}, err
	}
	cmd := gateway.SendMessage{
		ProjectID:   project.ID,
		Text:        trimmed(text),
		AuthorID:    user.UID,
		Sender:      sender,
		SenderLabel: label,
	}
	if err := cmd.Validate(); err != nil {
		return types.Message{}, err
	}
	return c.send(ctx, cmd)
}

func (c *Coordinator) send(ctx context.Context, cmd gateway.SendMessage) (types.Message, error) {
	local := types.Message{
		ID:          c.newTempID(),
		ProjectID:   cmd.ProjectID,
		Text:        cmd.Text,
		AuthorID:    cmd.AuthorID,
		Sender:      cmd.Sender,
		SenderLabel: cmd.SenderLabel,
		CreatedAt:   c.now(),
		Status:      types.MessageSending,
	}
	c.store.AddMessage(local)

	confirmed, err := c.remote.SendMessage(ctx, cmd)
	if err != nil {
		failed := types.MessageFailed
		c.store.UpdateMessage(local.ID, store.MessagePatch{Status: &failed})
		local.Status = types.MessageFailed
		c.logger.Warn("optimistic: message send failed", "temp_id", local.ID, "error", err)
		return local, fmt.Errorf("send message: %w", err)
	}

	c.store.RemoveMessage(local.ID)
	if confirmed == nil || confirmed.ID == "" || identity.IsTempID(confirmed.ID) {
		// The next poll delivers the authoritative row.
		local.Status = ""
		return local, nil
	}
	row := *confirmed
	row.Status = ""
	if !c.inScope(cmd.AuthorID, cmd.ProjectID) {
		c.logger.Debug("optimistic: sent message left out of switched scope", "message_id", row.ID, "project_id", cmd.ProjectID)
		return row, nil
	}
	if _, ok := c.store.Message(row.ID); !ok {
		c.store.AddMessage(row)
	}
	return row, nil
}

// RetryMessage resubmits a failed message. The failed entry is removed
// before the new send so the feed never holds both.
func (c *Coordinator) RetryMessage(ctx context.Context, id string) (types.Message, error) {
	if _, _, err := c.scope(); err != nil {
		return types.Message{}, err
	}
	m, ok := c.store.Message(id)
	if !ok {
		return types.Message{}, fmt.Errorf("message %s: %w", id, ErrUnknownEntity)
	}
	if m.Status != types.MessageFailed {
		return types.Message{}, fmt.Errorf("message %s: %w", id, ErrNotRetryable)
	}
	// A concurrent retry of the same entry loses here.
	if !c.store.RemoveMessage(id) {
		return types.Message{}, fmt.Errorf("message %s: %w", id, ErrNotRetryable)
	}

	return c.send(ctx, gateway.SendMessage{
		ProjectID:   m.ProjectID,
		Text:        m.Text,
		AuthorID:    m.AuthorID,
		Sender:      m.Sender,
		SenderLabel: m.SenderLabel,
	})
}

// DiscardMessage drops a failed message from the feed.
func (c *Coordinator) DiscardMessage(id string) error {
	m, ok := c.store.Message(id)
	if !ok {
		return fmt.Errorf("message %s: %w", id, ErrUnknownEntity)
	}
	if m.Status != types.MessageFailed {
		return fmt.Errorf("message %s: %w", id, ErrNotRetryable)
	}
	c.store.RemoveMessage(id)
	return nil
}
