package workspace

import (
	"context"
	"fmt"

	"github.com/leonletto/huddle/internal/optimistic"
	"github.com/leonletto/huddle/internal/transport"
	"github.com/leonletto/huddle/internal/types"
)

// RestoreSession asks the host for the current session and records the
// user, or nil when signed out.
func (w *Workspace) RestoreSession(ctx context.Context) (*types.User, error) {
	sess, err := w.gateway.GetSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if sess == nil {
		w.signedOut()
		return nil, nil
	}
	w.store.SetUser(sess.User)
	return w.store.User(), nil
}

// SignIn authenticates and records the user.
func (w *Workspace) SignIn(ctx context.Context, email, password string) (*types.User, error) {
	sess, err := w.gateway.SignIn(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	w.switchUser(sess.User)
	return w.store.User(), nil
}

// SignUp registers an account, which also signs it in.
func (w *Workspace) SignUp(ctx context.Context, email, password, displayName string) (*types.User, error) {
	sess, err := w.gateway.SignUp(ctx, email, password, displayName)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	w.switchUser(sess.User)
	return w.store.User(), nil
}

// SignOut closes the project and ends the session. The local state is
// cleared even when the host call fails.
func (w *Workspace) SignOut(ctx context.Context) error {
	w.signedOut()
	if err := w.gateway.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func (w *Workspace) switchUser(u *types.User) {
	if cur := w.store.User(); cur != nil && cur.UID != u.UID {
		w.CloseProject()
	}
	w.store.SetUser(u)
}

func (w *Workspace) signedOut() {
	w.CloseProject()
	w.store.SetUser(nil)
}

// CreateProject creates a project owned by the signed-in user. It does not
// open it.
func (w *Workspace) CreateProject(ctx context.Context, name string) (types.Project, error) {
	if w.store.User() == nil {
		return types.Project{}, optimistic.ErrNotSignedIn
	}
	p, err := w.gateway.CreateProject(ctx, name)
	if err != nil {
		return types.Project{}, fmt.Errorf("create project: %w", err)
	}
	if p == nil || p.ID == "" {
		return types.Project{}, fmt.Errorf("create project: %w: no project in response", transport.ErrProtocolViolation)
	}
	return *p, nil
}

// OpenProject makes p the active project: the store is scoped to it and
// both pollers and the heartbeat start. Opening the already open project
// is a no-op.
func (w *Workspace) OpenProject(ctx context.Context, p types.Project) error {
	user := w.store.User()
	if user == nil {
		return optimistic.ErrNotSignedIn
	}
	if p.ID == "" {
		return optimistic.ErrNoProject
	}
	if cur := w.store.Project(); cur != nil && cur.ID != p.ID {
		w.CloseProject()
	}
	w.store.SetProject(&p)

	runCtx := w.runCtx
	if _, err := w.tasks.Activate(runCtx, p.ID, user); err != nil {
		w.CloseProject()
		return err
	}
	if _, err := w.messages.Activate(runCtx, p.ID, user); err != nil {
		w.CloseProject()
		return err
	}
	if _, err := w.heartbeat.Activate(runCtx, p.ID, user); err != nil {
		w.CloseProject()
		return err
	}
	w.logger.Info("workspace: project opened", "project_id", p.ID, "user_id", user.UID)
	return nil
}

// CloseProject stops the pollers and the heartbeat and clears the scoped
// collections. It is a no-op without an open project.
func (w *Workspace) CloseProject() {
	w.tasks.Deactivate()
	w.messages.Deactivate()
	w.heartbeat.Deactivate()

	if p := w.store.Project(); p != nil {
		w.store.Reset()
		w.store.SetProject(nil)
		w.logger.Info("workspace: project closed", "project_id", p.ID)
	}
}

// Sync fetches both collections once and replaces the store's copies.
// Unlike a poll tick, failures are returned.
func (w *Workspace) Sync(ctx context.Context) error {
	p := w.store.Project()
	if p == nil {
		return optimistic.ErrNoProject
	}
	tasks, err := w.gateway.ListTasks(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("sync tasks: %w", err)
	}
	msgs, err := w.gateway.ListMessages(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("sync messages: %w", err)
	}
	if cur := w.store.Project(); cur == nil || cur.ID != p.ID {
		return nil
	}
	w.store.SetTasks(tasks)
	w.store.SetMessages(msgs)
	return nil
}

// Refresh asks both pollers for an immediate fetch.
func (w *Workspace) Refresh() {
	w.tasks.Refresh()
	w.messages.Refresh()
}

// Live reports whether the pollers and heartbeat are running.
func (w *Workspace) Live() bool {
	return w.tasks.Active() && w.messages.Active() && w.heartbeat.Active()
}
