package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leonletto/huddle/internal/paths"
	"github.com/leonletto/huddle/internal/types"
)

// ErrNoCurrentProject is returned when no project has been selected.
var ErrNoCurrentProject = errors.New("no project selected; run 'huddle project use <id>' or pass --project")

func currentProjectPath(huddleDir string) string {
	return filepath.Join(paths.VarDir(huddleDir), "project.json")
}

// LoadCurrentProject reads the project the CLI last selected.
func LoadCurrentProject(huddleDir string) (types.Project, error) {
	data, err := os.ReadFile(currentProjectPath(huddleDir)) //nolint:gosec // G304 - path from internal huddle directory
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.Project{}, ErrNoCurrentProject
		}
		return types.Project{}, fmt.Errorf("read current project: %w", err)
	}

	var p types.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return types.Project{}, fmt.Errorf("parse current project: %w", err)
	}
	if p.ID == "" {
		return types.Project{}, ErrNoCurrentProject
	}
	return p, nil
}

// SaveCurrentProject records p as the selected project.
func SaveCurrentProject(huddleDir string, p types.Project) error {
	if p.ID == "" {
		return errors.New("project id is required")
	}
	path := currentProjectPath(huddleDir)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create var directory: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal current project: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write current project: %w", err)
	}
	return nil
}

// ClearCurrentProject forgets the selected project. A missing file is not
// an error.
func ClearCurrentProject(huddleDir string) error {
	err := os.Remove(currentProjectPath(huddleDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove current project: %w", err)
	}
	return nil
}
