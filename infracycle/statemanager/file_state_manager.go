package statemanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDir is where receipts live unless a caller overrides it.
const DefaultDir = "/var/lib/infracycle"

// FileStateManager keeps one JSON document per resource in a flat
// directory.
type FileStateManager struct {
	Dir string
}

func (f *FileStateManager) dir() string {
	if f.Dir == "" {
		return DefaultDir
	}
	return f.Dir
}

func (f *FileStateManager) path(resource string) string {
	// Resource names become file names; flatten any separator.
	safe := strings.ReplaceAll(resource, string(os.PathSeparator), "_")
	return filepath.Join(f.dir(), safe+".json")
}

func (f *FileStateManager) SaveState(ctx context.Context, state State) error {
	if state.Resource == "" {
		return errors.New("state resource must not be empty")
	}
	if err := os.MkdirAll(f.dir(), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path(state.Resource), data, 0o644)
}

func (f *FileStateManager) GetState(ctx context.Context, resource string) (State, error) {
	data, err := os.ReadFile(f.path(resource))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, ErrStateNotFound
		}
		return State{}, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("decode state for %s: %w", resource, err)
	}
	return state, nil
}

func (f *FileStateManager) ListStates(ctx context.Context) ([]State, error) {
	entries, err := os.ReadDir(f.dir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var states []State
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		resource := strings.TrimSuffix(entry.Name(), ".json")
		state, err := f.GetState(ctx, resource)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}
