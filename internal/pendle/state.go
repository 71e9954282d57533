package pendle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Mak300079/MT-watchers/internal/model"
)

// State is the last full asset snapshot, the diff baseline across restarts.
type State struct {
	Assets    []model.Asset `json:"assets"`
	UpdatedAt string        `json:"updated_at"`
}

// StateStore persists the snapshot to disk with atomic replacement so a
// crash never leaves a corrupt baseline.
type StateStore struct {
	path    string
	enabled bool
}

func NewStateStore(path string) *StateStore {
	return &StateStore{path: path, enabled: path != ""}
}

func (s *StateStore) Load() (State, bool, error) {
	if !s.enabled {
		return State{}, false, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("read state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, false, fmt.Errorf("parse state: %w", err)
	}

	return state, true, nil
}

func (s *StateStore) Save(assets []model.Asset) error {
	if !s.enabled {
		return nil
	}

	state := State{
		Assets:    assets,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	return writeAtomic(s.path, state)
}

// SaveSnapshot writes a dated copy of the listing next to the rolling state.
func SaveSnapshot(dir string, assets []model.Asset) (string, error) {
	if dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("assets_%s.json", time.Now().UTC().Format("20060102-150405"))
	path := filepath.Join(dir, name)
	state := State{
		Assets:    assets,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := writeAtomic(path, state); err != nil {
		return "", err
	}
	return path, nil
}

func writeAtomic(path string, state State) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}

	return nil
}
