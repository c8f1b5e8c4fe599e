package dtsynth

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jward/dtsynth/internal/store"
)

// History queries recorded runs.
type History struct {
	store *store.Store
}

// History returns a query object over the Engine's run store.
func (e *Engine) History() (*History, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	return &History{store: e.store}, nil
}

// Runs returns the most recent runs first. limit <= 0 returns all runs.
func (h *History) Runs(limit int) ([]*Run, error) {
	runs, err := h.store.Runs(limit)
	if err != nil {
		return nil, fmt.Errorf("dtsynth: history: %w", err)
	}
	return runs, nil
}

// Latest returns the ID of the most recently recorded run, or "" if none.
func (h *History) Latest() (string, error) {
	id, err := h.store.Metadata(store.LastRunKey)
	if err != nil {
		return "", fmt.Errorf("dtsynth: history: %w", err)
	}
	return id, nil
}

// RunDetail is a run with its declarations grouped by file.
type RunDetail struct {
	Run   *Run                     `json:"run" yaml:"run"`
	Files []StoredFileDeclarations `json:"files" yaml:"files"`
}

// Show returns one run and its declarations.
func (h *History) Show(runID string) (*RunDetail, error) {
	run, err := h.run(runID)
	if err != nil {
		return nil, err
	}
	files, err := h.store.Declarations(runID)
	if err != nil {
		return nil, fmt.Errorf("dtsynth: history: %w", err)
	}
	return &RunDetail{Run: run, Files: files}, nil
}

// Delete removes a run and everything recorded with it.
func (h *History) Delete(runID string) error {
	if _, err := h.run(runID); err != nil {
		return err
	}
	if err := h.store.DeleteRun(runID); err != nil {
		return fmt.Errorf("dtsynth: history: %w", err)
	}
	return nil
}

// ChangeKind classifies a function's difference between two runs.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
	ChangeChanged ChangeKind = "changed"
)

// Change is one function whose signature differs between two runs.
type Change struct {
	Kind    ChangeKind `json:"kind" yaml:"kind"`
	Name    string     `json:"name" yaml:"name"`
	File    string     `json:"file" yaml:"file"`
	OldHash string     `json:"old_hash,omitempty" yaml:"old_hash,omitempty"`
	NewHash string     `json:"new_hash,omitempty" yaml:"new_hash,omitempty"`
}

// ErrRunFailed is returned by Diff when either run was recorded as failed.
// A failed run stores calls but no signatures, so it cannot be compared.
var ErrRunFailed = errors.New("run failed and has no signatures")

// Diff compares the signature hashes of two runs. Functions present in only
// one run are added or removed; functions in both with different hashes are
// changed. Results are sorted by file, then name.
func (h *History) Diff(oldRun, newRun string) ([]Change, error) {
	for _, id := range []string{oldRun, newRun} {
		run, err := h.run(id)
		if err != nil {
			return nil, err
		}
		if run.Status == store.StatusFailed {
			return nil, fmt.Errorf("dtsynth: diff: run %q: %w", id, ErrRunFailed)
		}
	}
	oldHashes, err := h.store.SignatureHashes(oldRun)
	if err != nil {
		return nil, fmt.Errorf("dtsynth: diff: %w", err)
	}
	newHashes, err := h.store.SignatureHashes(newRun)
	if err != nil {
		return nil, fmt.Errorf("dtsynth: diff: %w", err)
	}

	var changes []Change
	for k, oldHash := range oldHashes {
		newHash, ok := newHashes[k]
		switch {
		case !ok:
			changes = append(changes, Change{Kind: ChangeRemoved, Name: k.Name, File: k.File, OldHash: oldHash})
		case newHash != oldHash:
			changes = append(changes, Change{Kind: ChangeChanged, Name: k.Name, File: k.File, OldHash: oldHash, NewHash: newHash})
		}
	}
	for k, newHash := range newHashes {
		if _, ok := oldHashes[k]; !ok {
			changes = append(changes, Change{Kind: ChangeAdded, Name: k.Name, File: k.File, NewHash: newHash})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].File != changes[j].File {
			return changes[i].File < changes[j].File
		}
		return changes[i].Name < changes[j].Name
	})
	return changes, nil
}

func (h *History) run(runID string) (*Run, error) {
	run, err := h.store.RunByID(runID)
	if err != nil {
		return nil, fmt.Errorf("dtsynth: history: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("dtsynth: history: run %q not found", runID)
	}
	return run, nil
}
