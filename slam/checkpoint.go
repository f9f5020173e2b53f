package slam

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint is a snapshot of a run taken between sampler iterations.
type Checkpoint struct {
	Phase       string     `json:"phase"`        // "em" or "final"
	EMIteration int        `json:"em_iteration"` // 1-based; 0 during the final E-step
	Iteration   int        `json:"iteration"`    // 0-based sampler iteration
	Names       []string   `json:"names"`
	State       []float64  `json:"state"` // Current parameter vector, Names order
	Tau         float64    `json:"tau"`
	H           float64    `json:"h"`
	Hyper       HyperTrace `json:"hyper"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Checkpointer persists checkpoints. Returning an error aborts the run.
type Checkpointer interface {
	Checkpoint(ctx context.Context, cp *Checkpoint) error
}

// CheckpointFunc adapts a function to the Checkpointer interface.
type CheckpointFunc func(ctx context.Context, cp *Checkpoint) error

func (f CheckpointFunc) Checkpoint(ctx context.Context, cp *Checkpoint) error {
	return f(ctx, cp)
}

// JSONCheckpointer writes each checkpoint to Path, replacing the previous one
// atomically.
type JSONCheckpointer struct {
	Path string
}

func (j *JSONCheckpointer) Checkpoint(_ context.Context, cp *Checkpoint) error {
	raw, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	dir := filepath.Dir(j.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(j.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating checkpoint file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), j.Path); err != nil {
		return fmt.Errorf("replacing checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint written by JSONCheckpointer.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("decoding checkpoint %s: %w", path, err)
	}
	return &cp, nil
}
