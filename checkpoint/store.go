package checkpoint

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/hupe1980/maskedem"
	"github.com/hupe1980/maskedem/blobstore"
)

// Extension is the file extension of stored checkpoints.
const Extension = ".mkem"

// Name returns the blob name of the checkpoint of runID at iteration.
// Names of one run sort by iteration.
func Name(runID string, iteration int) string {
	return path.Join(runID, fmt.Sprintf("%010d%s", iteration, Extension))
}

// Save encodes s and writes it under Name(s.RunID, s.Iteration).
func Save(ctx context.Context, store blobstore.Store, s *maskedem.Snapshot, c Compression) (string, error) {
	if s == nil {
		return "", fmt.Errorf("checkpoint: nil snapshot")
	}
	data, err := Marshal(s, c)
	if err != nil {
		return "", err
	}
	name := Name(s.RunID, s.Iteration)
	if err := store.Put(ctx, name, data); err != nil {
		return "", fmt.Errorf("checkpoint: save %s: %w", name, err)
	}
	return name, nil
}

// Load reads and decodes the checkpoint stored under name.
func Load(ctx context.Context, store blobstore.Store, name string) (*maskedem.Snapshot, error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: load %s: %w", name, err)
	}
	return Unmarshal(data)
}

// Latest returns the name of the most recent checkpoint of runID.
func Latest(ctx context.Context, store blobstore.Store, runID string) (string, error) {
	names, err := store.List(ctx, runID+"/")
	if err != nil {
		return "", err
	}
	for i := len(names) - 1; i >= 0; i-- {
		if strings.HasSuffix(names[i], Extension) {
			return names[i], nil
		}
	}
	return "", fmt.Errorf("%w for run %s", ErrNoCheckpoint, runID)
}

// Prune deletes all but the newest keep checkpoints of runID.
func Prune(ctx context.Context, store blobstore.Store, runID string, keep int) error {
	names, err := store.List(ctx, runID+"/")
	if err != nil {
		return err
	}
	var ckpts []string
	for _, n := range names {
		if strings.HasSuffix(n, Extension) {
			ckpts = append(ckpts, n)
		}
	}
	for len(ckpts) > keep {
		if err := store.Delete(ctx, ckpts[0]); err != nil {
			return err
		}
		ckpts = ckpts[1:]
	}
	return nil
}
