package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/boshu2/regtest/internal/artifact"
	"github.com/boshu2/regtest/internal/corpus"
	"github.com/boshu2/regtest/internal/worker"
)

// Reassemble merges the worker files of every stage into one file per corpus
// and stage. A block lands in every corpus whose index holds its id, in the
// order the corpus index lists them. Stages are merged concurrently.
func Reassemble(ctx context.Context, store *artifact.Store, test string, set *corpus.Set, stages []string, workers, concurrency int) error {
	scratch := store.ScratchDir(test)
	pool := worker.NewPool[string, struct{}](concurrency)
	results := pool.Process(ctx, stages, func(ctx context.Context, stage string) (struct{}, error) {
		return struct{}{}, reassembleStage(store, test, set, stage, workerFiles(scratch, stage, workers))
	})
	return worker.FirstError(results)
}

func reassembleStage(store *artifact.Store, test string, set *corpus.Set, stage string, files []string) error {
	blocks := make(map[string]string)
	for _, path := range files {
		f, err := os.Open(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return err
		}
		err = artifact.ScanRaw(f, func(id, raw string) error {
			if _, ok := set.Unique[id]; ok {
				blocks[id] = raw
			}
			return nil
		})
		_ = f.Close() //nolint:errcheck // read-only
		if err != nil {
			return fmt.Errorf("stage %s: read %s: %w", stage, path, err)
		}
	}

	for _, name := range set.Corpora {
		ix := set.Indexes[name]
		path := store.OutputPath(test, name, stage)
		err := store.AtomicWrite(path, func(w io.Writer) error {
			for _, id := range ix.Hashes() {
				raw, ok := blocks[id]
				if !ok {
					continue
				}
				if _, err := io.WriteString(w, strings.TrimRight(raw, "\n")+"\n\n"); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("stage %s: write %s: %w", stage, name, err)
		}
	}
	return nil
}
