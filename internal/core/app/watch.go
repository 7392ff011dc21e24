package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"symgraph/internal/realtime"
	"symgraph/internal/watcher"
)

// StartWatcher begins watching the configured paths. Debounced change
// batches flow through HandleChanges.
func (a *App) StartWatcher() error {
	w, err := watcher.New(watcher.Options{
		Debounce:     a.Config.Watch.Debounce,
		ExcludeDirs:  a.Config.Exclude.Dirs,
		ExcludeFiles: a.Config.Exclude.Files,
		Accept:       a.Extractor.Supported,
	}, a.HandleChanges)
	if err != nil {
		return err
	}
	a.activeWatcher = w
	return w.Watch(a.Config.Watch.Paths)
}

// HandleChanges applies one debounced batch of filesystem changes: removed
// files drop their graph contribution, changed files re-extract. Afterwards
// auto-inference runs over the touched nodes and the realtime layer is told
// to refresh affected live queries.
func (a *App) HandleChanges(changes []watcher.Change) {
	ctx := context.Background()

	var touched []string
	changeType := realtime.ChangeUpdate

	for _, c := range changes {
		rel := a.relPath(c.Path)
		if c.Removed {
			if err := a.remover.RemoveFile(a.Config.Project.Name, rel); err != nil {
				slog.Warn("failed to remove file from graph", "path", rel, "error", err)
			}
			changeType = realtime.ChangeDelete
			continue
		}

		content := readIfPresent(c.Path)
		if content == nil {
			// Raced with a delete between the event and the read.
			if err := a.remover.RemoveFile(a.Config.Project.Name, rel); err != nil {
				slog.Warn("failed to remove file from graph", "path", rel, "error", err)
			}
			changeType = realtime.ChangeDelete
			continue
		}

		batch, err := a.Extractor.ExtractFile(rel, content)
		if err != nil {
			slog.Warn("failed to extract changed file", "path", rel, "error", err)
			continue
		}
		if err := a.writer.ApplyBatch(batch); err != nil {
			slog.Warn("failed to apply change batch", "path", rel, "error", err)
			continue
		}
		for _, n := range batch.Nodes {
			touched = append(touched, n.Address)
		}
	}

	if len(touched) > 0 {
		if _, err := a.Inference.OnDataChange(ctx, touched); err != nil {
			slog.Warn("auto-inference failed", "error", err)
		}
	}

	a.Realtime.NotifyDataChange(ctx, realtime.ChangeEvent{
		Type:      changeType,
		Table:     "nodes",
		Record:    changeRecord(changes),
		Timestamp: time.Now(),
	})
}

func changeRecord(changes []watcher.Change) map[string]string {
	if len(changes) == 0 {
		return nil
	}
	return map[string]string{"file_path": changes[0].Path}
}

func readIfPresent(path string) []byte {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return content
}
