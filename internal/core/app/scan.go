package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"symgraph/internal/shared/observability"
)

// ScanResult summarizes one full scan.
type ScanResult struct {
	FilesScanned int
	Nodes        int
	Edges        int
	Duration     time.Duration
	Warnings     []string
}

// InitialScan walks the configured watch paths and extracts every supported
// file into the store. A file that fails to parse is a warning, not a scan
// failure.
func (a *App) InitialScan(ctx context.Context) (ScanResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.InitialScan")
	defer span.End()

	start := time.Now()
	defer func() {
		observability.ScanDuration.Observe(time.Since(start).Seconds())
	}()

	files, err := a.ScanDirectories(a.Config.Watch.Paths, a.Config.Exclude.Dirs, a.Config.Exclude.Files)
	if err != nil {
		return ScanResult{}, err
	}

	var warnings []string
	for _, filePath := range files {
		if err := ctx.Err(); err != nil {
			return ScanResult{}, err
		}
		if err := a.ProcessFile(filePath); err != nil {
			slog.Warn("failed to process file", "path", filePath, "error", err)
			warnings = append(warnings, fmt.Sprintf("process %s: %v", filePath, err))
		}
	}
	observability.ScanFilesTotal.Add(float64(len(files)))

	stats := a.Stats()
	return ScanResult{
		FilesScanned: len(files),
		Nodes:        stats.Nodes,
		Edges:        stats.Edges,
		Duration:     time.Since(start),
		Warnings:     warnings,
	}, nil
}

// ScanDirectories lists the supported files under the roots, honoring the
// exclude globs. Globs match path basenames.
func (a *App) ScanDirectories(paths []string, excludeDirs, excludeFiles []string) ([]string, error) {
	dirGlobs, err := compileGlobs(excludeDirs)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude dir pattern: %w", err)
	}
	fileGlobs, err := compileGlobs(excludeFiles)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude file pattern: %w", err)
	}

	var files []string
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			base := filepath.Base(path)
			if d.IsDir() {
				for _, g := range dirGlobs {
					if g.Match(base) {
						return filepath.SkipDir
					}
				}
				return nil
			}

			if !a.Extractor.Supported(path) {
				return nil
			}
			for _, g := range fileGlobs {
				if g.Match(base) {
					return nil
				}
			}

			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// ProcessFile extracts one file and applies its batch to the store,
// replacing the file's previous contribution wholesale.
func (a *App) ProcessFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	batch, err := a.Extractor.ExtractFile(a.relPath(path), content)
	if err != nil {
		return err
	}
	return a.writer.ApplyBatch(batch)
}

// relPath keys files relative to the project root so addresses stay stable
// across machines. Paths outside the root keep their absolute form.
func (a *App) relPath(path string) string {
	root := a.Config.Project.Root
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return abs
	}
	rel, err := filepath.Rel(absRoot, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return abs
	}
	return rel
}
