// Package dataset walks class-labeled image directory trees and assembles
// the aligned feature/label arrays the trainer consumes. Layout on disk is
// <root>/<class_name>/<image files>; multiple roots contributing the same
// class merge under one label.
package dataset

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/agrisphere/leafclass/internal/features"
)

// imageExts are the recognized image file extensions, matched
// case-insensitively.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Assembler builds datasets from directory trees.
type Assembler struct {
	cfg       Config
	extractor *features.Extractor
	log       *slog.Logger
	sink      VectorSink
}

// NewAssembler returns an Assembler extracting with ex.
func NewAssembler(cfg Config, ex *features.Extractor, log *slog.Logger) *Assembler {
	return &Assembler{cfg: cfg, extractor: ex, log: log}
}

// WithSink registers a sink that receives every surviving sample during the
// merge step. Passing nil disables it.
func (a *Assembler) WithSink(sink VectorSink) *Assembler {
	a.sink = sink
	return a
}

// Assemble scans the roots and produces the dataset. A root that does not
// exist is skipped with a warning; an image that fails to decode is dropped
// together with its label. ErrEmptyDataset is returned when nothing
// survives.
func (a *Assembler) Assemble(ctx context.Context, roots []string) (*Dataset, error) {
	classes := a.scanClasses(roots)
	a.log.Info("scanned dataset roots", "roots", len(roots), "classes", len(classes))

	classIdx := make(map[string]int, len(classes))
	for i, name := range classes {
		classIdx[name] = i
	}

	tasks := a.collectTasks(roots, classIdx)
	a.log.Info("collected extraction tasks", "images", len(tasks))

	vecs, errs := a.extractAll(ctx, tasks)

	ds := &Dataset{Classes: classes}
	dropped := 0
	for i, t := range tasks {
		if errs[i] != nil {
			dropped++
			a.log.Debug("dropping sample", "path", t.path, "err", errs[i])
			continue
		}
		ds.Features = append(ds.Features, vecs[i])
		ds.Labels = append(ds.Labels, t.label)

		if a.sink != nil {
			if err := a.sink.Add(ctx, t.path, classes[t.label], vecs[i]); err != nil {
				a.log.Warn("feature store write failed", "path", t.path, "err", err)
			}
		}
	}
	if dropped > 0 {
		a.log.Warn("dropped failed extractions", "dropped", dropped, "kept", len(ds.Features))
	}

	if len(ds.Features) == 0 {
		return nil, ErrEmptyDataset
	}
	return ds, nil
}

// scanClasses unions the class subdirectories of every root and returns
// them sorted. This runs before any sampling so label indices are stable no
// matter which roots exist or in which order they are listed.
func (a *Assembler) scanClasses(roots []string) []string {
	seen := make(map[string]bool)
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			a.log.Warn("skipping dataset root", "root", root, "err", err)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				seen[entry.Name()] = true
			}
		}
	}

	classes := make([]string, 0, len(seen))
	for name := range seen {
		classes = append(classes, name)
	}
	sort.Strings(classes)
	return classes
}

// collectTasks lists and samples the images of every class directory.
func (a *Assembler) collectTasks(roots []string, classIdx map[string]int) []task {
	rng := rand.New(rand.NewSource(a.cfg.Seed))

	var tasks []task
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue // already warned during the vocabulary pass
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			classDir := filepath.Join(root, entry.Name())
			files := listImages(classDir)

			if a.cfg.SamplesPerClass > 0 && len(files) > a.cfg.SamplesPerClass {
				perm := rng.Perm(len(files))[:a.cfg.SamplesPerClass]
				sort.Ints(perm)
				sampled := make([]string, len(perm))
				for i, p := range perm {
					sampled[i] = files[p]
				}
				files = sampled
			}

			label := classIdx[entry.Name()]
			for _, f := range files {
				tasks = append(tasks, task{
					index: len(tasks),
					path:  filepath.Join(classDir, f),
					label: label,
				})
			}
		}
	}
	return tasks
}

// listImages returns the recognized image filenames of dir in sorted order.
func listImages(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files
}

// extractAll fans the tasks out to a worker pool and joins before
// returning. Results land in per-task slots, so workers never share mutable
// state; failures are tagged per slot and never abort siblings.
func (a *Assembler) extractAll(ctx context.Context, tasks []task) ([]features.Vector, []error) {
	vecs := make([]features.Vector, len(tasks))
	errs := make([]error, len(tasks))

	workChan := make(chan task, len(tasks))
	var wg sync.WaitGroup

	remaining := atomic.Int64{}
	remaining.Store(int64(len(tasks)))

	workers := a.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range workChan {
				vecs[t.index], errs[t.index] = a.extractor.Extract(t.path)
				if left := remaining.Add(-1); left%500 == 0 && left > 0 {
					a.log.Info("extraction progress", "remaining", left, "total", len(tasks))
				}
			}
		}()
	}

	cancelled := false
	for _, t := range tasks {
		select {
		case <-ctx.Done():
			cancelled = true
		case workChan <- t:
		}
		if cancelled {
			break
		}
	}
	close(workChan)
	wg.Wait()

	if cancelled {
		// Tasks never fed to the pool get the ctx error so the merge step
		// drops them.
		for i := range tasks {
			if vecs[i] == nil && errs[i] == nil {
				errs[i] = ctx.Err()
			}
		}
	}
	return vecs, errs
}
