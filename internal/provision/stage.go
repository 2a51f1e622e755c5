// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ctb/dockstore/internal/cache"
)

// StagedDocumentName is the file name of the rewritten inputs document.
const StagedDocumentName = "inputs.json"

type (
	// StagedInputs is the result of StageInputs.
	StagedInputs struct {
		// Dir is the per-run staging directory.
		Dir string
		// DocumentPath is the rewritten inputs document pointing at staged copies.
		DocumentPath string
		// Document is the rewritten inputs document.
		Document map[string]any
		// Tasks are the input transfers that were performed.
		Tasks []*Task
		// Bindings holds the values of skipped keys: output destinations.
		Bindings map[string]any
	}

	planner struct {
		baseDir  string
		stageDir string
		fileKeys map[string]bool
		slots    int
		tasks    []*Task
	}
)

// StageInputs loads the inputs document at documentPath, copies or fetches
// every referenced file into a fresh staging directory, and writes the
// rewritten document there. Every transfer is attempted; the returned
// error joins one *TransferError per failed task.
func (e *Engine) StageInputs(ctx context.Context, documentPath string) (*StagedInputs, error) {
	doc, err := LoadDocument(documentPath)
	if err != nil {
		return nil, err
	}
	baseDir, err := filepath.Abs(filepath.Dir(documentPath))
	if err != nil {
		return nil, err
	}
	dir, err := e.newStagingDir()
	if err != nil {
		return nil, err
	}

	p := &planner{baseDir: baseDir, stageDir: dir, fileKeys: toSet(e.cfg.FileKeys)}
	skip := toSet(e.cfg.SkipKeys)
	staged := &StagedInputs{
		Dir:      dir,
		Document: make(map[string]any, len(doc)),
		Bindings: make(map[string]any),
	}
	for _, key := range slices.Sorted(maps.Keys(doc)) {
		if skip[key] {
			staged.Bindings[key] = doc[key]
			continue
		}
		v, err := p.plan(key, doc[key])
		if err != nil {
			return nil, &DocumentError{Path: documentPath, Err: err}
		}
		staged.Document[key] = v
	}
	staged.Tasks = p.tasks

	e.cfg.Logger.Debug("staging inputs", "dir", dir, "tasks", len(p.tasks))
	if err := e.stageAll(ctx, p.tasks); err != nil {
		return staged, err
	}

	staged.DocumentPath = filepath.Join(dir, StagedDocumentName)
	if err := WriteDocument(staged.DocumentPath, staged.Document); err != nil {
		return staged, err
	}
	return staged, nil
}

func (e *Engine) newStagingDir() (string, error) {
	parent := e.cfg.WorkDir
	if parent == "" {
		parent = os.TempDir()
	}
	dir := filepath.Join(parent, "dockstore-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	return filepath.Abs(dir)
}

// stageAll runs every task; a failure never cancels its siblings. All
// failures are returned joined, ordered by their message.
func (e *Engine) stageAll(ctx context.Context, tasks []*Task) error {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(e.cfg.Concurrency)
	for _, t := range tasks {
		g.Go(func() error {
			if err := e.stageTask(ctx, t); err != nil {
				e.cfg.Logger.Debug("input not staged", "key", t.Key, "source", t.Source.Raw, "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(errs, func(a, b error) int { return strings.Compare(a.Error(), b.Error()) })
	return errors.Join(errs...)
}

// stageTask stages the primary, then every secondary next to it. Each
// failed secondary is reported on its own.
func (e *Engine) stageTask(ctx context.Context, t *Task) error {
	if err := os.MkdirAll(filepath.Dir(t.Destination.Path), 0o755); err != nil {
		return t.fail(err)
	}
	if err := e.stageOne(ctx, t); err != nil {
		return t.fail(err)
	}
	var errs []error
	for _, sec := range t.SecondaryFiles {
		if err := e.stageOne(ctx, sec); err != nil {
			errs = append(errs, sec.fail(err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) stageOne(ctx context.Context, t *Task) error {
	tr, err := e.transports.For(t.Source)
	if err != nil {
		return err
	}
	dst := t.Destination.Path

	if t.Source.IsLocal() {
		if err := e.withRetry(ctx, func() error { return tr.Fetch(ctx, t.Source, dst) }); err != nil {
			return err
		}
		e.cfg.Logger.Debug("copied", "from", t.Source.Path, "to", dst)
		return nil
	}

	if c := e.cfg.Cache; c != nil && !t.IsDirectory {
		info, err := tr.Stat(ctx, t.Source)
		switch {
		case err != nil:
			e.cfg.Logger.Debug("stat failed, bypassing cache", "source", t.Source.Raw, "error", err)
		case info.Version == "":
			e.cfg.Logger.Debug("no version tag, bypassing cache", "source", t.Source.Raw)
		default:
			return e.stageCached(ctx, c, tr, t, info)
		}
	}

	if err := e.withRetry(ctx, func() error { return tr.Fetch(ctx, t.Source, dst) }); err != nil {
		return err
	}
	e.emit(EventDownloading, t.Source.Raw, dst)
	return nil
}

func (e *Engine) stageCached(ctx context.Context, c *cache.Cache, tr Transport, t *Task, info Info) error {
	sig := cache.NewSignature(t.Source.Raw, info.Version)
	blob, hit, err := c.Fill(ctx, sig, t.Source.Raw, func(ctx context.Context, tmp string) error {
		return e.withRetry(ctx, func() error { return tr.Fetch(ctx, t.Source, tmp) })
	})
	if err != nil {
		return err
	}
	// Engines may write to their inputs; the blob must stay intact.
	if err := CopyFile(blob, t.Destination.Path); err != nil {
		return err
	}
	if hit {
		e.emit(EventCacheHit, t.Source.Raw, t.Destination.Path)
	} else {
		e.emit(EventDownloading, t.Source.Raw, t.Destination.Path)
	}
	return nil
}

// plan rewrites one top-level value, recording a task for every file
// reference it contains.
func (p *planner) plan(key string, v any) (any, error) {
	if p.fileKeys[key] {
		switch val := v.(type) {
		case string:
			return p.planPlain(key, val), nil
		case []any:
			out := make([]any, len(val))
			for i, item := range val {
				if s, ok := item.(string); ok {
					out[i] = p.planPlain(key, s)
					continue
				}
				rewritten, err := p.walk(key, item)
				if err != nil {
					return nil, err
				}
				out[i] = rewritten
			}
			return out, nil
		}
	}
	return p.walk(key, v)
}

func (p *planner) walk(key string, v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if class, _ := val["class"].(string); class == "File" || class == "Directory" {
			return p.planObject(key, val, p.slot())
		}
		out := make(map[string]any, len(val))
		for _, k := range slices.Sorted(maps.Keys(val)) {
			rewritten, err := p.walk(key, val[k])
			if err != nil {
				return nil, err
			}
			out[k] = rewritten
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			rewritten, err := p.walk(key, item)
			if err != nil {
				return nil, err
			}
			out[i] = rewritten
		}
		return out, nil
	default:
		return v, nil
	}
}

func (p *planner) planPlain(key, raw string) string {
	src := ParseLocation(raw, p.baseDir)
	dst := filepath.Join(p.slot(), src.Base())
	p.tasks = append(p.tasks, &Task{
		Direction:   DirectionInput,
		Key:         key,
		Source:      src,
		Destination: Location{Raw: dst, Path: dst},
	})
	return dst
}

// planObject stages a File or Directory object into slot. Secondary files
// share the slot so the engine finds them beside the primary.
func (p *planner) planObject(key string, obj map[string]any, slot string) (map[string]any, error) {
	out := cloneMap(obj)
	class, _ := obj["class"].(string)
	raw, ok := objectLocation(obj)
	if !ok {
		return p.planLiteral(key, class, obj, out, slot)
	}

	src := ParseLocation(raw, p.baseDir)
	name := src.Base()
	if b, ok := obj["basename"].(string); ok && b != "" {
		name = b
	}
	dst := filepath.Join(slot, name)
	task := &Task{
		Direction:   DirectionInput,
		Key:         key,
		Source:      src,
		Destination: Location{Raw: dst, Path: dst},
		IsDirectory: class == "Directory",
	}
	setPath(out, dst)
	// A copied directory carries its own listing.
	delete(out, "listing")

	if secs, ok := obj["secondaryFiles"].([]any); ok {
		rewritten := make([]any, 0, len(secs))
		for _, item := range secs {
			secObj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			secRaw, ok := objectLocation(secObj)
			if !ok {
				return nil, fmt.Errorf("%s: secondary file of %s has no location or path", key, raw)
			}
			secSrc := ParseLocation(secRaw, p.baseDir)
			secDst := filepath.Join(slot, secSrc.Base())
			secClass, _ := secObj["class"].(string)
			task.SecondaryFiles = append(task.SecondaryFiles, &Task{
				Direction:   DirectionInput,
				Key:         key,
				Source:      secSrc,
				Destination: Location{Raw: secDst, Path: secDst},
				IsDirectory: secClass == "Directory",
			})
			secOut := cloneMap(secObj)
			setPath(secOut, secDst)
			rewritten = append(rewritten, secOut)
		}
		out["secondaryFiles"] = rewritten
	}

	p.tasks = append(p.tasks, task)
	return out, nil
}

// planLiteral handles objects without a location: file literals carrying
// contents are passed through, and directory literals are assembled from
// their listing.
func (p *planner) planLiteral(key, class string, obj, out map[string]any, slot string) (map[string]any, error) {
	if _, ok := obj["contents"]; ok && class == "File" {
		return out, nil
	}
	listing, ok := obj["listing"].([]any)
	if class != "Directory" || !ok {
		return nil, fmt.Errorf("%s: %s object has no location or path", key, class)
	}
	name, _ := obj["basename"].(string)
	if name == "" {
		name = "dir"
	}
	dir := filepath.Join(slot, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	rewritten := make([]any, 0, len(listing))
	for _, item := range listing {
		child, ok := item.(map[string]any)
		if !ok {
			continue
		}
		staged, err := p.planObject(key, child, dir)
		if err != nil {
			return nil, err
		}
		rewritten = append(rewritten, staged)
	}
	setPath(out, dir)
	out["listing"] = rewritten
	return out, nil
}

func (p *planner) slot() string {
	p.slots++
	return filepath.Join(p.stageDir, "inputs", fmt.Sprintf("%03d", p.slots))
}

// objectLocation prefers location over path, as CWL does.
func objectLocation(obj map[string]any) (string, bool) {
	for _, k := range []string{"location", "path"} {
		if s, ok := obj[k].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func setPath(obj map[string]any, path string) {
	obj["path"] = path
	delete(obj, "location")
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	maps.Copy(out, m)
	return out
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

// IsTransferError reports whether err came from a failed transfer rather
// than from reading the document.
func IsTransferError(err error) bool {
	var te *TransferError
	return errors.As(err, &te)
}
