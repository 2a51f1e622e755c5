// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

type (
	// Produced is what the execution engine reported.
	Produced struct {
		Succeeded bool
		// Outputs maps output ids to files, directories, arrays of those, or
		// plain paths.
		Outputs map[string]any
	}

	// Report summarizes output delivery.
	Report struct {
		// Provisioned counts primaries delivered with all their secondaries.
		Provisioned int
		// Skipped lists bound keys with no destination.
		Skipped []string
		// Failures holds every failed delivery.
		Failures []*TransferError
	}

	// OutputsError is returned when output delivery failed under the
	// active policy.
	OutputsError struct {
		Strict   bool
		Failures []*TransferError
	}
)

// Failed reports whether delivery counts as failed. In strict mode any
// failure is fatal; otherwise only a run where nothing was delivered.
func (r Report) Failed(strict bool) bool {
	if len(r.Failures) == 0 {
		return false
	}
	return strict || r.Provisioned == 0
}

// Err returns an *OutputsError when Failed(strict), nil otherwise.
func (r Report) Err(strict bool) error {
	if !r.Failed(strict) {
		return nil
	}
	return &OutputsError{Strict: strict, Failures: r.Failures}
}

// Error implements the error interface.
func (e *OutputsError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d output(s) could not be provisioned: %s", len(e.Failures), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual failures.
func (e *OutputsError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// ProvisionOutputs delivers produced outputs to the destinations named in
// bindings. Nothing happens unless the run succeeded. Failures never stop
// sibling deliveries; the caller applies the strict policy through
// Report.Err.
func (e *Engine) ProvisionOutputs(ctx context.Context, bindings map[string]any, produced Produced) (Report, error) {
	var report Report
	if !produced.Succeeded {
		return report, nil
	}

	var tasks []*Task
	for _, key := range slices.Sorted(maps.Keys(bindings)) {
		dest, dirLike, ok := bindingDestination(bindings[key])
		if !ok {
			report.Skipped = append(report.Skipped, key)
			continue
		}
		value, ok := produced.Outputs[key]
		if !ok || value == nil {
			report.Failures = append(report.Failures, &TransferError{
				Direction:   DirectionOutput,
				Key:         key,
				Destination: dest.Raw,
				Err:         ErrOutputNotProduced,
			})
			continue
		}
		planned, err := planOutputs(key, value, dest, dirLike, strings.HasSuffix(dest.Raw, "/"))
		if err != nil {
			report.Failures = append(report.Failures, &TransferError{
				Direction: DirectionOutput, Key: key, Destination: dest.Raw, Err: err,
			})
			continue
		}
		tasks = append(tasks, planned...)
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for _, t := range tasks {
		g.Go(func() error {
			err := e.deliver(ctx, t)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, err)
				return nil
			}
			report.Provisioned++
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(report.Failures, func(a, b *TransferError) int {
		return strings.Compare(a.Key+a.Destination, b.Key+b.Destination)
	})
	e.cfg.Logger.Debug("outputs provisioned", "count", report.Provisioned, "failed", len(report.Failures))
	return report, ctx.Err()
}

// deliver uploads secondaries first; the primary is only sent once they
// all arrived. Every secondary is attempted so each cause is reported.
func (e *Engine) deliver(ctx context.Context, t *Task) *TransferError {
	var secErrs []error
	for _, sec := range t.SecondaryFiles {
		if err := e.put(ctx, sec); err != nil {
			secErrs = append(secErrs, sec.fail(err))
		}
	}
	if len(secErrs) > 0 {
		return t.fail(errors.Join(append([]error{ErrSecondaryFailed}, secErrs...)...))
	}
	if err := e.put(ctx, t); err != nil {
		return t.fail(err)
	}
	return nil
}

func (e *Engine) put(ctx context.Context, t *Task) error {
	tr, err := e.transports.For(t.Destination)
	if err != nil {
		return err
	}
	if !t.Source.IsLocal() {
		return fmt.Errorf("produced output %s is not a local file", t.Source.Raw)
	}
	if err := e.withRetry(ctx, func() error { return tr.Put(ctx, t.Source.Path, t.Destination) }); err != nil {
		return err
	}
	e.emit(EventUploading, t.Source.Path, t.Destination.Raw)
	return nil
}

// bindingDestination reads the destination of a bound output key. Plain
// strings and File or Directory objects are accepted.
func bindingDestination(v any) (Location, bool, bool) {
	var raw string
	dirLike := false
	switch val := v.(type) {
	case string:
		raw = val
	case map[string]any:
		raw, _ = objectLocation(val)
		class, _ := val["class"].(string)
		dirLike = class == "Directory"
	}
	if raw == "" {
		return Location{}, false, false
	}
	dirLike = dirLike || strings.HasSuffix(raw, "/")
	return ParseLocation(raw, ""), dirLike, true
}

// planOutputs turns one produced value into delivery tasks. dirLike puts
// files inside dest; nest does the same for produced directories, which
// otherwise become dest themselves.
func planOutputs(key string, value any, dest Location, dirLike, nest bool) ([]*Task, error) {
	switch val := value.(type) {
	case string:
		src := ParseLocation(val, "")
		return []*Task{outputTask(key, src, fileDest(dest, dirLike, src.Base()))}, nil
	case []any:
		var tasks []*Task
		for _, item := range val {
			sub, err := planOutputs(key, item, dest, true, true)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, sub...)
		}
		return tasks, nil
	case map[string]any:
		raw, ok := objectLocation(val)
		if !ok {
			return nil, fmt.Errorf("produced %s has no location or path", key)
		}
		src := ParseLocation(raw, "")
		if class, _ := val["class"].(string); class == "Directory" {
			return planDirectory(key, src, dest, nest)
		}
		task := outputTask(key, src, fileDest(dest, dirLike, src.Base()))
		if secs, ok := val["secondaryFiles"].([]any); ok {
			for _, item := range secs {
				secObj, ok := item.(map[string]any)
				if !ok {
					continue
				}
				secRaw, ok := objectLocation(secObj)
				if !ok {
					continue
				}
				secSrc := ParseLocation(secRaw, "")
				task.SecondaryFiles = append(task.SecondaryFiles,
					outputTask(key, secSrc, task.Destination.Dir().Join(secSrc.Base())))
			}
		}
		return []*Task{task}, nil
	default:
		return nil, fmt.Errorf("produced %s has unsupported type %T", key, value)
	}
}

// planDirectory flattens a produced directory into one task per file,
// preserving relative paths under the destination.
func planDirectory(key string, src, dest Location, nest bool) ([]*Task, error) {
	if !src.IsLocal() {
		return nil, fmt.Errorf("produced directory %s is not local", src.Raw)
	}
	root := dest
	if nest {
		root = dest.Join(src.Base())
	}
	files, err := walkFiles(src.Path)
	if err != nil {
		return nil, err
	}
	tasks := make([]*Task, 0, len(files))
	for _, rel := range files {
		fileSrc := src.Join(rel)
		fileDst := root
		for part := range strings.SplitSeq(rel, "/") {
			fileDst = fileDst.Join(part)
		}
		task := outputTask(key, fileSrc, fileDst)
		task.Source = Location{Raw: fileSrc.Path, Path: fileSrc.Path}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func fileDest(dest Location, dirLike bool, name string) Location {
	if dirLike {
		return dest.Join(name)
	}
	return dest
}

func outputTask(key string, src, dst Location) *Task {
	return &Task{Direction: DirectionOutput, Key: key, Source: src, Destination: dst}
}
