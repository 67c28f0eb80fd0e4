// Package globaldce removes top-level definitions that are unreachable from
// a module's roots, including unreachable cycles of definitions that only
// reference each other.
//
// A Pass is built fresh for every module. It owns the dependency cache, the
// reachable set and the worklist of one run; none of it survives the run.
//
//	p := globaldce.New(m, globaldce.Options{EntryPoints: []string{"main"}})
//	res, err := p.Run(ctx)
package globaldce

import (
	"context"
	"errors"
	"time"

	"github.com/l3aro/go-globaldce/internal/log"
	"github.com/l3aro/go-globaldce/pkg/catalog"
	"github.com/l3aro/go-globaldce/pkg/deps"
	"github.com/l3aro/go-globaldce/pkg/ir"
	"github.com/l3aro/go-globaldce/pkg/liveness"
	"github.com/l3aro/go-globaldce/pkg/metadata"
	"github.com/l3aro/go-globaldce/pkg/sweep"
)

// ErrAlreadyRun is returned when Run or Analyze is called twice on one Pass.
var ErrAlreadyRun = errors.New("globaldce: pass already run; construct a new Pass per run")

// Options configures a pass run.
type Options struct {
	// EntryPoints names definitions to treat as roots in addition to the
	// externally visible and preserved ones.
	EntryPoints []string

	// Order is the worklist order of the mark phase.
	Order liveness.Order

	// CacheSize bounds the constant dependency cache. Zero means unbounded.
	CacheSize int

	// Verify cross-checks the worklist result against a plain recursive
	// reachability scan before anything is deleted.
	Verify bool

	Logger log.Logger
}

// Stats summarises one run.
type Stats struct {
	Definitions      int            `json:"definitions"`
	Roots            int            `json:"roots"`
	Reachable        int            `json:"reachable"`
	Removed          int            `json:"removed"`
	RemovedByKind    map[string]int `json:"removed_by_kind,omitempty"`
	DetachedMetadata int            `json:"detached_metadata"`
	DroppedConstants int            `json:"dropped_constants"`
	Steps            int            `json:"steps"`
	Dependencies     deps.Stats     `json:"dependencies"`
	Duration         time.Duration  `json:"duration_ns"`
}

// Result is returned by Run.
type Result struct {
	Module  string   `json:"module"`
	Changed bool     `json:"changed"`
	Removed []string `json:"removed,omitempty"`
	Stats   Stats    `json:"stats"`
}

// Pass is one run of dead-definition elimination over one module.
type Pass struct {
	module *ir.Module
	opts   Options
	logger log.Logger
	used   bool
}

// New creates a pass for m.
func New(m *ir.Module, opts Options) *Pass {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Pass{module: m, opts: opts, logger: logger}
}

// Analysis is the outcome of the mark phase. It is read-only.
type Analysis struct {
	Catalog    *catalog.Catalog
	Index      *deps.Index
	Propagator *liveness.Propagator
	Reachable  liveness.Set
}

// Dead returns the catalogued definitions outside the reachable set, in
// catalog order.
func (a *Analysis) Dead() []ir.DefID {
	var out []ir.DefID
	for _, id := range a.Catalog.Definitions() {
		if !a.Reachable.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// Analyze runs the mark phase only. The module is not modified.
func (p *Pass) Analyze(ctx context.Context) (*Analysis, error) {
	if p.used {
		return nil, ErrAlreadyRun
	}
	p.used = true
	return p.analyze(ctx)
}

func (p *Pass) analyze(ctx context.Context) (*Analysis, error) {
	if err := p.module.Validate(); err != nil {
		return nil, err
	}

	cat := catalog.New(p.module)
	index := deps.New(p.module, deps.WithCacheSize(p.opts.CacheSize))
	prop := liveness.New(cat, index,
		liveness.WithOrder(p.opts.Order),
		liveness.WithEntryPoints(p.opts.EntryPoints...),
	)
	if err := prop.Run(ctx); err != nil {
		return nil, err
	}
	a := &Analysis{
		Catalog:    cat,
		Index:      index,
		Propagator: prop,
		Reachable:  prop.Reachable(),
	}
	p.logger.Debug("mark phase reached fixed point",
		"module", p.module.Name,
		"roots", len(prop.Roots()),
		"reachable", a.Reachable.Len(),
		"steps", prop.Steps(),
	)

	if p.opts.Verify {
		want, err := ScanReachable(p.module, p.opts.EntryPoints)
		if err != nil {
			return nil, err
		}
		if !want.Equal(a.Reachable) {
			return nil, ir.Faultf("", "worklist reachable set (%d) differs from recursive scan (%d)",
				a.Reachable.Len(), want.Len())
		}
	}
	return a, nil
}

// Run marks the reachable definitions and deletes the rest. If the context
// is cancelled or a fault is found during marking, the module is left
// unmodified.
func (p *Pass) Run(ctx context.Context) (Result, error) {
	if p.used {
		return Result{}, ErrAlreadyRun
	}
	p.used = true
	start := time.Now()

	a, err := p.analyze(ctx)
	if err != nil {
		p.logger.Debug("mark phase failed", "module", p.module.Name, "error", err)
		return Result{}, err
	}

	// Kinds must be read before the sweep retires the slots.
	dead := a.Dead()
	kinds := make(map[string]int)
	for _, id := range dead {
		if d, ok := p.module.Def(id); ok {
			kinds[d.Kind.String()]++
		}
	}

	table := metadata.FromModule(p.module)
	swept, err := sweep.New(p.module, a.Catalog, table).Sweep(a.Reachable)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Module:  p.module.Name,
		Changed: swept.Changed,
		Stats: Stats{
			Definitions:      a.Catalog.Len(),
			Roots:            len(a.Propagator.Roots()),
			Reachable:        a.Reachable.Len(),
			Removed:          len(swept.Removed),
			DetachedMetadata: swept.Detached,
			DroppedConstants: swept.Constants,
			Steps:            a.Propagator.Steps(),
			Dependencies:     a.Index.Stats(),
			Duration:         time.Since(start),
		},
	}
	for _, id := range swept.Removed {
		res.Removed = append(res.Removed, p.module.NameOf(id))
		p.logger.Debug("removed dead definition", "module", p.module.Name, "name", p.module.NameOf(id))
	}
	if len(kinds) > 0 {
		res.Stats.RemovedByKind = kinds
	}

	p.logger.Info("global dce finished",
		"module", p.module.Name,
		"definitions", res.Stats.Definitions,
		"removed", res.Stats.Removed,
		"changed", res.Changed,
	)
	return res, nil
}

// Run is a convenience wrapper that builds a fresh Pass and runs it.
func Run(ctx context.Context, m *ir.Module, opts Options) (Result, error) {
	return New(m, opts).Run(ctx)
}
