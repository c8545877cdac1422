package sqlformula

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/canonical/sqlformula/meta"
)

// FunctionSource supplies the function descriptors of a FunctionCatalog.
type FunctionSource interface {
	Functions(ctx context.Context) ([]*meta.Function, error)
}

// FunctionCatalog caches the normalised function descriptors of a source.
// The descriptors are loaded on first use and kept until Invalidate or
// Refresh is called. A catalog may be shared by several compilers.
//
// The mutex must be locked when accessing functions or byName.
type FunctionCatalog struct {
	source    FunctionSource
	functions []*meta.Function
	byName    map[string]*meta.Function
	mutex     sync.RWMutex
}

// NewFunctionCatalog returns an empty catalog over source.
func NewFunctionCatalog(source FunctionSource) *FunctionCatalog {
	return &FunctionCatalog{source: source}
}

// Lookup returns the function with the given name, ignoring case, or nil.
func (fc *FunctionCatalog) Lookup(ctx context.Context, name string) (*meta.Function, error) {
	byName, _, err := fc.load(ctx)
	if err != nil {
		return nil, err
	}
	return byName[strings.ToLower(name)], nil
}

// Functions returns all functions of the catalog.
func (fc *FunctionCatalog) Functions(ctx context.Context) ([]*meta.Function, error) {
	_, functions, err := fc.load(ctx)
	if err != nil {
		return nil, err
	}
	return append([]*meta.Function(nil), functions...), nil
}

// Invalidate drops the cached descriptors. They are loaded again on the
// next lookup.
func (fc *FunctionCatalog) Invalidate() {
	fc.mutex.Lock()
	fc.functions, fc.byName = nil, nil
	fc.mutex.Unlock()
}

// Refresh replaces the cached descriptors with the current ones of the
// source. On failure the cache is left empty.
func (fc *FunctionCatalog) Refresh(ctx context.Context) error {
	fc.Invalidate()
	_, _, err := fc.load(ctx)
	return err
}

// load returns the cached descriptors, loading them from the source if
// needed. Load errors are not cached.
func (fc *FunctionCatalog) load(ctx context.Context) (map[string]*meta.Function, []*meta.Function, error) {
	fc.mutex.RLock()
	byName, functions := fc.byName, fc.functions
	fc.mutex.RUnlock()
	if byName != nil {
		return byName, functions, nil
	}

	if fc.source == nil {
		return nil, nil, errors.New("cannot load function catalog: no source")
	}
	loaded, err := fc.source.Functions(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot load function catalog")
	}
	functions = normalise(loaded)
	byName = make(map[string]*meta.Function, len(functions))
	for _, fn := range functions {
		key := strings.ToLower(fn.Name)
		if _, ok := byName[key]; !ok {
			byName[key] = fn
		}
	}

	fc.mutex.Lock()
	// Check if the catalog has been loaded by someone else since we last
	// checked.
	if fc.byName != nil {
		byName, functions = fc.byName, fc.functions
	} else {
		fc.byName, fc.functions = byName, functions
	}
	fc.mutex.Unlock()
	return byName, functions, nil
}

// normalise returns copies of the descriptors with consistent nesting
// budgets and parameters in index order.
func normalise(functions []*meta.Function) []*meta.Function {
	out := make([]*meta.Function, 0, len(functions))
	for _, fn := range functions {
		if fn == nil {
			continue
		}
		fn = fn.Clone()
		switch {
		case fn.IsAggregate():
			fn.MaxNesting = 0
		case len(fn.Parameters) == 0 && fn.MaxNesting < 2:
			fn.MaxNesting = 2
		}
		sort.SliceStable(fn.Parameters, func(i, j int) bool {
			return fn.Parameters[i].Index < fn.Parameters[j].Index
		})
		out = append(out, fn)
	}
	return out
}
