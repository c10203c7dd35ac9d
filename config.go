// FILE: lixenwraith/layered/config.go
package layered

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
)

// entry is one registered source; exactly one field is set.
type entry struct {
	sync  Source
	async AsyncSource
}

func (e entry) origin() Origin {
	if e.async != nil {
		return e.async.Origin()
	}
	return e.sync.Origin()
}

func (e entry) required() bool {
	if e.async != nil {
		return e.async.Required()
	}
	return e.sync.Required()
}

// Config merges its registered sources, in registration order, into a cached
// snapshot. Defaults sit below every source and overrides above.
//
// Mutating methods mark the snapshot stale; the next read rebuilds it. A failed
// rebuild leaves the previous snapshot in place and is reported to the reader.
// Snapshots are never modified after publication, so values returned by Get
// and Snapshot may be shared freely between goroutines.
type Config struct {
	mutex     sync.Mutex // guards the fields below and serialises rebuilds
	sources   []entry
	defaults  Value
	overrides Value
	ordered   bool
	logger    *log.Logger

	validate *validator.Validate // struct validation for Scan; nil disables it

	snapshot atomic.Pointer[Value]
	stale    atomic.Bool
}

// New creates a Config with no sources. Its snapshot is an empty table.
func New() *Config {
	c := &Config{
		defaults:  EmptyTable(),
		overrides: EmptyTable(),
		logger:    log.New(io.Discard),
	}
	empty := EmptyTable()
	c.snapshot.Store(&empty)
	return c
}

// AddSource registers src above every source registered so far.
func (c *Config) AddSource(src Source) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.sources = append(c.sources, entry{sync: src})
	c.stale.Store(true)
}

// AddAsyncSource registers an asynchronous source. Asynchronous and blocking
// sources share one precedence order.
func (c *Config) AddAsyncSource(src AsyncSource) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.sources = append(c.sources, entry{async: src})
	c.stale.Store(true)
}

// RemoveSource unregisters the source at index. Later sources move down.
func (c *Config) RemoveSource(index int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if index < 0 || index >= len(c.sources) {
		return fmt.Errorf("source index %d out of range [0, %d)", index, len(c.sources))
	}
	c.sources = append(c.sources[:index:index], c.sources[index+1:]...)
	c.stale.Store(true)
	return nil
}

// Sources returns the number of registered sources.
func (c *Config) Sources() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.sources)
}

// SetDefault stores value at path below every source.
func (c *Config) SetDefault(path string, value any) error {
	return c.setLayer(&c.defaults, path, value, OriginDefault)
}

// SetOverride stores value at path above every source.
func (c *Config) SetOverride(path string, value any) error {
	return c.setLayer(&c.overrides, path, value, OriginOverride)
}

func (c *Config) setLayer(layer *Value, path string, value any, origin Origin) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	v, err := FromNative(value, origin)
	if err != nil {
		return fmt.Errorf("value for %q: %w", path, err)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if len(p) == 0 {
		if v.kind != KindTable {
			return &TypeMismatchError{Path: p, Expected: "table", Found: v.kind, Origin: origin}
		}
		*layer = v
	} else if err := layer.Set(p, v); err != nil {
		return err
	}
	c.stale.Store(true)
	return nil
}

// mergeDefaults layers v over the existing defaults.
func (c *Config) mergeDefaults(v Value) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.defaults = Merge(c.defaults, v)
	c.stale.Store(true)
}

// Refresh rebuilds the snapshot from all sources.
func (c *Config) Refresh() error {
	return c.RefreshContext(context.Background())
}

// RefreshContext rebuilds the snapshot, collecting sources one at a time in
// registration order. The first failing source aborts the rebuild with a
// *SourceError naming its index and origin; cancellation of ctx aborts it
// likewise. The snapshot is replaced only when every source succeeded.
func (c *Config) RefreshContext(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	acc := c.defaults.withOrdering(c.ordered)
	if acc.kind != KindTable {
		acc = TableValue(newTableMode(c.ordered))
	}

	for i, e := range c.sources {
		if err := ctx.Err(); err != nil {
			return newSourceError(i, e.origin(), err)
		}

		start := time.Now()
		v, err := c.collect(ctx, e)
		if err != nil {
			if !e.required() && errors.Is(err, ErrSourceUnavailable) {
				c.logger.Warn("skipping unavailable optional source", "index", i, "origin", e.origin(), "err", err)
				continue
			}
			return newSourceError(i, e.origin(), err)
		}
		if v.kind != KindTable && !v.IsNil() {
			return newSourceError(i, e.origin(),
				fmt.Errorf("source produced %s, expected a table", v.kind))
		}
		c.logger.Debug("collected source", "index", i, "origin", e.origin(), "elapsed", time.Since(start))
		if v.IsNil() {
			// Nothing contributed; merging Nil would replace the whole tree.
			continue
		}
		acc = Merge(acc, v.withOrdering(c.ordered))
	}

	acc = Merge(acc, c.overrides.withOrdering(c.ordered))
	c.snapshot.Store(&acc)
	c.stale.Store(false)
	return nil
}

func (c *Config) collect(ctx context.Context, e entry) (Value, error) {
	if e.async != nil {
		f := e.async.CollectAsync(ctx)
		if f == nil {
			return Value{}, errors.New("asynchronous source returned no future")
		}
		return f.Await(ctx)
	}
	return e.sync.Collect()
}

// current returns the snapshot, rebuilding it first when stale.
func (c *Config) current() (Value, error) {
	if c.stale.Load() {
		if err := c.Refresh(); err != nil {
			return *c.snapshot.Load(), err
		}
	}
	return *c.snapshot.Load(), nil
}

// Snapshot returns the merged tree. On a failed rebuild it returns the
// previous snapshot together with the error.
func (c *Config) Snapshot() (Value, error) {
	return c.current()
}

// Get evaluates path against the snapshot.
func (c *Config) Get(path string) (Value, error) {
	p, err := ParsePath(path)
	if err != nil {
		return Value{}, err
	}
	return c.GetPath(p)
}

// GetPath is Get for a parsed path.
func (c *Config) GetPath(p Path) (Value, error) {
	snap, err := c.current()
	if err != nil {
		return Value{}, err
	}
	return p.Eval(snap)
}

// Origin reports which source determined the value at path.
func (c *Config) Origin(path string) (Origin, error) {
	v, err := c.Get(path)
	if err != nil {
		return "", err
	}
	return v.Origin(), nil
}

// Has reports whether path resolves to a non-nil value.
func (c *Config) Has(path string) bool {
	v, err := c.Get(path)
	return err == nil && !v.IsNil()
}
