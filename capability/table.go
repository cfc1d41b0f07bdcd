// Package capability
// Author: momentics <momentics@gmail.com>
//
// Explicit capability table: the host registers every property it can
// report, each behind a typed accessor, and callers look them up by name.
// Properties introduced in a later host version are registered with a
// minimum version and stay absent on older hosts.

package capability

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sugawarayuuta/sonnet"
)

// ErrUnknownProperty is returned for names not present in the table.
var ErrUnknownProperty = errors.New("capability: unknown property")

// Accessor reads the current value of a property.
type Accessor func() (any, error)

// Table maps property names to accessors.
type Table struct {
	mu      sync.RWMutex
	version string
	props   map[string]Accessor
}

// NewTable creates a table for a host reporting version (e.g. "2022.3.1").
func NewTable(version string) *Table {
	return &Table{version: version, props: make(map[string]Accessor)}
}

// Version returns the host version the table was built for.
func (t *Table) Version() string {
	return t.version
}

// Register adds or replaces a property.
func (t *Table) Register(name string, fn Accessor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.props[name] = fn
}

// RegisterSince adds a property only if the host version is at least since.
// It reports whether the property was registered.
func (t *Table) RegisterSince(since, name string, fn Accessor) bool {
	if CompareVersions(t.version, since) < 0 {
		return false
	}
	t.Register(name, fn)
	return true
}

// Value registers a property with a constant value.
func (t *Table) Value(name string, v any) {
	t.Register(name, func() (any, error) { return v, nil })
}

// Get reads property name.
func (t *Table) Get(name string) (any, error) {
	t.mu.RLock()
	fn, ok := t.props[name]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	v, err := fn()
	if err != nil {
		return nil, fmt.Errorf("capability %s: %w", name, err)
	}
	return v, nil
}

// Names lists registered properties in sorted order.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.props))
	for k := range t.props {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Handle serves the property lookup method. params: {"name": "..."}; with no
// name, every property is returned. Result: {"name","value"} or
// {"version","properties":{...}}.
func (t *Table) Handle(params json.RawMessage) (json.RawMessage, error) {
	var req struct {
		Name string `json:"name"`
	}
	if len(params) > 0 {
		if err := sonnet.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}
	if req.Name != "" {
		v, err := t.Get(req.Name)
		if err != nil {
			return nil, err
		}
		return sonnet.Marshal(map[string]any{"name": req.Name, "value": v})
	}

	all := make(map[string]any)
	for _, name := range t.Names() {
		v, err := t.Get(name)
		if err != nil {
			return nil, err
		}
		all[name] = v
	}
	return sonnet.Marshal(map[string]any{"version": t.version, "properties": all})
}

// CompareVersions compares dotted numeric versions. Missing components count
// as zero and a non-numeric component compares as zero.
func CompareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		x, y := component(as, i), component(bs, i)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func component(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, _ := strconv.Atoi(strings.TrimSpace(parts[i]))
	return n
}
