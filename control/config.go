// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with environment overrides and reload
// propagation.

package control

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ConfigStore is a dynamic key/value map with atomic snapshot and listener support.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners []func(changed []string)
}

// NewConfigStore initializes a config store with the given defaults.
func NewConfigStore(defaults map[string]any) *ConfigStore {
	cs := &ConfigStore{config: make(map[string]any, len(defaults))}
	for k, v := range defaults {
		cs.config[k] = v
	}
	return cs
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		out[k] = v
	}
	return out
}

// Keys returns the known keys in sorted order.
func (cs *ConfigStore) Keys() []string {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	keys := make([]string, 0, len(cs.config))
	for k := range cs.config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetConfig merges new values and notifies listeners synchronously.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) {
	cs.mu.Lock()
	changed := make([]string, 0, len(newCfg))
	for k, v := range newCfg {
		if old, ok := cs.config[k]; !ok || old != v {
			changed = append(changed, k)
		}
		cs.config[k] = v
	}
	listeners := append([]func([]string){}, cs.listeners...)
	cs.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)
	for _, fn := range listeners {
		fn(changed)
	}
}

// OnReload registers a listener called with the changed keys.
func (cs *ConfigStore) OnReload(fn func(changed []string)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// LoadEnv overrides known keys from environment variables named
// PREFIX_KEY, with dots and dashes in the key turned into underscores.
// Values are converted to the type of the existing default.
func (cs *ConfigStore) LoadEnv(prefix string, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	updates := make(map[string]any)
	for _, k := range cs.Keys() {
		name := EnvName(prefix, k)
		raw, ok := lookup(name)
		if !ok {
			continue
		}
		cs.mu.RLock()
		def := cs.config[k]
		cs.mu.RUnlock()
		v, err := convertLike(def, raw)
		if err != nil {
			return fmt.Errorf("config %s: %w", name, err)
		}
		updates[k] = v
	}
	cs.SetConfig(updates)
	return nil
}

// EnvName returns the environment variable consulted for key.
func EnvName(prefix, key string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return strings.ToUpper(prefix + "_" + r.Replace(key))
}

// String returns the value for key formatted as a string.
func (cs *ConfigStore) String(key string) string {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	v, ok := cs.config[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the integer value for key, or 0.
func (cs *ConfigStore) Int(key string) int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	switch v := cs.config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// Duration returns the duration value for key, or 0.
func (cs *ConfigStore) Duration(key string) time.Duration {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	switch v := cs.config[key].(type) {
	case time.Duration:
		return v
	case string:
		d, _ := time.ParseDuration(v)
		return d
	case int:
		return time.Duration(v) * time.Millisecond
	}
	return 0
}

// convertLike parses raw into the dynamic type of def.
func convertLike(def any, raw string) (any, error) {
	switch def.(type) {
	case int:
		return strconv.Atoi(raw)
	case bool:
		return strconv.ParseBool(raw)
	case time.Duration:
		return time.ParseDuration(raw)
	case float64:
		return strconv.ParseFloat(raw, 64)
	default:
		return raw, nil
	}
}
