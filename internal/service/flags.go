package service

import (
	"maps"
	"sync"

	"github.com/sipico/practice-server/internal/storage"
)

// FlagThrottle delays responses when truthy.
const FlagThrottle = "throttle"

// Flags are settings shared by every request and changed through the util service.
type Flags struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewFlags creates a flag set with the given initial values.
func NewFlags(initial map[string]any) *Flags {
	f := &Flags{values: map[string]any{FlagThrottle: false}}
	maps.Copy(f.values, initial)
	return f
}

// Get returns a flag value.
func (f *Flags) Get(name string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[name]
	return storage.DeepCopy(v), ok
}

// Merge sets every key of values.
func (f *Flags) Merge(values map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range values {
		f.values[k] = storage.DeepCopy(v)
	}
}

// Throttle reports whether the throttle flag is set.
func (f *Flags) Throttle() bool {
	v, _ := f.Get(FlagThrottle)
	return storage.Truthy(v)
}
