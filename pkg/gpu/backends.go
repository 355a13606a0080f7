package gpu

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// BackendFactory creates a backend instance.
type BackendFactory func() (Backend, error)

type backendEntry struct {
	name      string
	priority  int
	factory   BackendFactory
	available func() bool
}

var (
	backendsMu sync.RWMutex
	backends   = map[string]*backendEntry{}
)

// ErrNoBackend is returned by Open when no registered backend is available.
var ErrNoBackend = errors.New("gpu: no backend available")

// Register adds a backend under name. Higher priorities are preferred by
// Open("auto"). A nil available func means always available. Registering an
// existing name replaces it.
//
// Backends register from init, so importing a backend package enables it:
//
//	import _ "github.com/go-drift/surfacekit/pkg/gpu/soft"
func Register(name string, priority int, factory BackendFactory, available func() bool) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if available == nil {
		available = func() bool { return true }
	}
	backends[name] = &backendEntry{name: name, priority: priority, factory: factory, available: available}
}

// Unregister removes a backend.
func Unregister(name string) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	delete(backends, name)
}

// Backends returns the names of all available backends, highest priority first.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	entries := make([]*backendEntry, 0, len(backends))
	for _, e := range backends {
		if e.available() {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority > entries[j].priority
		}
		return entries[i].name < entries[j].name
	})
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

// Open creates the named backend. "auto" and "" pick the available backend
// with the highest priority.
func Open(name string) (Backend, error) {
	if name == "" || name == "auto" {
		var lastErr error
		for _, n := range Backends() {
			b, err := Open(n)
			if err == nil {
				return b, nil
			}
			lastErr = err
		}
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, ErrNoBackend
	}

	backendsMu.RLock()
	e, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("gpu: backend %q not registered", name)
	}
	if !e.available() {
		return nil, fmt.Errorf("gpu: backend %q not available on this system", name)
	}
	return e.factory()
}
