package reporter

import "sync"

// SharedMap is a mapping shared between the reporter and same-process
// readers. Readers always observe a complete snapshot.
type SharedMap struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewSharedMap returns an empty SharedMap.
func NewSharedMap() *SharedMap {
	return &SharedMap{m: make(map[string]any)}
}

// replace clears the map and inserts fields in one critical section.
func (sm *SharedMap) replace(fields map[string]any) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	clear(sm.m)
	for k, v := range fields {
		sm.m[k] = v
	}
}

// Get returns a copy of the value stored under key.
func (sm *SharedMap) Get(key string) (any, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	v, ok := sm.m[key]
	return cloneValue(v), ok
}

// Len returns the number of keys currently stored.
func (sm *SharedMap) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.m)
}

// Copy returns a deep copy of the whole mapping.
func (sm *SharedMap) Copy() map[string]any {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return cloneValue(sm.m).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

// MemorySink publishes snapshots into a SharedMap, replacing its entire
// contents on every write so stale keys never survive.
type MemorySink struct {
	shared *SharedMap
}

// NewMemorySink returns a sink writing into shared.
func NewMemorySink(shared *SharedMap) *MemorySink {
	if shared == nil {
		panic("reporter: memory sink requires a shared map")
	}
	return &MemorySink{shared: shared}
}

// Write implements Sink. It never fails.
func (s *MemorySink) Write(snap Snapshot) error {
	mustValidate(snap)
	s.shared.replace(snap.Fields())
	return nil
}
