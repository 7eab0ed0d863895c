package source

import (
	"context"
)

// Guard is the access token returned by AcquireRead/AcquireWrite
// (spec.md §4.2 glossary "Guard. An access token over a Source Module
// carrying a priority and a cancellation trigger."). Callers must Release
// it; a write Guard additionally offers Edit to apply an edit.
type Guard struct {
	module *Module
	entry  *guardEntry
	weight int64
}

// Text returns a snapshot of the module's current text; valid for the
// lifetime of the Guard (a read Guard guarantees it will not change under
// it; a write Guard is free to mutate it via Edit).
func (g *Guard) Text() string {
	g.module.mu.Lock()
	defer g.module.mu.Unlock()
	return string(g.module.text)
}

// Cache reads a named analyzer/compiler cache entry valid against the
// module version the Guard was admitted under (spec.md §4.3.1: "Editor
// services... each service returns a result that is valid against the
// module version observed when the query was admitted").
func (g *Guard) Cache(key string) (any, bool) {
	g.module.mu.Lock()
	defer g.module.mu.Unlock()
	v, ok := g.module.caches[key]
	return v, ok
}

// SetCache stores a named cache entry, surviving until the next write
// guard's Edit invalidates it.
func (g *Guard) SetCache(key string, value any) {
	g.module.mu.Lock()
	defer g.module.mu.Unlock()
	g.module.caches[key] = value
}

// Release returns the Guard's slot to the module, allowing the next
// blocked Acquire* to proceed.
func (g *Guard) Release() {
	m := g.module
	m.mu.Lock()
	switch g.entry.kind {
	case KindRead:
		delete(m.readers, g.entry.id)
	case KindWrite:
		m.writer = nil
	}
	m.mu.Unlock()
	m.sem.Release(g.weight)
}

// Edit replaces the byte range [start,end) with replacement. Only valid on
// a write Guard. Each Edit invalidates every cache entry and advances the
// version counter monotonically (spec.md §4.3).
func (g *Guard) Edit(start, end int, replacement string) {
	m := g.module
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make([]byte, 0, len(m.text)-(end-start)+len(replacement))
	next = append(next, m.text[:start]...)
	next = append(next, replacement...)
	next = append(next, m.text[end:]...)
	m.text = next
	m.reindexLocked()
	m.version++
	m.caches = make(map[string]any)
}

// AcquireRead blocks (cooperatively with ctx cancellation) until a shared
// read guard is admitted, firing the current writer's trigger first if the
// requester's priority exceeds it (spec.md §4.3 state table, Writer(p) row).
func (m *Module) AcquireRead(ctx context.Context, priority Priority, trigger TriggerHandle) (*Guard, error) {
	m.mu.Lock()
	id := m.nextGuardID
	m.nextGuardID++
	entry := &guardEntry{id: id, kind: KindRead, priority: priority, trigger: trigger}
	if m.writer != nil && priority > m.writer.priority {
		m.writer.trigger.Fire()
	}
	m.mu.Unlock()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.readers[id] = entry
	m.mu.Unlock()
	return &Guard{module: m, entry: entry, weight: 1}, nil
}

// AcquireWrite blocks until an exclusive write guard is admitted, firing
// every current reader's trigger (and the current writer's, if any) whose
// priority the requester exceeds (spec.md §4.3 state table, Readers(n,p)
// and Writer(p) rows).
func (m *Module) AcquireWrite(ctx context.Context, priority Priority, trigger TriggerHandle) (*Guard, error) {
	m.mu.Lock()
	id := m.nextGuardID
	m.nextGuardID++
	entry := &guardEntry{id: id, kind: KindWrite, priority: priority, trigger: trigger}
	for _, r := range m.readers {
		if priority > r.priority {
			r.trigger.Fire()
		}
	}
	if m.writer != nil && priority > m.writer.priority {
		m.writer.trigger.Fire()
	}
	m.mu.Unlock()

	if err := m.sem.Acquire(ctx, fullWeight); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.writer = entry
	m.mu.Unlock()
	return &Guard{module: m, entry: entry, weight: fullWeight}, nil
}
