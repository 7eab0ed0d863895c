// Package source implements the Source Module (C3 of SPEC_FULL.md): text
// storage with a line/column index, an incremental edit API, and the
// priority-based read/write guard protocol that the rest of the engine
// (C4–C9) must go through to touch a module's text or caches.
package source

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"adastra/internal/errs"
)

// fullWeight is the semaphore.Weighted capacity a single exclusive Writer
// guard consumes; every shared Reader guard consumes 1, so at most
// fullWeight-1 concurrent readers can ever be admitted (effectively
// unbounded for any realistic editor workload) while a single writer always
// holds the whole capacity (spec.md §4.3 "weight 1 per reader slot, full
// weight for a writer").
const fullWeight int64 = 1 << 30

// Kind distinguishes the two guard kinds a Module grants (spec.md §4.3).
type Kind int

const (
	KindRead Kind = iota
	KindWrite
)

// Priority is the caller-supplied unsigned priority compared against a
// module's currently-held guards to decide whether a new request revokes
// them (spec.md §4.3 state table).
type Priority uint

// TriggerHandle is fired when a guard the caller holds is revoked by a
// higher-priority request arriving. Implementations are expected to flip a
// flag an in-flight C4–C9 operation checks at its next suspension point and
// then unwind with errs.NewInterruptedAnalysis/NewInterruptedExecution
// (spec.md §4.3 "fired trigger causes any in-flight core operation holding
// the revoked guard to unwind... at the next suspension point").
type TriggerHandle interface {
	Fire()
}

// Module is one editable unit of script text plus its stable identity,
// version counter and the guard bookkeeping that arbitrates concurrent
// access (spec.md §4.3).
type Module struct {
	id uuid.UUID

	mu      sync.Mutex // protects everything below
	text    []byte
	version int64
	lines   []int // byte offset of the start of each line; lines[0] == 0

	sem         *semaphore.Weighted
	nextGuardID int64
	readers     map[int64]*guardEntry
	writer      *guardEntry

	// caches holds whatever C4–C9 keep keyed against a module version
	// (parse trees, analyzer results). A write guard's Edit invalidates
	// every entry, per spec.md §4.3 "invalidates affected caches".
	caches map[string]any
}

type guardEntry struct {
	id       int64
	kind     Kind
	priority Priority
	trigger  TriggerHandle
}

// New creates a Module over the given initial text, with a fresh stable
// identifier (spec.md §4.3; the identifier survives independent of any
// particular in-process Registry, usable by editor services (C9) to key
// cross-session caches).
func New(text string) *Module {
	m := &Module{
		id:      uuid.New(),
		text:    []byte(text),
		sem:     semaphore.NewWeighted(fullWeight),
		readers: make(map[int64]*guardEntry),
		caches:  make(map[string]any),
	}
	m.reindexLocked()
	return m
}

func (m *Module) ID() uuid.UUID { return m.id }

// Version returns the current monotonic edit counter (spec.md §4.3 "Edits
// update the version counter monotonically").
func (m *Module) Version() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

func (m *Module) reindexLocked() {
	lines := []int{0}
	for i, b := range m.text {
		if b == '\n' {
			lines = append(lines, i+1)
		}
	}
	m.lines = lines
}

// LineColumn converts a byte offset into a 1-based (line, column) pair,
// used to build errs.Span values.
func (m *Module) LineColumn(offset int) (line, column int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := sort.Search(len(m.lines), func(i int) bool { return m.lines[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, offset - m.lines[i] + 1
}

// Span builds an errs.Span for a byte range of this module.
func (m *Module) Span(start, end int) errs.Span {
	line, col := m.LineColumn(start)
	return errs.Span{ModuleID: m.id.String(), Start: start, End: end, Line: line, Column: col}
}
