// Package editor implements Editor Services (C9 of SPEC_FULL.md): a thin
// query layer over the Source Module (C3), the parser (C4), the analyzer
// (C5) and the Export Descriptor ABI (C2) — completions, hover, definition,
// references, rename, inlay hints and code actions, each versioned against
// the guard protocol so a result is only ever reported against the module
// text it was computed from.
//
// Grounded on the teacher's internal/lsp/server.go Document model (one
// URI/Content/Version record per open file); the JSON-RPC transport itself
// is out of scope here (spec.md §1 treats LSP transport as a consumer of
// the core, not part of it), so what survives is the idea of a query
// resolving against one specific, versioned snapshot of the text.
package editor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"adastra/internal/analyzer"
	"adastra/internal/errs"
	"adastra/internal/hostabi"
	"adastra/internal/parser"
	"adastra/internal/source"
)

const indexCacheKey = "editor.index"

// noopTrigger satisfies source.TriggerHandle for queries that never hold a
// guard long enough to be worth cancelling — a query builds its snapshot and
// releases immediately, so there is nothing to revoke out from under it.
type noopTrigger struct{}

func (noopTrigger) Fire() {}

// Service answers editor queries against one Source Module. host is
// optional: without it, qualified references (`pkg.member`) still index and
// resolve locally but hover/completions over host package members fall
// back to showing just the bare name.
type Service struct {
	mod      *source.Module
	host     *hostabi.Host
	priority source.Priority
}

// NewService wraps mod for editor queries. priority 5 is used for every
// request — editor queries are read-only and advisory, so they never need
// to outrank an in-flight edit's write guard (spec.md §4.3's priority
// arbitration is for genuine contention, not query latency).
func NewService(mod *source.Module, host *hostabi.Host) *Service {
	return &Service{mod: mod, host: host, priority: 5}
}

// snapshot is the cached unit of work for one module version: parse tree,
// analyzer diagnostics, and this package's own symbol index.
type snapshot struct {
	text     string
	parse    *parser.Result
	analysis *analyzer.Result
	index    *Index
}

func (s *Service) snapshotAt(ctx context.Context) (*snapshot, error) {
	guard, err := s.mod.AcquireRead(ctx, s.priority, noopTrigger{})
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	if cached, ok := guard.Cache(indexCacheKey); ok {
		return cached.(*snapshot), nil
	}

	text := guard.Text()
	moduleID := s.mod.ID().String()
	pr := parser.Parse(moduleID, text)
	ar := analyzer.Analyze(moduleID, pr.Stmts, errs.DepthDeepSemantic)
	idx := buildIndex(moduleID, len(text), pr.Stmts)
	snap := &snapshot{text: text, parse: pr, analysis: ar, index: idx}
	guard.SetCache(indexCacheKey, snap)
	return snap, nil
}

// CompletionItemKind mirrors the LSP CompletionItemKind subset the teacher's
// Document-based server already used, kept numerically compatible so a
// transport adapter can forward these values unchanged.
type CompletionItemKind int

const (
	KindVariable CompletionItemKind = 6
	KindFunction CompletionItemKind = 3
	KindKeyword  CompletionItemKind = 14
	KindModule   CompletionItemKind = 9
	KindField    CompletionItemKind = 5
)

type CompletionItem struct {
	Label  string
	Kind   CompletionItemKind
	Detail string
}

var languageKeywords = []string{
	"fn", "let", "struct", "use", "if", "match", "else", "for", "in",
	"loop", "break", "continue", "return", "true", "false", "self",
	"crate", "max", "len", "nil",
}

// Completions returns candidates for the identifier fragment ending at
// offset: visible local symbols, language keywords, and, when the fragment
// is itself "pkg." qualified, that package's exported members.
func (s *Service) Completions(ctx context.Context, offset int) ([]CompletionItem, error) {
	snap, err := s.snapshotAt(ctx)
	if err != nil {
		return nil, err
	}

	if pkg, ok := qualifiedPrefix(snap.text, offset); ok {
		return s.packageCompletions(pkg), nil
	}

	prefix := wordBefore(snap.text, offset)
	scope := snap.index.Root.innermost(offset)
	if scope == nil {
		scope = snap.index.Root
	}

	var items []CompletionItem
	for _, sym := range visibleNames(scope) {
		if !strings.HasPrefix(sym.Name, prefix) {
			continue
		}
		kind := KindVariable
		detail := "local"
		if sym.IsFnLit {
			kind = KindFunction
			detail = fmt.Sprintf("fn(%s)", strings.Join(sym.Params, ", "))
		}
		items = append(items, CompletionItem{Label: sym.Name, Kind: kind, Detail: detail})
	}
	for _, kw := range languageKeywords {
		if strings.HasPrefix(kw, prefix) {
			items = append(items, CompletionItem{Label: kw, Kind: KindKeyword, Detail: "keyword"})
		}
	}
	if s.host != nil {
		for _, pkg := range s.host.Registry.Packages() {
			if strings.HasPrefix(pkg, prefix) {
				items = append(items, CompletionItem{Label: pkg, Kind: KindModule, Detail: "package"})
			}
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items, nil
}

func (s *Service) packageCompletions(pkgName string) []CompletionItem {
	if s.host == nil {
		return nil
	}
	pkg := s.host.Registry.Package(pkgName)
	if pkg == nil {
		return nil
	}
	var items []CompletionItem
	for name, fn := range pkg.Functions {
		items = append(items, CompletionItem{Label: name, Kind: KindFunction, Detail: fn.Doc})
	}
	for name := range pkg.Constants {
		items = append(items, CompletionItem{Label: name, Kind: KindVariable, Detail: "constant"})
	}
	for name := range pkg.Statics {
		items = append(items, CompletionItem{Label: name, Kind: KindVariable, Detail: "static"})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

// Hover is the markdown-ish text shown for the symbol or qualified member at
// offset; Service.Hover returns nil when there is nothing to show.
type Hover struct {
	Span errs.Span
	Text string
}

func (s *Service) Hover(ctx context.Context, offset int) (*Hover, error) {
	snap, err := s.snapshotAt(ctx)
	if err != nil {
		return nil, err
	}

	if q, ok := snap.index.qualifiedAt(offset); ok {
		return s.hoverQualified(q), nil
	}
	occ, ok := snap.index.occurrenceAt(offset)
	if !ok || occ.Sym == nil {
		return nil, nil
	}
	text := fmt.Sprintf("**%s** %s", kindLabel(occ.Sym.Kind), occ.Sym.Name)
	if occ.Sym.IsFnLit {
		text = fmt.Sprintf("**%s** fn(%s)", occ.Sym.Name, strings.Join(occ.Sym.Params, ", "))
	}
	if n, ok := occ.Sym.Literal.(int64); ok {
		text += fmt.Sprintf("\n\n%s", humanize.Comma(n))
	}
	return &Hover{Span: occ.Sym.Decl, Text: text}, nil
}

func (s *Service) hoverQualified(q *qualifiedRef) *Hover {
	text := fmt.Sprintf("**%s.%s**", q.Object, q.Member)
	if s.host != nil {
		if pkg := s.host.Registry.Package(q.Object); pkg != nil {
			if fn, ok := pkg.Functions[q.Member]; ok {
				text = fmt.Sprintf("**%s.%s**\n\n%s", q.Object, q.Member, fn.Doc)
			}
		}
	}
	return &Hover{Span: q.Span, Text: text}
}

func kindLabel(k symbolKind) string {
	switch k {
	case symParam:
		return "param"
	case symLoopVar:
		return "loop var"
	default:
		return "let"
	}
}

// Definition returns the declaration span of the symbol at offset, or nil if
// offset names something unresolved (a host package, an unresolved ident).
func (s *Service) Definition(ctx context.Context, offset int) (*errs.Span, error) {
	snap, err := s.snapshotAt(ctx)
	if err != nil {
		return nil, err
	}
	occ, ok := snap.index.occurrenceAt(offset)
	if !ok || occ.Sym == nil {
		return nil, nil
	}
	span := occ.Sym.Decl
	return &span, nil
}

// References returns every occurrence of the symbol at offset, declaration
// included, in source order.
func (s *Service) References(ctx context.Context, offset int) ([]errs.Span, error) {
	snap, err := s.snapshotAt(ctx)
	if err != nil {
		return nil, err
	}
	occ, ok := snap.index.occurrenceAt(offset)
	if !ok || occ.Sym == nil {
		return nil, nil
	}
	return snap.index.referencesTo(occ.Sym), nil
}

// Rename produces the edit set renaming the symbol at offset to newName, or
// an error if newName collides with a reserved keyword.
func (s *Service) Rename(ctx context.Context, offset int, newName string) ([]errs.Edit, error) {
	for _, kw := range languageKeywords {
		if newName == kw {
			return nil, fmt.Errorf("editor: %q is a reserved word", newName)
		}
	}
	spans, err := s.References(ctx, offset)
	if err != nil {
		return nil, err
	}
	edits := make([]errs.Edit, len(spans))
	for i, sp := range spans {
		edits[i] = errs.Edit{Span: sp, Replacement: newName}
	}
	return edits, nil
}

// InlayHint is a parameter-name label shown inline at a call argument.
type InlayHint struct {
	Offset int
	Label  string
}

// InlayHints returns one hint per argument of every call to a locally
// declared fn(...){...} literal whose parameter names this package's own
// index already tracks. Host calls are skipped: types.Function carries
// ParamTypes but no parameter names, so there is nothing to label them with.
func (s *Service) InlayHints(ctx context.Context, start, end int) ([]InlayHint, error) {
	snap, err := s.snapshotAt(ctx)
	if err != nil {
		return nil, err
	}

	var hints []InlayHint
	walkStmts(snap.parse.Stmts, func(e parser.Expr) bool {
		call, ok := e.(*parser.Call)
		if !ok {
			return true
		}
		if call.Span().Start < start || call.Span().End > end {
			return true
		}
		id, ok := call.Callee.(*parser.Ident)
		if !ok {
			return true
		}
		occ, ok := snap.index.occurrenceAt(id.Span().Start)
		if !ok || occ.Sym == nil || !occ.Sym.IsFnLit {
			return true
		}
		for i, arg := range call.Args {
			if i >= len(occ.Sym.Params) {
				break
			}
			hints = append(hints, InlayHint{Offset: arg.Span().Start, Label: occ.Sym.Params[i] + ":"})
		}
		return true
	})
	return hints, nil
}

// qualifiedPrefix reports whether the identifier fragment ending at offset
// is preceded by "name.", returning that leading name — the shape a
// completion request mid-"db.|" takes.
func qualifiedPrefix(text string, offset int) (string, bool) {
	i := offset
	for i > 0 && isIdentByte(text[i-1]) {
		i--
	}
	if i == 0 || text[i-1] != '.' {
		return "", false
	}
	j := i - 1
	for j > 0 && isIdentByte(text[j-1]) {
		j--
	}
	if j == i-1 {
		return "", false
	}
	return text[j : i-1], true
}

// wordBefore returns the identifier fragment immediately before offset,
// grounded on the teacher's getWordAtPosition.
func wordBefore(text string, offset int) string {
	if offset > len(text) {
		offset = len(text)
	}
	start := offset
	for start > 0 && isIdentByte(text[start-1]) {
		start--
	}
	return text[start:offset]
}

func isIdentByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}

