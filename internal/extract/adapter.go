// Package extract implements the language-agnostic Extractor façade and
// its per-language adapters: source text in, raw symbols and raw edges
// out. Adapters are tree-sitter based (github.com/smacker/go-tree-sitter)
// where a grammar is registered. Files with unsupported extensions are
// windowed into overlapping line chunks, each a module-level symbol.
package extract

import (
	"path/filepath"
	"strings"

	"github.com/codeintel/engine/internal/symbol"
)

// Adapter is the LanguageAdapter contract: languages it covers, and the
// extraction function itself.
type Adapter interface {
	Languages() []string
	Extract(sourceText, filePath string) ([]symbol.RawSymbol, []symbol.RawEdge, error)
}

// Registry selects an Adapter by file extension, falling back to a
// no-op adapter for unrecognized extensions per the tagged-variant
// registry design note.
type Registry struct {
	byExt    map[string]Adapter
	fallback fallbackAdapter
}

// NewRegistry builds the default registry: tree-sitter adapters for the
// languages with registered grammars, and a fallback adapter windowing
// unrecognized files at the default 100-line/10-line-overlap chunk size.
func NewRegistry() *Registry {
	return NewRegistryWithChunking(defaultMaxChunkLines, defaultChunkOverlap)
}

// NewRegistryWithChunking is NewRegistry with the fallback chunker's
// window size and overlap taken from the caller's configuration.
func NewRegistryWithChunking(maxChunkLines, chunkOverlap int) *Registry {
	r := &Registry{byExt: make(map[string]Adapter), fallback: newFallbackAdapter(maxChunkLines, chunkOverlap)}
	r.Register(NewTreeSitterAdapter())
	return r
}

// Register adds an adapter for all of the extensions it covers,
// overwriting any existing registration for the same extension — later
// registrations win, so callers can layer a custom adapter over the
// defaults.
func (r *Registry) Register(a Adapter) {
	for _, ext := range a.Languages() {
		r.byExt[ext] = a
	}
}

// For returns the adapter for filePath's extension, or the fallback
// adapter if none is registered.
func (r *Registry) For(filePath string) Adapter {
	ext := strings.ToLower(filepath.Ext(filePath))
	if a, ok := r.byExt[ext]; ok {
		return a
	}
	return r.fallback
}

// Extract runs the appropriate adapter for filePath. Per the failure
// policy, a panic or error from the underlying parser is converted into
// an empty result and a returned error; it never propagates as a crash.
func (r *Registry) Extract(sourceText, filePath string) (syms []symbol.RawSymbol, edges []symbol.RawEdge, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			syms, edges, err = nil, nil, &ExtractionError{FilePath: filePath, Cause: rec}
		}
	}()
	return r.For(filePath).Extract(sourceText, filePath)
}

// ExtractionError marks a file whose extraction failed; the Index
// Manager records it on the FileRecord as status=error and continues.
type ExtractionError struct {
	FilePath string
	Cause    any
}

func (e *ExtractionError) Error() string {
	return "extract: failed on " + e.FilePath
}
