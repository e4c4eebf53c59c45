package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/codeintel/engine/internal/symbol"
)

const (
	defaultMaxChunkLines = 100
	defaultChunkOverlap  = 10
)

// fallbackAdapter handles any extension without a registered tree-sitter
// grammar by windowing the file into overlapping line chunks, each a
// MODULE-level symbol, per the "no-op adapter" design note and the
// configured max_chunk_lines/chunk_overlap fallback-chunker tunables. A
// file short enough to fit one window still yields exactly one symbol.
type fallbackAdapter struct {
	maxLines int
	overlap  int
}

// newFallbackAdapter builds a fallback adapter with the given window size
// and overlap, defaulting to 100/10 when either is non-positive.
func newFallbackAdapter(maxLines, overlap int) fallbackAdapter {
	if maxLines <= 0 {
		maxLines = defaultMaxChunkLines
	}
	if overlap < 0 || overlap >= maxLines {
		overlap = defaultChunkOverlap
	}
	return fallbackAdapter{maxLines: maxLines, overlap: overlap}
}

func (fallbackAdapter) Languages() []string { return nil }

func (a fallbackAdapter) Extract(sourceText, filePath string) ([]symbol.RawSymbol, []symbol.RawEdge, error) {
	maxLines, overlap := a.maxLines, a.overlap
	if maxLines <= 0 {
		maxLines = defaultMaxChunkLines
		overlap = defaultChunkOverlap
	}

	lines := splitLines(sourceText)
	if len(lines) == 0 {
		return nil, nil, nil
	}

	name := filepath.Base(filePath)
	stride := maxLines - overlap
	if stride <= 0 {
		stride = maxLines
	}

	var syms []symbol.RawSymbol
	for start := 0; start < len(lines); start += stride {
		end := start + maxLines
		if end > len(lines) {
			end = len(lines)
		}
		chunkName := name
		if start > 0 || end < len(lines) {
			chunkName = fmt.Sprintf("%s:%d-%d", name, start+1, end)
		}
		syms = append(syms, symbol.RawSymbol{
			Name:          chunkName,
			QualifiedName: fmt.Sprintf("%s:%d", filePath, start+1),
			Type:          symbol.Module,
			StartLine:     start + 1,
			EndLine:       end,
			Content:       strings.Join(lines[start:end], "\n"),
		})
		if end == len(lines) {
			break
		}
	}
	return syms, nil, nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
