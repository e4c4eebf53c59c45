// Package relsource defines the optional RelationshipSource contract:
// an external LSP/SCIP/ast-grep integration that supplies call edges of
// higher confidence than the extractor's own AST inference.
package relsource

import "github.com/codeintel/engine/internal/symbol"

// Source produces edges for a single file, tagged with their origin so
// the Index Manager can label them lsp/scip rather than ast-inference.
type Source interface {
	EdgesForFile(path, branch string) ([]symbol.RawEdge, error)
}

// None is a RelationshipSource that contributes nothing, used when no
// external relationship integration is configured. Purely AST-inferred
// edges from the Extractor remain the only edge source in that case.
type None struct{}

func (None) EdgesForFile(path, branch string) ([]symbol.RawEdge, error) { return nil, nil }

var _ Source = None{}
