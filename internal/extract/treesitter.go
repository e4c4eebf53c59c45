package extract

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/codeintel/engine/internal/symbol"
)

// TreeSitterAdapter covers Go, JavaScript/JSX, TypeScript/TSX, and
// Python via github.com/smacker/go-tree-sitter grammars. PHP, C#, and
// F# grammars are available in the same module but are left unwired —
// see DESIGN.md for the scope justification.
type TreeSitterAdapter struct {
	parsers map[string]*sitter.Parser
	langOf  map[string]string
}

// NewTreeSitterAdapter constructs parsers for every supported extension.
func NewTreeSitterAdapter() *TreeSitterAdapter {
	a := &TreeSitterAdapter{
		parsers: make(map[string]*sitter.Parser),
		langOf:  make(map[string]string),
	}
	grammars := map[string]struct {
		lang *sitter.Language
		name string
	}{
		".go":  {golang.GetLanguage(), "go"},
		".js":  {javascript.GetLanguage(), "javascript"},
		".jsx": {javascript.GetLanguage(), "javascript"},
		".ts":  {typescript.GetLanguage(), "typescript"},
		".tsx": {typescript.GetLanguage(), "typescript"},
		".py":  {python.GetLanguage(), "python"},
	}
	for ext, g := range grammars {
		p := sitter.NewParser()
		p.SetLanguage(g.lang)
		a.parsers[ext] = p
		a.langOf[ext] = g.name
	}
	return a
}

func (a *TreeSitterAdapter) Languages() []string {
	exts := make([]string, 0, len(a.parsers))
	for ext := range a.parsers {
		exts = append(exts, ext)
	}
	return exts
}

func (a *TreeSitterAdapter) Extract(sourceText, filePath string) ([]symbol.RawSymbol, []symbol.RawEdge, error) {
	ext := extOf(filePath)
	parser, ok := a.parsers[ext]
	if !ok {
		return fallbackAdapter{}.Extract(sourceText, filePath)
	}
	lang := a.langOf[ext]

	content := []byte(sourceText)
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, nil, err
	}
	defer tree.Close()

	moduleQN := filePath
	syms := []symbol.RawSymbol{{
		Name:          moduleName(filePath),
		QualifiedName: moduleQN,
		Type:          symbol.Module,
		StartLine:     1,
		EndLine:       endLine(tree.RootNode()),
	}}
	walkForSymbols(tree.RootNode(), content, lang, &syms)

	var edges []symbol.RawEdge
	walkForCalls(tree.RootNode(), content, lang, moduleQN, &edges)
	walkForImports(tree.RootNode(), content, lang, moduleQN, &edges)

	return syms, edges, nil
}

func moduleName(filePath string) string {
	return filePath[strings.LastIndexByte(filePath, '/')+1:]
}

func extOf(filePath string) string {
	i := strings.LastIndexByte(filePath, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(filePath[i:])
}

func nodeText(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(content)
}

func startLine(n *sitter.Node) int { return int(n.StartPoint().Row) + 1 }
func endLine(n *sitter.Node) int   { return int(n.EndPoint().Row) + 1 }

func truncateSignature(s string) string {
	if i := strings.IndexByte(s, '{'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if len(s) > 150 {
		return s[:150]
	}
	return s
}

// docstring walks preceding comment siblings, collecting consecutive
// comment nodes immediately above the declaration.
func docstring(n *sitter.Node, content []byte) string {
	var comments []string
	sib := n.PrevSibling()
	for sib != nil && sib.Type() == "comment" {
		comments = append([]string{nodeText(sib, content)}, comments...)
		sib = sib.PrevSibling()
	}
	return strings.Join(comments, "\n")
}
