package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codeintel/engine/internal/symbol"
)

// walkForCalls emits AST-inferred CALLS edges. The caller's qualified
// name is resolved by walking up to the nearest enclosing declaration;
// calls outside any declaration (e.g. package-level init expressions)
// are attributed to the file's MODULE symbol.
func walkForCalls(node *sitter.Node, content []byte, lang, moduleQualifiedName string, out *[]symbol.RawEdge) {
	callNodeType := map[string]string{
		"go":         "call_expression",
		"javascript": "call_expression",
		"typescript": "call_expression",
		"python":     "call",
	}[lang]

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == callNodeType {
			if callee := calleeName(n, content, lang); callee != "" {
				caller := enclosingDeclarationName(n, content, lang)
				if caller == "" {
					caller = moduleQualifiedName
				}
				*out = append(*out, symbol.RawEdge{
					SourceQualifiedName: caller,
					TargetExternalName:  callee,
					Type:                symbol.Calls,
					Confidence:          symbol.MaxASTConfidence,
					Origin:              symbol.OriginASTInfer,
					SourceLine:          startLine(n),
				})
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
}

func calleeName(callNode *sitter.Node, content []byte, lang string) string {
	fn := callNode.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier":
		return nodeText(fn, content)
	case "selector_expression", "member_expression", "attribute":
		field := fn.ChildByFieldName("field")
		if field == nil {
			field = fn.ChildByFieldName("attribute")
		}
		if field == nil {
			field = fn.ChildByFieldName("property")
		}
		if field != nil {
			return nodeText(field, content)
		}
	}
	// Fallback: last dotted segment.
	text := nodeText(fn, content)
	if i := strings.LastIndexByte(text, '.'); i >= 0 {
		return text[i+1:]
	}
	return text
}

var declNodeTypes = map[string]map[string]bool{
	"go":         {"function_declaration": true, "method_declaration": true},
	"javascript": {"function_declaration": true, "method_definition": true},
	"typescript": {"function_declaration": true, "method_definition": true},
	"python":     {"function_definition": true},
}

func enclosingDeclarationName(n *sitter.Node, content []byte, lang string) string {
	types := declNodeTypes[lang]
	for p := n.Parent(); p != nil; p = p.Parent() {
		if types[p.Type()] {
			if nameNode := p.ChildByFieldName("name"); nameNode != nil {
				name := nodeText(nameNode, content)
				// A Python method is qualified by its class, the same way
				// extractPythonSymbol qualifies it.
				if lang == "python" {
					if block := p.Parent(); block != nil && block.Type() == "block" {
						if cls := block.Parent(); cls != nil && cls.Type() == "class_definition" {
							if cn := cls.ChildByFieldName("name"); cn != nil {
								return nodeText(cn, content) + "." + name
							}
						}
					}
				}
				return name
			}
		}
	}
	return ""
}

// walkForImports emits IMPORTS edges from the syntax tree's import
// declarations: Go import specs, JavaScript/TypeScript import
// statements, and Python import and from-import statements. CommonJS
// require() calls are not recognized. An import belongs to no
// declaration, so every edge is attributed to the file's own MODULE
// symbol as its source.
func walkForImports(node *sitter.Node, content []byte, lang, moduleQualifiedName string, out *[]symbol.RawEdge) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch lang {
		case "go":
			if n.Type() == "import_spec" {
				if pathNode := n.ChildByFieldName("path"); pathNode != nil {
					target := strings.Trim(nodeText(pathNode, content), `"`)
					*out = append(*out, symbol.RawEdge{
						SourceQualifiedName: moduleQualifiedName,
						TargetExternalName:  target, Type: symbol.Imports,
						Confidence: 1.0, Origin: symbol.OriginASTInfer, SourceLine: startLine(n),
					})
				}
			}
		case "javascript", "typescript":
			if n.Type() == "import_statement" {
				for i := 0; i < int(n.ChildCount()); i++ {
					c := n.Child(i)
					if c.Type() == "string" {
						target := strings.Trim(nodeText(c, content), `"'`)
						*out = append(*out, symbol.RawEdge{
							SourceQualifiedName: moduleQualifiedName,
							TargetExternalName:  target, Type: symbol.Imports,
							Confidence: 1.0, Origin: symbol.OriginASTInfer, SourceLine: startLine(n),
						})
					}
				}
			}
		case "python":
			if n.Type() == "import_statement" || n.Type() == "import_from_statement" {
				for i := 0; i < int(n.ChildCount()); i++ {
					c := n.Child(i)
					if c.Type() == "dotted_name" || c.Type() == "identifier" {
						*out = append(*out, symbol.RawEdge{
							SourceQualifiedName: moduleQualifiedName,
							TargetExternalName:  nodeText(c, content), Type: symbol.Imports,
							Confidence: 1.0, Origin: symbol.OriginASTInfer, SourceLine: startLine(n),
						})
					}
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
}
