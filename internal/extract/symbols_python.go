package extract

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codeintel/engine/internal/symbol"
)

func extractPythonSymbol(node *sitter.Node, content []byte, out *[]symbol.RawSymbol) {
	switch node.Type() {
	case "function_definition":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name := nodeText(nameNode, content)
		kind := symbol.Function
		qualified := name
		if parent := node.Parent(); parent != nil && parent.Type() == "block" {
			if classNode := parent.Parent(); classNode != nil && classNode.Type() == "class_definition" {
				kind = symbol.Method
				if classNameNode := classNode.ChildByFieldName("name"); classNameNode != nil {
					qualified = nodeText(classNameNode, content) + "." + name
				}
			}
		}
		*out = append(*out, symbol.RawSymbol{
			Name: name, QualifiedName: qualified, Type: kind,
			StartLine: startLine(node), EndLine: endLine(node),
			Content: nodeText(node, content), Signature: truncateSignature(nodeText(node, content)),
			Docstring: pythonDocstring(node, content),
		})

	case "class_definition":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name := nodeText(nameNode, content)
		*out = append(*out, symbol.RawSymbol{
			Name: name, QualifiedName: name, Type: symbol.Class,
			StartLine: startLine(node), EndLine: endLine(node),
			Content: nodeText(node, content), Docstring: pythonDocstring(node, content),
		})
	}
}

// pythonDocstring returns the leading string-expression statement inside
// the declaration's body, the language convention for docstrings
// (distinct from the comment-sibling convention other languages use).
func pythonDocstring(node *sitter.Node, content []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.ChildCount() == 0 {
		return ""
	}
	first := body.Child(0)
	if first.Type() != "expression_statement" || first.ChildCount() == 0 {
		return ""
	}
	str := first.Child(0)
	if str.Type() != "string" {
		return ""
	}
	return nodeText(str, content)
}
