package extract

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codeintel/engine/internal/symbol"
)

func extractJSSymbol(node *sitter.Node, content []byte, out *[]symbol.RawSymbol) {
	switch node.Type() {
	case "function_declaration":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name := nodeText(nameNode, content)
		*out = append(*out, symbol.RawSymbol{
			Name: name, QualifiedName: name, Type: symbol.Function,
			StartLine: startLine(node), EndLine: endLine(node),
			Content: nodeText(node, content), Signature: truncateSignature(nodeText(node, content)),
			Docstring: docstring(node, content),
		})

	case "class_declaration":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name := nodeText(nameNode, content)
		*out = append(*out, symbol.RawSymbol{
			Name: name, QualifiedName: name, Type: symbol.Class,
			StartLine: startLine(node), EndLine: endLine(node),
			Content: nodeText(node, content), Docstring: docstring(node, content),
		})

	case "interface_declaration":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name := nodeText(nameNode, content)
		*out = append(*out, symbol.RawSymbol{
			Name: name, QualifiedName: name, Type: symbol.Interface,
			StartLine: startLine(node), EndLine: endLine(node),
			Content: nodeText(node, content), Docstring: docstring(node, content),
		})

	case "method_definition":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name := nodeText(nameNode, content)
		*out = append(*out, symbol.RawSymbol{
			Name: name, QualifiedName: name, Type: symbol.Method,
			StartLine: startLine(node), EndLine: endLine(node),
			Content: nodeText(node, content), Signature: truncateSignature(nodeText(node, content)),
			Docstring: docstring(node, content),
		})

	case "variable_declarator":
		// const x = () => {} / function(){}
		nameNode := node.ChildByFieldName("name")
		valueNode := node.ChildByFieldName("value")
		if nameNode == nil || valueNode == nil {
			return
		}
		t := valueNode.Type()
		if t != "arrow_function" && t != "function" && t != "function_expression" {
			return
		}
		name := nodeText(nameNode, content)
		*out = append(*out, symbol.RawSymbol{
			Name: name, QualifiedName: name, Type: symbol.Function,
			StartLine: startLine(node), EndLine: endLine(node),
			Content: nodeText(node, content), Signature: truncateSignature(nodeText(valueNode, content)),
			Docstring: docstring(node.Parent(), content),
		})
	}
}
