package extract

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codeintel/engine/internal/symbol"
)

func walkForSymbols(node *sitter.Node, content []byte, lang string, out *[]symbol.RawSymbol) {
	switch lang {
	case "go":
		extractGoSymbol(node, content, out)
	case "javascript", "typescript":
		extractJSSymbol(node, content, out)
	case "python":
		extractPythonSymbol(node, content, out)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkForSymbols(node.Child(i), content, lang, out)
	}
}

func extractGoSymbol(node *sitter.Node, content []byte, out *[]symbol.RawSymbol) {
	switch node.Type() {
	case "function_declaration":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name := nodeText(nameNode, content)
		*out = append(*out, symbol.RawSymbol{
			Name:          name,
			QualifiedName: name,
			Type:          symbol.Function,
			StartLine:     startLine(node),
			EndLine:       endLine(node),
			Content:       nodeText(node, content),
			Signature:     truncateSignature(nodeText(node, content)),
			Docstring:     docstring(node, content),
		})

	case "method_declaration":
		nameNode := node.ChildByFieldName("name")
		receiverNode := node.ChildByFieldName("receiver")
		if nameNode == nil {
			return
		}
		name := nodeText(nameNode, content)
		receiver := ""
		if receiverNode != nil {
			for i := 0; i < int(receiverNode.ChildCount()); i++ {
				child := receiverNode.Child(i)
				if child.Type() == "type_identifier" || child.Type() == "pointer_type" {
					receiver = nodeText(child, content)
					break
				}
			}
		}
		qualified := name
		if receiver != "" {
			qualified = receiver + "." + name
		}
		*out = append(*out, symbol.RawSymbol{
			Name:          name,
			QualifiedName: qualified,
			Type:          symbol.Method,
			StartLine:     startLine(node),
			EndLine:       endLine(node),
			Content:       nodeText(node, content),
			Signature:     truncateSignature(nodeText(node, content)),
			Docstring:     docstring(node, content),
		})

	case "type_declaration":
		for i := 0; i < int(node.ChildCount()); i++ {
			spec := node.Child(i)
			if spec.Type() != "type_spec" {
				continue
			}
			nameNode := spec.ChildByFieldName("name")
			typeNode := spec.ChildByFieldName("type")
			if nameNode == nil {
				continue
			}
			name := nodeText(nameNode, content)
			kind := symbol.TypeAlias
			if typeNode != nil {
				switch typeNode.Type() {
				case "struct_type":
					kind = symbol.Class
				case "interface_type":
					kind = symbol.Interface
				}
			}
			*out = append(*out, symbol.RawSymbol{
				Name:          name,
				QualifiedName: name,
				Type:          kind,
				StartLine:     startLine(spec),
				EndLine:       endLine(spec),
				Content:       nodeText(spec, content),
				Docstring:     docstring(node, content),
			})
		}
	}
}
