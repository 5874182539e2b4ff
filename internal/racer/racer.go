// Package racer implements source-level completion fallback:
// a best-effort syntactic pass over VFS text using tree-sitter, used only
// when the compiler-derived path is unavailable.
//
// Grounded on Someblueman-codemap's ast_parser_helpers.go (parser
// construction, tree walking) and typescript_analyzer.go (the
// parse-then-walk-top-level-declarations shape), generalized from
// TypeScript exports/imports to Rust items.
package racer

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
)

var rustLanguage = sitter.NewLanguage(tree_sitter_rust.Language())

func newRustParser() (*sitter.Parser, error) {
	parser := sitter.NewParser()
	if err := parser.SetLanguage(rustLanguage); err != nil {
		parser.Close()
		return nil, err
	}
	return parser, nil
}

func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return node.Utf8Text(source)
}

// item is one top-level (or impl-body) declaration Racer can offer as a
// completion candidate or definition target.
type item struct {
	Name      string
	Kind      string // "fn", "struct", "enum", "trait", "const", "static", "mod", "type"
	ByteStart uint
	ByteEnd   uint
}

// collectItems walks root's named children (and one level into impl/trait
// bodies) gathering name-bearing declarations.
func collectItems(root *sitter.Node, source []byte) []item {
	var items []item
	if root == nil {
		return items
	}
	walkDecls(root, source, &items)
	return items
}

func walkDecls(node *sitter.Node, source []byte, out *[]item) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		kind := child.Kind()
		switch kind {
		case "function_item", "struct_item", "enum_item", "trait_item",
			"const_item", "static_item", "mod_item", "type_item":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				*out = append(*out, item{
					Name:      nodeText(nameNode, source),
					Kind:      shortKind(kind),
					ByteStart: child.StartByte(),
					ByteEnd:   child.EndByte(),
				})
			}
			if kind == "mod_item" || kind == "trait_item" {
				if body := child.ChildByFieldName("body"); body != nil {
					walkDecls(body, source, out)
				}
			}
		case "impl_item":
			if body := child.ChildByFieldName("body"); body != nil {
				walkDecls(body, source, out)
			}
		case "declaration_list", "source_file":
			walkDecls(child, source, out)
		}
	}
}

func shortKind(nodeKind string) string {
	switch nodeKind {
	case "function_item":
		return "fn"
	case "struct_item":
		return "struct"
	case "enum_item":
		return "enum"
	case "trait_item":
		return "trait"
	case "const_item":
		return "const"
	case "static_item":
		return "static"
	case "mod_item":
		return "mod"
	case "type_item":
		return "type"
	default:
		return nodeKind
	}
}
