package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// DeclaredFunction is a named function found in source.
type DeclaredFunction struct {
	Name string
	Line int // 1-based
}

// functionNodes are the node types that introduce a function value.
var functionNodes = map[string]bool{
	"arrow_function":                true,
	"function":                      true,
	"function_expression":           true,
	"generator_function":            true,
	"generator_function_expression": true,
}

// skipDirs are never descended into by ScanDir.
var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"coverage":     true,
}

// DeclaredFunctions parses src as the language implied by path and returns
// every named function it declares, in source order and without duplicates.
// Recognized forms: function declarations, const/let/var bindings of function
// values, assignments such as exports.f = function() {}, object literal pairs
// and class methods.
func DeclaredFunctions(ctx context.Context, path string, src []byte) ([]DeclaredFunction, error) {
	langName, ok := LanguageForFile(path)
	if !ok {
		return nil, fmt.Errorf("runtime: unsupported source file %s", path)
	}
	lang, _ := ParserForLanguage(langName)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("runtime: parse %s: %w", path, err)
	}
	defer tree.Close()

	var out []DeclaredFunction
	seen := make(map[string]bool)
	collectFunctions(tree.RootNode(), src, &out, seen)
	return out, nil
}

func collectFunctions(n *sitter.Node, src []byte, out *[]DeclaredFunction, seen map[string]bool) {
	if n == nil {
		return
	}
	if name := functionName(n, src); name != "" && !seen[name] {
		seen[name] = true
		*out = append(*out, DeclaredFunction{Name: name, Line: int(n.StartPoint().Row) + 1})
	}
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		collectFunctions(n.NamedChild(i), src, out, seen)
	}
}

// functionName returns the name n binds to a function, or "".
func functionName(n *sitter.Node, src []byte) string {
	switch n.Type() {
	case "function_declaration", "generator_function_declaration":
		return content(n.ChildByFieldName("name"), src)
	case "variable_declarator":
		if isFunction(n.ChildByFieldName("value")) {
			return content(n.ChildByFieldName("name"), src)
		}
	case "assignment_expression":
		if !isFunction(n.ChildByFieldName("right")) {
			return ""
		}
		left := n.ChildByFieldName("left")
		if left == nil {
			return ""
		}
		switch left.Type() {
		case "identifier":
			return content(left, src)
		case "member_expression":
			return content(left.ChildByFieldName("property"), src)
		}
	case "pair":
		if isFunction(n.ChildByFieldName("value")) {
			return strings.Trim(content(n.ChildByFieldName("key"), src), `"'`)
		}
	case "method_definition":
		if name := content(n.ChildByFieldName("name"), src); name != "constructor" {
			return name
		}
	}
	return ""
}

func isFunction(n *sitter.Node) bool {
	return n != nil && functionNodes[n.Type()]
}

func content(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(src)
}

// ScanDir walks root and returns the declared functions of every supported
// source file, keyed by slash-separated path relative to root. Dependency
// and build output directories are skipped.
func ScanDir(ctx context.Context, root string) (map[string][]DeclaredFunction, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := LanguageForFile(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ScanFiles(ctx, root, paths)
}

// ScanFiles parses each of paths and returns their declared functions keyed
// by slash-separated path relative to root. Relative paths are taken to be
// relative to root. Unsupported files are skipped.
func ScanFiles(ctx context.Context, root string, paths []string) (map[string][]DeclaredFunction, error) {
	out := make(map[string][]DeclaredFunction, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		if _, ok := LanguageForFile(path); !ok {
			continue
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("runtime: read %s: %w", path, err)
		}
		fns, err := DeclaredFunctions(ctx, path, src)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil, err
		}
		out[filepath.ToSlash(rel)] = fns
	}
	return out, nil
}
