// Package decl renders deduced signatures as TypeScript ambient declarations
// and groups them by source file.
package decl

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jward/dtsynth/internal/typing"
)

// Options adjusts rendering. The zero value renders the plain form
// `declare function f(arg0: string): string;`.
type Options struct {
	// Export prefixes each declaration with "export ".
	Export bool
	// MarkOptional renders positions supplied by fewer than all calls as
	// optional, along with every position after the first optional one.
	MarkOptional bool
}

// Render formats sig with default options.
func Render(sig *typing.Signature) string {
	return Options{}.Render(sig)
}

// Render formats sig as a single declaration line. Output depends only on
// the contents of sig, never on map iteration order.
//
// Render panics if sig has no return types; a deduced signature always has
// at least one.
func (o Options) Render(sig *typing.Signature) string {
	if sig.ReturnTypes.Len() == 0 {
		panic(fmt.Sprintf("decl: signature %q has no return types", sig.Name))
	}

	positions := sig.Positions()
	args := make([]string, 0, len(positions))
	optional := false
	for _, pos := range positions {
		if o.MarkOptional && sig.Optional(pos) {
			optional = true
		}
		marker := ""
		if optional {
			marker = "?"
		}
		args = append(args, fmt.Sprintf("arg%d%s: %s", pos, marker, union(sig.ArgTypes[pos])))
	}

	prefix := "declare function "
	if o.Export {
		prefix = "export " + prefix
	}
	return prefix + sig.Name + "(" + strings.Join(args, ", ") + "): " + union(sig.ReturnTypes) + ";"
}

func union(set *typing.TypeSet) string {
	names := set.Names()
	for i, n := range names {
		names[i] = strings.ToLower(n)
	}
	return strings.Join(names, "|")
}

// DefinitionPath returns the declaration file for a source file:
// lib/index.js becomes lib/index.d.ts.
func DefinitionPath(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file)) + ".d.ts"
}
