package decl

import (
	"strings"

	"github.com/jward/dtsynth/internal/typing"
)

// FileDeclarations holds the signatures deduced for one source file, in the
// order their functions were first encountered.
type FileDeclarations struct {
	File       string
	Signatures []*typing.Signature
}

// Lines renders every signature of the file with o.
func (f FileDeclarations) Lines(o Options) []string {
	out := make([]string, len(f.Signatures))
	for i, sig := range f.Signatures {
		out[i] = o.Render(sig)
	}
	return out
}

// Text renders the file's declaration artifact: one line per signature,
// each newline-terminated.
func (f FileDeclarations) Text(o Options) string {
	var b strings.Builder
	for _, line := range f.Lines(o) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Grouper buckets signatures by source file, keeping first-encountered order
// for both files and signatures.
type Grouper struct {
	files  []string
	byFile map[string][]*typing.Signature
}

// NewGrouper returns an empty Grouper.
func NewGrouper() *Grouper {
	return &Grouper{byFile: make(map[string][]*typing.Signature)}
}

// Add appends sig to the bucket of file.
func (g *Grouper) Add(file string, sig *typing.Signature) {
	if _, ok := g.byFile[file]; !ok {
		g.files = append(g.files, file)
	}
	g.byFile[file] = append(g.byFile[file], sig)
}

// Files returns the grouped output.
func (g *Grouper) Files() []FileDeclarations {
	out := make([]FileDeclarations, 0, len(g.files))
	for _, f := range g.files {
		out = append(out, FileDeclarations{File: f, Signatures: g.byFile[f]})
	}
	return out
}
