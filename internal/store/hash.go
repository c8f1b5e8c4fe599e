package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// ComputeSignatureHash computes a deterministic hash from a function's
// deduced signature. Covers: name, file, every argument position with its
// type union, and the return union. Call counts and argument values do NOT
// affect the hash.
func ComputeSignatureHash(name, file string, argTypes map[int][]string, returnTypes []string) string {
	h := sha256.New()

	// Core identity.
	fmt.Fprintf(h, "name:%s\n", name)
	fmt.Fprintf(h, "file:%s\n", file)

	// Arguments, sorted by position.
	positions := make([]int, 0, len(argTypes))
	for pos := range argTypes {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	for _, pos := range positions {
		fmt.Fprintf(h, "arg:%d:%s\n", pos, sortedJoin(argTypes[pos]))
	}

	fmt.Fprintf(h, "return:%s\n", sortedJoin(returnTypes))

	return fmt.Sprintf("%x", h.Sum(nil))
}

func sortedJoin(names []string) string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}
