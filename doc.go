// Package dtsynth synthesizes TypeScript ambient declarations for a
// JavaScript library from a dynamic trace of its test suite.
//
// # Pipeline
//
// A trace is a newline-delimited stream of njstrace entry and exit records.
// [Engine.Synthesize] runs three stages over it:
//
//  1. Reconstruct: match every exit with the entry on top of a call stack,
//     grouping completed calls by function identity (name, file) in the
//     order each function first completed.
//
//  2. Deduce: fold each function's calls through the configured strategy
//     into a union-typed signature. Deduction runs on a bounded worker pool
//     unless [WithParallel] is false.
//
//  3. Render: format every signature as one declaration line, grouped by
//     source file:
//
//     declare function f(arg0: string): string;
//
// # Usage
//
//	e, err := dtsynth.New("", dtsynth.WithStrategy("extended"))
//	if err != nil { ... }
//	defer e.Close()
//
//	res, err := e.SynthesizeFile(ctx, "instrumentation_output.txt")
//	for _, out := range res.Output() {
//		fmt.Println(out.Path, out.Declarations)
//	}
//
// # Strategies
//
// [Strategies] lists the available deduction strategies: simple (strings
// only), extended (every JSON shape, with element-typed arrays such as
// number[]), null and null-values (fixtures producing wrong declarations on
// purpose) and script (a user-supplied Risor classifier).
//
// # Run history
//
// When New is given a database path, [Engine.Record] persists a run with its
// calls and signatures, and [Engine.History] lists, shows and diffs runs.
//
// # Projects
//
// [Engine.RunWorkspace] drives a whole project: clone, install, instrument
// its tests, run them, synthesize and export the declarations next to the
// sources. [Engine.Coverage] reports declared functions the trace never
// observed.
package dtsynth
