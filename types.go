package dtsynth

import (
	"github.com/jward/dtsynth/internal/decl"
	"github.com/jward/dtsynth/internal/store"
	"github.com/jward/dtsynth/internal/trace"
	"github.com/jward/dtsynth/internal/typing"
)

// Public type aliases for the internal types that appear in the Engine API.
// They are identical to the internal types; no conversion is needed.

type FunctionID = trace.FunctionID
type FunctionCall = trace.FunctionCall
type Signature = typing.Signature
type Type = typing.Type
type FileDeclarations = decl.FileDeclarations
type RenderOptions = decl.Options
type Run = store.Run
type StoredFileDeclarations = store.FileDeclarations
type StoredDeclaration = store.Declaration

// Error types returned (wrapped) by Synthesize. Match them with errors.As.

type MalformedTraceLineError = trace.MalformedTraceLineError
type TraceUnderflowError = trace.TraceUnderflowError
type UnbalancedTraceError = trace.UnbalancedTraceError
type UnsupportedValueError = typing.UnsupportedValueError
type DeductionError = typing.DeductionError
