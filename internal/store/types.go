package store

import "time"

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

type Run struct {
	ID         string
	Strategy   string
	Source     string
	Status     string
	Error      string
	Events     int
	Calls      int
	Functions  int
	Pending    int
	StartedAt  time.Time
	FinishedAt time.Time
}

type Function struct {
	ID      int64
	RunID   string
	Name    string
	File    string
	Ordinal int
}

type Call struct {
	ID          int64
	FunctionID  int64
	Seq         int
	Args        map[int]any
	ReturnValue any
}

// Signature is the persisted form of a deduced signature. Type names are
// stored as their declaration spellings.
type Signature struct {
	ID            int64
	FunctionID    int64
	ArgTypes      map[int][]string
	ReturnTypes   []string
	Declaration   string
	SignatureHash string
}

// FunctionKey identifies a function across runs.
type FunctionKey struct {
	Name string
	File string
}

// Declaration is one rendered line read back from a run.
type Declaration struct {
	Name          string
	Text          string
	SignatureHash string
}

// FileDeclarations groups a run's declarations by source file.
type FileDeclarations struct {
	File         string
	Declarations []Declaration
}
