package main

import (
	"time"

	"github.com/jward/dtsynth"
	"github.com/jward/dtsynth/internal/decl"
)

// CLIResult is the top-level envelope for every command's output.
type CLIResult struct {
	Command string `json:"command" yaml:"command"`
	Results any    `json:"results" yaml:"results"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// CLISynthesis is the outcome of synth and of each watch cycle.
type CLISynthesis struct {
	RunID     string               `json:"run_id" yaml:"run_id"`
	Strategy  string               `json:"strategy" yaml:"strategy"`
	Events    int                  `json:"events" yaml:"events"`
	Calls     int                  `json:"calls" yaml:"calls"`
	Functions int                  `json:"functions" yaml:"functions"`
	Pending   []CLIFunction        `json:"pending,omitempty" yaml:"pending,omitempty"`
	Files     []dtsynth.FileOutput `json:"files" yaml:"files"`
	Written   []string             `json:"written,omitempty" yaml:"written,omitempty"`
	Recorded  bool                 `json:"recorded,omitempty" yaml:"recorded,omitempty"`
	Duration  string               `json:"duration" yaml:"duration"`
}

// CLIFunction identifies a traced function.
type CLIFunction struct {
	Name string `json:"name" yaml:"name"`
	File string `json:"file" yaml:"file"`
}

// CLIWorkspaceRun is the outcome of run.
type CLIWorkspaceRun struct {
	Dir          string       `json:"dir" yaml:"dir"`
	Instrumented []string     `json:"instrumented" yaml:"instrumented"`
	Written      []string     `json:"written,omitempty" yaml:"written,omitempty"`
	RunID        string       `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Synthesis    CLISynthesis `json:"synthesis" yaml:"synthesis"`
}

// CLICoverage is a coverage report with its percentage precomputed.
type CLICoverage struct {
	Root     string                 `json:"root" yaml:"root"`
	Declared int                    `json:"declared" yaml:"declared"`
	Observed int                    `json:"observed" yaml:"observed"`
	Percent  float64                `json:"percent" yaml:"percent"`
	Files    []dtsynth.FileCoverage `json:"files" yaml:"files"`
}

// CLIRun is a recorded run.
type CLIRun struct {
	ID        string    `json:"id" yaml:"id"`
	Strategy  string    `json:"strategy" yaml:"strategy"`
	Source    string    `json:"source" yaml:"source"`
	Status    string    `json:"status" yaml:"status"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	Events    int       `json:"events" yaml:"events"`
	Calls     int       `json:"calls" yaml:"calls"`
	Functions int       `json:"functions" yaml:"functions"`
	Pending   int       `json:"pending" yaml:"pending"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	Duration  string    `json:"duration" yaml:"duration"`
}

// CLIRunDetail is a recorded run with its declarations.
type CLIRunDetail struct {
	Run   CLIRun               `json:"run" yaml:"run"`
	Files []dtsynth.FileOutput `json:"files" yaml:"files"`
}

// CLIDeleted acknowledges history delete.
type CLIDeleted struct {
	RunID string `json:"run_id" yaml:"run_id"`
}

func toCLISynthesis(res *dtsynth.Result) CLISynthesis {
	out := CLISynthesis{
		RunID:     res.RunID,
		Strategy:  res.Strategy,
		Events:    res.Events,
		Calls:     res.Calls,
		Functions: len(res.Functions),
		Files:     res.Output(),
		Duration:  res.Duration.String(),
	}
	for _, id := range res.Pending {
		out.Pending = append(out.Pending, CLIFunction{Name: id.Name, File: id.File})
	}
	return out
}

func toCLICoverage(r *dtsynth.CoverageReport) CLICoverage {
	return CLICoverage{
		Root:     r.Root,
		Declared: r.Declared,
		Observed: r.Observed,
		Percent:  r.Percent(),
		Files:    r.Files,
	}
}

func toCLIRun(r *dtsynth.Run) CLIRun {
	return CLIRun{
		ID:        r.ID,
		Strategy:  r.Strategy,
		Source:    r.Source,
		Status:    r.Status,
		Error:     r.Error,
		Events:    r.Events,
		Calls:     r.Calls,
		Functions: r.Functions,
		Pending:   r.Pending,
		StartedAt: r.StartedAt,
		Duration:  r.FinishedAt.Sub(r.StartedAt).String(),
	}
}

func toCLIRunDetail(d *dtsynth.RunDetail) CLIRunDetail {
	out := CLIRunDetail{Run: toCLIRun(d.Run)}
	for _, f := range d.Files {
		fo := dtsynth.FileOutput{File: f.File, Path: decl.DefinitionPath(f.File)}
		for _, dl := range f.Declarations {
			fo.Declarations = append(fo.Declarations, dl.Text)
		}
		out.Files = append(out.Files, fo)
	}
	return out
}
