package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jward/dtsynth"
)

// formatFilesText prints each declaration file under a comment header
// naming its path, separated by blank lines.
func formatFilesText(w io.Writer, files []dtsynth.FileOutput) {
	for i, f := range files {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "// %s\n", f.Path)
		for _, line := range f.Declarations {
			fmt.Fprintln(w, line)
		}
	}
}

// formatSynthesisText prints the declarations followed by what was written
// or recorded.
func formatSynthesisText(w io.Writer, s CLISynthesis) {
	formatFilesText(w, s.Files)
	for _, path := range s.Written {
		fmt.Fprintf(w, "wrote %s\n", path)
	}
	if s.Recorded {
		fmt.Fprintf(w, "recorded run %s\n", s.RunID)
	}
}

func formatWorkspaceRunText(w io.Writer, r CLIWorkspaceRun) {
	fmt.Fprintf(w, "Workspace: %s\n", r.Dir)
	fmt.Fprintf(w, "Instrumented: %d test files\n", len(r.Instrumented))
	fmt.Fprintf(w, "Functions: %d (%d calls, %d events)\n", r.Synthesis.Functions, r.Synthesis.Calls, r.Synthesis.Events)
	for _, path := range r.Written {
		fmt.Fprintf(w, "wrote %s\n", path)
	}
	if r.RunID != "" {
		fmt.Fprintf(w, "recorded run %s\n", r.RunID)
	}
}

// formatCoverageText prints per-file coverage as aligned columns.
func formatCoverageText(w io.Writer, c CLICoverage) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tDECLARED\tOBSERVED\tMISSING")
	for _, f := range c.Files {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", f.File, len(f.Declared), len(f.Observed), strings.Join(f.Missing, ", "))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d of %d declared functions observed (%.1f%%)\n", c.Observed, c.Declared, c.Percent)
}

// formatRunsText prints recorded runs as aligned columns.
func formatRunsText(w io.Writer, runs []CLIRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTRATEGY\tSTATUS\tFUNCTIONS\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Strategy, r.Status, r.Functions, r.Source)
	}
	tw.Flush()
}

func formatRunDetailText(w io.Writer, d CLIRunDetail) {
	fmt.Fprintf(w, "Run: %s\n", d.Run.ID)
	fmt.Fprintf(w, "Source: %s\n", d.Run.Source)
	fmt.Fprintf(w, "Strategy: %s\n", d.Run.Strategy)
	fmt.Fprintf(w, "Status: %s\n", d.Run.Status)
	if d.Run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", d.Run.Error)
	}
	fmt.Fprintf(w, "Functions: %d (%d calls, %d events, %d pending)\n",
		d.Run.Functions, d.Run.Calls, d.Run.Events, d.Run.Pending)
	if len(d.Files) > 0 {
		fmt.Fprintln(w)
		formatFilesText(w, d.Files)
	}
}

// formatChangesText prints a run diff as aligned columns.
func formatChangesText(w io.Writer, changes []dtsynth.Change) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANGE\tFUNCTION\tFILE")
	for _, c := range changes {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Kind, c.Name, c.File)
	}
	tw.Flush()
}

func formatStrategiesText(w io.Writer, infos []dtsynth.StrategyInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION")
	for _, s := range infos {
		fmt.Fprintf(tw, "%s\t%s\n", s.Name, s.Description)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLISynthesis:
		formatSynthesisText(w, v)
	case CLIWorkspaceRun:
		formatWorkspaceRunText(w, v)
	case CLICoverage:
		formatCoverageText(w, v)
	case []CLIRun:
		formatRunsText(w, v)
	case CLIRunDetail:
		formatRunDetailText(w, v)
	case []dtsynth.Change:
		formatChangesText(w, v)
	case []dtsynth.StrategyInfo:
		formatStrategiesText(w, v)
	case CLIDeleted:
		fmt.Fprintf(w, "deleted run %s\n", v.RunID)
	case nil:
		// No output for nil results.
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// encodeResult writes result as JSON or YAML.
func encodeResult(w io.Writer, format string, result CLIResult) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputResult writes result to the command's stdout in the selected format.
func (app *cli) outputResult(cmd *cobra.Command, result CLIResult) error {
	if app.format == "text" {
		return outputResultText(cmd.OutOrStdout(), result)
	}
	return encodeResult(cmd.OutOrStdout(), app.format, result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON and YAML mode the error is written to
// stdout as a CLIResult envelope. In text mode it goes to stderr.
func (app *cli) outputError(cmd *cobra.Command, command string, err error) error {
	app.errorHandled = true
	if app.format == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	_ = encodeResult(cmd.OutOrStdout(), app.format, CLIResult{
		Command: command,
		Error:   err.Error(),
	})
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"text", "json", "yaml"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, ", "))
}
