package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/automata/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the manifest as the compile command reports it.
type CompilationResult struct {
	SourceHash  string              `json:"source_hash"`
	Definitions []DefinitionSummary `json:"definitions"`
	Operations  []string            `json:"operations"`
}

// DefinitionSummary is one definition in build order.
type DefinitionSummary struct {
	Key          ir.DefinitionKey   `json:"key"`
	Dependencies []ir.DefinitionKey `json:"dependencies"`
	Hash         string             `json:"hash"`
	Text         string             `json:"text"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <source.cue>",
		Short: "Compile a source file to its manifest",
		Long: `Parse a CUE source file and list its definitions in build order,
together with the operations it declares. Nothing is built.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	manifest, text, err := CompileFile(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Compiled %s (%d bytes)", path, len(text))

	result, err := summarize(manifest, text)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	if opts.Output != "" {
		if err := writeManifestToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// summarize turns a manifest into its reported form.
func summarize(m *ir.Manifest, source string) (*CompilationResult, error) {
	result := &CompilationResult{
		SourceHash:  ir.SourceHash(source),
		Definitions: make([]DefinitionSummary, 0, len(m.Definitions)),
		Operations:  m.Operations,
	}
	if result.Operations == nil {
		result.Operations = []string{}
	}
	for _, def := range m.Definitions {
		hash, err := ir.DefinitionHash(def)
		if err != nil {
			return nil, err
		}
		deps := def.Dependencies
		if deps == nil {
			deps = []ir.DefinitionKey{}
		}
		result.Definitions = append(result.Definitions, DefinitionSummary{
			Key:          def.Key,
			Dependencies: deps,
			Hash:         hash,
			Text:         ir.NormalizeText(def.Text),
		})
	}
	return result, nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d definition(s), %d operation(s)\n\n",
		len(result.Definitions), len(result.Operations))

	if len(result.Definitions) > 0 {
		fmt.Fprintln(w, "Definitions (build order):")
		for _, def := range result.Definitions {
			if len(def.Dependencies) == 0 {
				fmt.Fprintf(w, "  %s\n", def.Key)
				continue
			}
			deps := make([]string, len(def.Dependencies))
			for i, d := range def.Dependencies {
				deps[i] = string(d)
			}
			fmt.Fprintf(w, "  %s: uses %s\n", def.Key, strings.Join(deps, ", "))
		}
		fmt.Fprintln(w)
	}

	if len(result.Operations) > 0 {
		fmt.Fprintln(w, "Operations:")
		for _, op := range result.Operations {
			fmt.Fprintf(w, "  %s\n", op)
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote manifest to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputLoadError reports a LoadError with its position when it has one.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	var details any
	if loadErr.Pos.IsValid() {
		details = map[string]any{
			"file":   loadErr.Pos.Filename(),
			"line":   loadErr.Pos.Line(),
			"column": loadErr.Pos.Column(),
		}
	}
	return outputCompileError(formatter, loadErr.Code, loadErr.Message, details)
}

// writeManifestToFile writes the compilation result as indented JSON.
func writeManifestToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
