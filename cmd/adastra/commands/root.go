// Package commands holds the cobra command tree for cmd/adastra,
// grounded on the teacher's cmd/sentra/commands package layout (one file
// per subcommand) but built on github.com/spf13/cobra rather than the
// teacher's hand-rolled switch over os.Args.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"adastra/internal/analyzer"
	"adastra/internal/compiler"
	"adastra/internal/errs"
	"adastra/internal/formatter"
	"adastra/internal/hostabi"
	"adastra/internal/parser"
	"adastra/internal/types"
	"adastra/internal/vm"
)

const version = "0.1.0"

// NewRoot builds the top-level command tree. log is shared by every
// subcommand for structured diagnostics (spec.md's ambient logging stack,
// §ambient CLI).
func NewRoot(log *logrus.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:     "adastra",
		Short:   "Ad Astra embeddable scripting engine — reference consumer CLI",
		Version: version,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(log), newFmtCmd(log), newCheckCmd(log))
	return root
}

// coreEngine is the minimal frozen Host + Core every subcommand needs to
// parse/compile/execute a module; no host package is registered beyond the
// Core primitives, since this binary is a reference consumer, not a
// product runtime (spec.md §1).
func coreEngine() (*types.Core, map[string]types.Cell, error) {
	host := hostabi.NewHost()
	core, err := types.RegisterCore(host.Registry)
	if err != nil {
		return nil, nil, err
	}
	host.Freeze()
	return core, host.Globals(core), nil
}

func readSource(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func printDiagnostics(cmd *cobra.Command, path string, diags []errs.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %s [%s]\n", path, d.Severity, d.Message, d.Code)
	}
}

func useColor(cmd *cobra.Command) bool {
	f, ok := cmd.ErrOrStderr().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func compileModule(moduleID, src string) (*compiler.FunctionProto, []errs.Diagnostic) {
	pr := parser.Parse(moduleID, src)
	ar := analyzer.Analyze(moduleID, pr.Stmts, errs.DepthDeepSemantic)
	diags := append(append([]errs.Diagnostic{}, pr.Diagnostics...), ar.Diagnostics...)
	proto, compileDiags := compiler.Compile(moduleID, pr.Stmts)
	diags = append(diags, compileDiags...)
	return proto, diags
}

func hasErrors(diags []errs.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == errs.SeverityError {
			return true
		}
	}
	return false
}

func newRunCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Parse, compile and execute a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			src, err := readSource(path)
			if err != nil {
				return err
			}
			proto, diags := compileModule(path, src)
			printDiagnostics(cmd, path, diags)
			if hasErrors(diags) {
				return fmt.Errorf("%s: compilation failed", path)
			}
			core, globals, err := coreEngine()
			if err != nil {
				return err
			}
			result, err := vm.Run(context.Background(), core, globals, proto)
			if err != nil {
				log.WithField("module", path).Error(err)
				return err
			}
			if result.IsValid() && result.NilTest() {
				fmt.Fprintln(cmd.OutOrStdout(), result.Display())
			}
			return nil
		},
	}
}

func newCheckCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Report diagnostics without executing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			src, err := readSource(path)
			if err != nil {
				return err
			}
			pr := parser.Parse(path, src)
			ar := analyzer.Analyze(path, pr.Stmts, errs.DepthDeepSemantic)
			diags := append(append([]errs.Diagnostic{}, pr.Diagnostics...), ar.Diagnostics...)
			printDiagnostics(cmd, path, diags)
			if hasErrors(diags) {
				return fmt.Errorf("%s: %d error(s)", path, countErrors(diags))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
			return nil
		},
	}
}

func newFmtCmd(log *logrus.Logger) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "fmt <file>",
		Short: "Pretty-print a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			src, err := readSource(path)
			if err != nil {
				return err
			}
			pr := parser.Parse(path, src)
			if len(pr.Diagnostics) > 0 {
				printDiagnostics(cmd, path, pr.Diagnostics)
				return fmt.Errorf("%s: cannot format a file with syntax errors", path)
			}
			out := formatter.NewFormatter().Format(pr.Stmts)
			if write {
				return os.WriteFile(path, []byte(out), 0o644)
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write result to source file instead of stdout")
	return cmd
}

func countErrors(diags []errs.Diagnostic) int {
	n := 0
	for _, d := range diags {
		if d.Severity == errs.SeverityError {
			n++
		}
	}
	return n
}
