package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"adastra/cmd/adastra/commands"
)

func writeScript(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "m.ad")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func newCLI(t *testing.T) (*bytes.Buffer, *bytes.Buffer, func(args ...string) error) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(bytes.NewBuffer(nil))
	root := commands.NewRoot(log)
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(errOut)
	return out, errOut, func(args ...string) error {
		root.SetArgs(args)
		return root.Execute()
	}
}

func TestRunPrintsReturnedValue(t *testing.T) {
	path := writeScript(t, `return 1 + 2;`)
	out, _, exec := newCLI(t)
	require.NoError(t, exec("run", path))
	require.Equal(t, "3\n", out.String())
}

func TestCheckReportsOkForValidSource(t *testing.T) {
	path := writeScript(t, `let x = 1; return x;`)
	out, _, exec := newCLI(t)
	require.NoError(t, exec("check", path))
	require.Contains(t, out.String(), "ok")
}

func TestCheckReportsDiagnosticsForBadSource(t *testing.T) {
	path := writeScript(t, `let x = ;`)
	_, errOut, exec := newCLI(t)
	require.Error(t, exec("check", path))
	require.NotEmpty(t, errOut.String())
}

func TestFmtPrintsCanonicalForm(t *testing.T) {
	path := writeScript(t, `let   x=1;return x;`)
	out, _, exec := newCLI(t)
	require.NoError(t, exec("fmt", path))
	require.Equal(t, "let x = 1;\nreturn x;\n", out.String())
}
