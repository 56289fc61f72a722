package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
)

// runCmd executes a subcommand built from fresh root options and returns
// its stdout.
func runCmd(t *testing.T, build func(*RootOptions) *cobra.Command, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := build(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
