package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/bmgrep/internal/errors"
	"github.com/Aman-CERP/bmgrep/pkg/version"
)

// isolateEnv points HOME and the user config at temp directories, clears
// BMGREP_* variables and changes into an empty working directory, which is
// returned.
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, key := range []string{
		"BMGREP_THREADS", "BMGREP_STRATEGY", "BMGREP_FORMAT", "BMGREP_SOURCE",
		"BMGREP_RECURSIVE", "BMGREP_WATCH_DEBOUNCE", "BMGREP_WATCH_POLL", "BMGREP_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	wd := t.TempDir()
	t.Chdir(wd)
	return wd
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// run executes the root command with args and returns what it wrote.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCmd_NoArgs_ShowsHelp(t *testing.T) {
	isolateEnv(t)

	stdout, _, err := run(t)

	require.NoError(t, err)
	assert.Contains(t, stdout, "Boyer-Moore")
	assert.Contains(t, stdout, "bmgrep <pattern> <path>...")
}

func TestRootCmd_PatternOnly_IsValidationError(t *testing.T) {
	isolateEnv(t)

	_, _, err := run(t, "needle")

	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeInvalidInput, serrors.GetCode(err))
}

func TestRootCmd_UnknownFlag_IsValidationError(t *testing.T) {
	isolateEnv(t)

	_, _, err := run(t, "--no-such-flag", "needle", "a.txt")

	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeInvalidInput, serrors.GetCode(err))
}

func TestRootCmd_PatternAndPath_Searches(t *testing.T) {
	// Given: a file holding the pattern on line 2
	isolateEnv(t)
	writeFile(t, "a.txt", "first\nthe needle\n")

	// When: running without a subcommand
	stdout, _, err := run(t, "needle", "a.txt")

	// Then: the root command searches like 'bmgrep search'
	require.NoError(t, err)
	assert.Equal(t, "a.txt:2: the needle\n", stdout)
}

func TestRootCmd_Version(t *testing.T) {
	isolateEnv(t)

	stdout, _, err := run(t, "--version")

	require.NoError(t, err)
	assert.Equal(t, "bmgrep version "+version.Version+"\n", stdout)
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"search", "watch", "config", "logs", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"profile-cpu", "profile-mem", "profile-trace", "debug"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestExecute_PrintsFormattedError(t *testing.T) {
	isolateEnv(t)
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"needle"})
	cmd.SetOut(&bytes.Buffer{})
	var stderr bytes.Buffer

	err := execute(context.Background(), cmd, &stderr)

	require.Error(t, err)
	assert.Contains(t, stderr.String(), "Error: expected a pattern and at least one path")
	assert.Contains(t, stderr.String(), "Code: "+serrors.ErrCodeInvalidInput)
	assert.NotContains(t, stderr.String(), fatalDebugHint)
}

func TestExecute_FatalErrorSuggestsDebug(t *testing.T) {
	isolateEnv(t)
	debugMode = false
	cmd := &cobra.Command{
		Use: "bmgrep",
		RunE: func(*cobra.Command, []string) error {
			return serrors.New(serrors.ErrCodeWorkerStart, "could not start queue worker 1 of 4", nil)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetArgs([]string{})
	var stderr bytes.Buffer

	err := execute(context.Background(), cmd, &stderr)

	require.Error(t, err)
	assert.Contains(t, stderr.String(), "Code: "+serrors.ErrCodeWorkerStart)
	assert.Contains(t, stderr.String(), fatalDebugHint)
}

func TestRootCmd_ProfileCPU_WritesProfile(t *testing.T) {
	wd := isolateEnv(t)
	writeFile(t, "a.txt", "needle\n")
	profile := filepath.Join(wd, "cpu.prof")

	_, _, err := run(t, "--profile-cpu", profile, "needle", "a.txt")

	require.NoError(t, err)
	info, err := os.Stat(profile)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
