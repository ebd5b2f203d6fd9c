package cmd

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/bmgrep/internal/errors"
)

func sortedLines(s string) []string {
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	sort.Strings(lines)
	return lines
}

func TestSearchCmd_Strategies(t *testing.T) {
	for _, strategy := range []string{"queue", "static", "single"} {
		t.Run(strategy, func(t *testing.T) {
			// Given: two files with one match each
			isolateEnv(t)
			writeFile(t, "a.txt", "needle in a\n")
			writeFile(t, "b.txt", "nothing\nneedle in b\n")

			// When: searching with the strategy
			stdout, _, err := run(t, "search", "-s", strategy, "-j", "2", "needle", "a.txt", "b.txt")

			// Then: both records are printed
			require.NoError(t, err)
			assert.Equal(t, []string{"a.txt:1: needle in a", "b.txt:2: needle in b"}, sortedLines(stdout))
		})
	}
}

func TestSearchCmd_StaticKeepsInputOrder(t *testing.T) {
	isolateEnv(t)
	writeFile(t, "z.txt", "needle z\n")
	writeFile(t, "a.txt", "needle a\n")

	stdout, _, err := run(t, "search", "-s", "static", "-j", "2", "needle", "z.txt", "a.txt")

	require.NoError(t, err)
	assert.Equal(t, "z.txt:1: needle z\na.txt:1: needle a\n", stdout)
}

func TestSearchCmd_NoMatch_IsNotAnError(t *testing.T) {
	isolateEnv(t)
	writeFile(t, "a.txt", "haystack\n")

	stdout, _, err := run(t, "search", "needle", "a.txt")

	require.NoError(t, err)
	assert.Empty(t, stdout)
}

func TestSearchCmd_MissingFile_IsSkipped(t *testing.T) {
	isolateEnv(t)
	writeFile(t, "a.txt", "needle\n")

	stdout, stderr, err := run(t, "search", "--stats", "needle", "missing.txt", "a.txt")

	require.NoError(t, err)
	assert.Equal(t, "a.txt:1: needle\n", stdout)
	assert.Contains(t, stderr, "1 skipped")
}

func TestSearchCmd_OneThreadWithQueue_IsRejected(t *testing.T) {
	isolateEnv(t)
	writeFile(t, "a.txt", "needle\n")

	_, _, err := run(t, "search", "-j", "1", "needle", "a.txt")

	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeInvalidThreads, serrors.GetCode(err))
}

func TestSearchCmd_OneThreadWithSingle_IsAccepted(t *testing.T) {
	isolateEnv(t)
	writeFile(t, "a.txt", "needle\n")

	_, _, err := run(t, "search", "-j", "1", "-s", "single", "needle", "a.txt")

	assert.NoError(t, err)
}

func TestSearchCmd_DirectoryWithoutRecursive_NoFiles(t *testing.T) {
	isolateEnv(t)
	writeFile(t, "dir/a.txt", "needle\n")

	_, _, err := run(t, "search", "needle", "dir")

	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeNoFiles, serrors.GetCode(err))
}

func TestSearchCmd_Recursive_WithExclude(t *testing.T) {
	isolateEnv(t)
	writeFile(t, "dir/a.txt", "needle\n")
	writeFile(t, "dir/b.log", "needle\n")
	writeFile(t, "dir/node_modules/c.txt", "needle\n")

	stdout, _, err := run(t, "search", "-r", "-s", "single", "--exclude", "*.log", "needle", "dir")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join("dir", "a.txt")+":1: needle\n", stdout)
}

func TestSearchCmd_CustomFormat(t *testing.T) {
	isolateEnv(t)
	writeFile(t, "a.txt", "x\nneedle\n")

	stdout, _, err := run(t, "search", "-s", "single", "--format", "%s(%d) ", "needle", "a.txt")

	require.NoError(t, err)
	assert.Equal(t, "a.txt(2) needle\n", stdout)
}

func TestSearchCmd_InvalidFormat(t *testing.T) {
	isolateEnv(t)
	writeFile(t, "a.txt", "needle\n")

	_, _, err := run(t, "search", "--format", "%d only", "needle", "a.txt")

	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeInvalidFormat, serrors.GetCode(err))
}

func TestSearchCmd_MmapSource(t *testing.T) {
	isolateEnv(t)
	writeFile(t, "a.txt", "needle\n")

	stdout, _, err := run(t, "search", "--source", "mmap", "-s", "single", "needle", "a.txt")

	require.NoError(t, err)
	assert.Equal(t, "a.txt:1: needle\n", stdout)
}

func TestSearchCmd_ProjectConfigApplies(t *testing.T) {
	// Given: a project config selecting a custom format
	isolateEnv(t)
	writeFile(t, ".bmgrep.yaml", "search:\n  strategy: single\n  format: \"[%s#%d] \"\n")
	writeFile(t, "a.txt", "needle\n")

	// When: searching without flags
	stdout, _, err := run(t, "search", "needle", "a.txt")

	// Then: the configured format is used
	require.NoError(t, err)
	assert.Equal(t, "[a.txt#1] needle\n", stdout)
}

func TestSearchCmd_FlagOverridesEnv(t *testing.T) {
	isolateEnv(t)
	t.Setenv("BMGREP_STRATEGY", "static")
	t.Setenv("BMGREP_THREADS", "1")
	writeFile(t, "a.txt", "needle\n")

	// static with one thread is rejected, so success proves the flag won
	_, _, err := run(t, "search", "-s", "single", "needle", "a.txt")

	assert.NoError(t, err)
}

func TestSearchCmd_OutputFile(t *testing.T) {
	// Given: an output file with old content
	wd := isolateEnv(t)
	writeFile(t, "a.txt", "needle\n")
	out := filepath.Join(wd, "out.txt")
	writeFile(t, out, "old\n")

	// When: searching with -o
	stdout, _, err := run(t, "search", "-o", out, "needle", "a.txt")

	// Then: matches go to the truncated file, not stdout
	require.NoError(t, err)
	assert.Empty(t, stdout)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "a.txt:1: needle\n", string(data))
}

func TestSearchCmd_OutputFile_Append(t *testing.T) {
	wd := isolateEnv(t)
	writeFile(t, "a.txt", "needle\n")
	out := filepath.Join(wd, "out.txt")
	writeFile(t, out, "old\n")

	_, _, err := run(t, "search", "-o", out, "--append", "needle", "a.txt")

	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "old\na.txt:1: needle\n", string(data))
}

func TestSearchCmd_Stats(t *testing.T) {
	isolateEnv(t)
	writeFile(t, "a.txt", "needle needle\n")

	_, stderr, err := run(t, "search", "--stats", "needle", "a.txt")

	require.NoError(t, err)
	assert.Contains(t, stderr, "matches  2")
	assert.Contains(t, stderr, "files    1 (1 searched)")
	assert.Contains(t, stderr, "elapsed")
}

func TestSearchCmd_TooFewArgs(t *testing.T) {
	isolateEnv(t)

	_, _, err := run(t, "search", "needle")

	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeInvalidInput, serrors.GetCode(err))
}

func TestSearchCmd_ProjectConfigFromParent(t *testing.T) {
	// Given: a project config one directory above the working directory
	wd := isolateEnv(t)
	writeFile(t, filepath.Join(wd, ".bmgrep.yaml"), "search:\n  strategy: single\n  format: \"%s@%d \"\n")
	writeFile(t, filepath.Join(wd, "sub", "a.txt"), "needle\n")
	t.Chdir(filepath.Join(wd, "sub"))

	// When: searching from the subdirectory
	stdout, _, err := run(t, "search", "needle", "a.txt")

	// Then: the parent's config applies
	require.NoError(t, err)
	assert.Equal(t, "a.txt@1 needle\n", stdout)
}
