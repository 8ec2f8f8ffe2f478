package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nishad/srafetch/internal/pipeline"
	"github.com/nishad/srafetch/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of cmd and its children to its default so
// tests sharing the package-level commands do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runCLI executes the root command against a fake archive.
func runCLI(t *testing.T, fa *testutil.FakeArchive, stdin string, args ...string) (string, error) {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("SRAFETCH_CONFIG", filepath.Join(dir, "missing.yaml"))
	t.Setenv("SRAFETCH_CONFIG_HOME", dir)
	t.Setenv("SRAFETCH_DATA_HOME", dir)
	t.Setenv("SRAFETCH_DB_PATH", filepath.Join(dir, "history.db"))
	t.Setenv("SRAFETCH_GEO_URL", fa.GEOURL())
	t.Setenv("SRAFETCH_ENA_URL", fa.ENAURL())
	t.Setenv("SRAFETCH_INTERVAL_MS", "1")
	t.Setenv("SRAFETCH_TIMEOUT_SECONDS", "5")

	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--quiet"}, args...))

	err := rootCmd.Execute()
	return out.String(), err
}

func TestResolveWritesAria2(t *testing.T) {
	fa := testutil.NewFakeArchive()
	defer fa.Close()

	out, err := runCLI(t, fa, "GSM2344754 liver\n")
	require.NoError(t, err)

	assert.Equal(t, "https://ftp.sra.ebi.ac.uk/vol1/fastq/SRR442/003/SRR4421243/SRR4421243.fastq.gz\n"+
		" checksum=md5=325f82703836a7cc6b5fa84687376e86\n"+
		" check-integrity=true\n"+
		" out=liver/SRR4421243.fastq.gz\n\n", out)
}

func TestResolveJSONFromArgs(t *testing.T) {
	fa := testutil.NewFakeArchive()
	defer fa.Close()

	out, err := runCLI(t, fa, "", "--json", "SRR000001")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "[\n"))
	assert.Equal(t, 3, strings.Count(out, `"run_acc": "SRR000001"`))
}

func TestResolveWritesOutputFile(t *testing.T) {
	fa := testutil.NewFakeArchive()
	defer fa.Close()

	dest := filepath.Join(t.TempDir(), "lists", "runs.tsv")
	out, err := runCLI(t, fa, "SRX2243567\n", "--format", "tsv", "--output", dest)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SRR4421243")
}

func TestResolveSkipsBadLines(t *testing.T) {
	fa := testutil.NewFakeArchive()
	defer fa.Close()

	out, err := runCLI(t, fa, "XYZ1\n\nSRX2243567\n")
	require.NoError(t, err, "bad lines are reported, not fatal")
	assert.Contains(t, out, "out=SRX2243567/SRR4421243/SRR4421243.fastq.gz")
}

func TestResolveFailOnError(t *testing.T) {
	fa := testutil.NewFakeArchive()
	defer fa.Close()

	_, err := runCLI(t, fa, "XYZ1\nSRX2243567\n", "--fail-on-error")
	assert.ErrorIs(t, err, errBatchFailed)
}

func TestResolveRejectsConflictingFormats(t *testing.T) {
	fa := testutil.NewFakeArchive()
	defer fa.Close()

	_, err := runCLI(t, fa, "SRR000001\n", "--json", "--format", "tsv")
	assert.Error(t, err)
	assert.Empty(t, fa.Requests())
}

func TestResolveRecordsHistory(t *testing.T) {
	fa := testutil.NewFakeArchive()
	defer fa.Close()

	_, err := runCLI(t, fa, "SRR000001\n", "--record")
	require.NoError(t, err)

	_, err = os.Stat(os.Getenv("SRAFETCH_DB_PATH"))
	assert.NoError(t, err)
}

func TestReadLinesKeepsLineNumbers(t *testing.T) {
	lines, err := readLines(strings.NewReader("SRR1 a \r\n\n# note\nGSM2\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"SRR1 a", "", "# note", "GSM2"}, lines)
}

func TestReadAccessions(t *testing.T) {
	args, err := readAccessions([]string{"SRR1", "GSM2 liver"}, "", strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, []string{"SRR1", "GSM2 liver"}, args)

	path, cleanup := testutil.TempFile(t, "acc.txt", "SRX1\nSRX2\n")
	defer cleanup()
	fromFile, err := readAccessions(nil, path, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, []string{"SRX1", "SRX2"}, fromFile)

	fromStdin, err := readAccessions(nil, "-", strings.NewReader("SRR9\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"SRR9"}, fromStdin)

	_, err = readAccessions(nil, filepath.Join(t.TempDir(), "nope.txt"), nil)
	assert.Error(t, err)
}

func TestDiagnosticsReportsCompletedPipelines(t *testing.T) {
	var buf bytes.Buffer
	d := newDiagnostics(&buf, false)

	res := &pipeline.Result{Outcome: pipeline.OutcomeOK}
	res.Accession.Code = "SRR000001"
	d.OnEvent(pipeline.Event{Type: pipeline.EventCompleted, Result: res})

	named := &pipeline.Result{Outcome: pipeline.OutcomeOK}
	named.Accession.Code = "GSM2344754"
	named.Accession.Name = "liver"
	d.OnEvent(pipeline.Event{Type: pipeline.EventCompleted, Result: named})

	assert.Equal(t, "Generated download info for SRR000001, name NA\n"+
		"Generated download info for GSM2344754, name liver\n", buf.String())

	buf.Reset()
	newDiagnostics(&buf, true).OnEvent(pipeline.Event{Type: pipeline.EventCompleted, Result: res})
	assert.Empty(t, buf.String())
}
