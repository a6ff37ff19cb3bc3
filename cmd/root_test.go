package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildCmd_StatusPrintedToStdout(t *testing.T) {
	// GIVEN a small two-rank network plan on disk
	plan := `
seed: 7
ranks: 2
threads: 1
neurons: 4
connects:
  - sources: {from: 1, to: 2}
    targets: {from: 3, to: 4}
    conn: {rule: all_to_all}
    syn: {}
`
	planFile := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(planFile, []byte(plan), 0o644); err != nil {
		t.Fatalf("writing plan: %v", err)
	}
	planPath = planFile
	logLevel = "error"
	seed = -1
	bufferSize = 0
	sortConns = true

	// Capture stdout
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	// WHEN the build command runs
	buildCmd.Run(buildCmd, nil)

	// Restore stdout and read captured output
	_ = w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	output := buf.String()

	// THEN the per-rank status yaml must appear on stdout
	assert.Contains(t, output, "num_connections: 2", "per-rank connection count must be on stdout")
	assert.Contains(t, output, "min_delay_ms: 1", "calibrated extrema must be on stdout")
	assert.Contains(t, output, "mean_weight: 1", "connection stats must be on stdout")
}
