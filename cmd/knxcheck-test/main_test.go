package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	knxlog "github.com/knxcheck/knxcheck-go/pkg/log"
)

const testInstallation = "../../internal/functest/loader/testdata/installation.yaml"

func testOptions(t *testing.T, models string) (options, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return options{
		models:       models,
		installation: testInstallation,
		timeout:      200 * time.Millisecond,
		protocolLog:  filepath.Join(t.TempDir(), "run.klog"),
		outputFormat: "json",
		stdout:       &out,
	}, &out
}

func TestRunFailingModelFlushesCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "silent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Silent light
elements:
  - command: {type: 1, address: 1/1/1, values: [true]}
    feedbacks:
      - {type: 1, address: 3/3/3, values: [true]}
`), 0644))

	opts, out := testOptions(t, path)
	assert.Equal(t, 1, run(opts))
	assert.Contains(t, out.String(), "Silent light")

	reader, err := knxlog.NewReader(opts.protocolLog)
	require.NoError(t, err)
	defer reader.Close()
	events, err := reader.ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, events)

	var idle, verdicts int
	for _, ev := range events {
		if sc := ev.StateChange; sc != nil && sc.Entity == knxlog.StateEntityRun && sc.NewState == "IDLE" {
			idle++
		}
		if ev.Verdict != nil {
			assert.Equal(t, "FAILURE", ev.Verdict.Result)
			verdicts++
		}
	}
	assert.Equal(t, 1, idle)
	assert.Equal(t, 1, verdicts)
}

func TestRunPassingModel(t *testing.T) {
	opts, _ := testOptions(t, "../../internal/functest/loader/testdata/models/lights.yaml")
	opts.pattern = "Kitchen light"
	opts.timeout = time.Second
	assert.Equal(t, 0, run(opts))
}

func TestRunMissingModels(t *testing.T) {
	opts, _ := testOptions(t, filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, 1, run(opts))
}
