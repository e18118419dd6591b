package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/knxcheck/knxcheck-go/pkg/dpt"
	"github.com/knxcheck/knxcheck-go/pkg/log"
)

const testRunID = "7f3c2a10-4b5e-4c6d-9a8b-1c2d3e4f5a6b"

var baseTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.klog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()
	return path
}

func telegramEvent(ts time.Time, dir log.Direction, service, dest string, data ...byte) log.Event {
	return log.Event{
		Timestamp: ts,
		RunID:     testRunID,
		Direction: dir,
		Layer:     log.LayerBus,
		Category:  log.CategoryTelegram,
		Telegram: &log.TelegramEvent{
			Source:      "1.1.20",
			Destination: dest,
			Service:     service,
			Data:        data,
		},
	}
}

func verdictEvent(ts time.Time, addr, result string) log.Event {
	return log.Event{
		Timestamp: ts,
		RunID:     testRunID,
		Layer:     log.LayerEngine,
		Category:  log.CategoryVerdict,
		Verdict: &log.VerdictEvent{
			Model:    "Kitchen light",
			ModelKey: 1,
			Element:  0,
			Row:      1,
			Column:   0,
			Address:  addr,
			Expected: dpt.Some(1),
			Result:   result,
			Elapsed:  40 * time.Millisecond,
		},
	}
}

func modelState(ts time.Time, name, state string) log.Event {
	return log.Event{
		Timestamp: ts,
		RunID:     testRunID,
		Layer:     log.LayerEngine,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityModel,
			Name:     name,
			NewState: state,
		},
	}
}

// sampleRun is one model with a write, its status push and a verdict.
func sampleRun() []log.Event {
	return []log.Event{
		modelState(baseTime, "Kitchen light", "RUNNING"),
		telegramEvent(baseTime.Add(time.Millisecond), log.DirectionOut, "WRITE", "1/1/1", 0x01),
		telegramEvent(baseTime.Add(40*time.Millisecond), log.DirectionIn, "WRITE", "1/1/2", 0x01),
		verdictEvent(baseTime.Add(41*time.Millisecond), "1/1/2", "SUCCESS"),
		modelState(baseTime.Add(50*time.Millisecond), "Kitchen light", "FINISHED"),
	}
}
