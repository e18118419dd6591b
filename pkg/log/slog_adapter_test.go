package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/knxcheck/knxcheck-go/pkg/dpt"
)

func logOne(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterTelegram(t *testing.T) {
	entry := logOne(t, telegramEvent("run-9", "1/1/2"))

	if entry["dst"] != "1/1/2" {
		t.Errorf("dst = %v", entry["dst"])
	}
	if entry["service"] != "WRITE" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry["run_id"] != "run-9" {
		t.Errorf("run_id = %v", entry["run_id"])
	}
	if entry["layer"] != "BUS" {
		t.Errorf("layer = %v", entry["layer"])
	}
}

func TestSlogAdapterVerdict(t *testing.T) {
	entry := logOne(t, Event{
		Timestamp: time.Now(),
		Layer:     LayerEngine,
		Category:  CategoryVerdict,
		Verdict: &VerdictEvent{
			Model:    "Kitchen",
			Row:      2,
			Address:  "1/1/2",
			Expected: dpt.Some(1),
			Result:   "RESPONSE",
			Elapsed:  150 * time.Millisecond,
		},
	})

	if entry["result"] != "RESPONSE" {
		t.Errorf("result = %v", entry["result"])
	}
	if entry["expected"] != "1" {
		t.Errorf("expected = %v", entry["expected"])
	}
	if entry["row"] != float64(2) {
		t.Errorf("row = %v", entry["row"])
	}
	if _, ok := entry["elapsed"]; !ok {
		t.Error("elapsed missing")
	}
}

func TestSlogAdapterStateAndError(t *testing.T) {
	entry := logOne(t, Event{
		Layer:       LayerEngine,
		Category:    CategoryState,
		StateChange: &StateChangeEvent{Entity: StateEntityModel, Name: "Kitchen", OldState: "IDLE", NewState: "RUNNING"},
	})
	if entry["entity"] != "MODEL" || entry["new_state"] != "RUNNING" || entry["name"] != "Kitchen" {
		t.Errorf("state entry = %v", entry)
	}

	entry = logOne(t, Event{
		Layer:    LayerBus,
		Category: CategoryError,
		Error:    &ErrorEventData{Layer: LayerBus, Message: "not connected", Context: "write 1/1/1"},
	})
	if entry["error_msg"] != "not connected" || entry["error_context"] != "write 1/1/1" {
		t.Errorf("error entry = %v", entry)
	}
}

func TestEventEnumStrings(t *testing.T) {
	if DirectionOut.String() != "OUT" || Direction(9).String() != "UNKNOWN" {
		t.Error("Direction.String")
	}
	if LayerEngine.String() != "ENGINE" || Layer(9).String() != "UNKNOWN" {
		t.Error("Layer.String")
	}
	if CategoryError.String() != "ERROR" || Category(9).String() != "UNKNOWN" {
		t.Error("Category.String")
	}
	if StateEntityRun.String() != "RUN" || StateEntity(9).String() != "UNKNOWN" {
		t.Error("StateEntity.String")
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	in := telegramEvent("run-1", "3/0/5")
	data, err := EncodeEvent(in)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	out, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if !out.Timestamp.Equal(in.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", out.Timestamp, in.Timestamp)
	}
	if out.Telegram == nil || !bytes.Equal(out.Telegram.Data, in.Telegram.Data) || !out.Telegram.Compact {
		t.Errorf("Telegram = %+v", out.Telegram)
	}
	if _, err := DecodeEvent([]byte{0xFF}); err == nil {
		t.Error("expected error for garbage input")
	}
}
