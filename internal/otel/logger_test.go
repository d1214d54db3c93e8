package otel

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestEmitWritesValidJSONL(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Emit(Event{Kind: KindReconcilePass, Level: LevelInfo, Comp: "reconcile", Hidden: 2, Augmented: 1})
	l.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["kind"] != "reconcile.pass" {
		t.Errorf("expected kind=reconcile.pass, got %v", decoded["kind"])
	}
	if decoded["hidden"] != float64(2) {
		t.Errorf("expected hidden=2, got %v", decoded["hidden"])
	}
	if _, ok := decoded["skipped"]; ok {
		t.Error("zero skipped should be omitted")
	}
}

func TestEmitSetsTimeAndSessionID(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	before := time.Now()
	l.Emit(Event{Kind: KindStartup})
	l.Close()
	after := time.Now()

	var ev Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Time.Before(before) || ev.Time.After(after) {
		t.Errorf("time %v not in [%v, %v]", ev.Time, before, after)
	}
	if len(ev.SessionID) != 16 {
		t.Errorf("session_id should be 16 hex chars, got %q", ev.SessionID)
	}
	if ev.SessionID != l.SessionID() {
		t.Errorf("session id mismatch: %q vs %q", ev.SessionID, l.SessionID())
	}
}

func TestDurToMs(t *testing.T) {
	data, err := json.Marshal(Event{Kind: KindWatchFlush, Dur: 1500 * time.Microsecond})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["dur_ms"] != 1.5 {
		t.Errorf("expected dur_ms=1.5, got %v", decoded["dur_ms"])
	}
}

func TestConcurrentEmit(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Info(KindWatchNotify, "watch", "tick")
			}
		}()
	}
	wg.Wait()
	l.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if uint64(len(lines))+l.Dropped() != 400 {
		t.Errorf("expected 400 written+dropped, got %d+%d", len(lines), l.Dropped())
	}
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	l := NewNullLogger()
	l.Close()
	l.Close() // idempotent

	l.Info(KindShutdown, "main", "late")
	if l.Dropped() != 1 {
		t.Errorf("expected 1 dropped event, got %d", l.Dropped())
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Emit(Event{Kind: KindStartup})
	l.Close()
}

func TestErrorHelper(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Error(KindStoreError, "hidelist", nil)
	l.Close()

	var ev Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Level != LevelError || ev.Err != "" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestLoggerFeedsRing(t *testing.T) {
	l := NewNullLogger()
	ring := NewRingBuffer(8)
	l.SetRingBuffer(ring)

	l.Info(KindHideAuthor, "gateway", "bob")
	l.Info(KindHideItem, "gateway", "t123")
	l.Close()

	if ring.Len() != 2 {
		t.Fatalf("expected 2 events in ring, got %d", ring.Len())
	}
	if got := ring.Last(1)[0].Kind; got != KindHideItem {
		t.Errorf("expected last kind %s, got %s", KindHideItem, got)
	}
}
