package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"pkt.systems/cellpad/internal/observable"
	"pkt.systems/cellpad/schema"
)

func TestOutputStreamConsolidation(t *testing.T) {
	area := newOutputAreaModel()
	area.Add(schema.Stream(schema.StreamStdout, "a"))
	area.Add(schema.Stream(schema.StreamStdout, "b"))
	want := []schema.Output{schema.Stream(schema.StreamStdout, "ab")}
	if diff := cmp.Diff(want, area.Values()); diff != "" {
		t.Fatalf("outputs (-want +got):\n%s", diff)
	}
}

func TestOutputStreamChannelsStaySeparate(t *testing.T) {
	area := newOutputAreaModel()
	area.Add(schema.Stream(schema.StreamStdout, "a"))
	area.Add(schema.Stream(schema.StreamStderr, "b"))
	if area.Len() != 2 {
		t.Fatalf("expected 2 outputs, got %d", area.Len())
	}
}

func TestOutputStreamAfterResultAppends(t *testing.T) {
	area := newOutputAreaModel()
	area.Add(schema.Stream(schema.StreamStdout, "a"))
	area.Add(schema.ExecuteResult(schema.TextBundle(map[string]string{"text/plain": "1"}), 1))
	area.Add(schema.Stream(schema.StreamStdout, "b"))
	if area.Len() != 3 {
		t.Fatalf("expected 3 outputs, got %d", area.Len())
	}
}

func TestOutputConsolidationIsOneSetEvent(t *testing.T) {
	area := newOutputAreaModel()
	area.Add(schema.Stream(schema.StreamStdout, "a\r\n"))
	var changes []observable.Change[schema.Output]
	area.Outputs().Changed().Connect(func(c observable.Change[schema.Output]) { changes = append(changes, c) })
	area.Add(schema.Stream(schema.StreamStdout, "b"))
	if len(changes) != 1 || changes[0].Kind != observable.ChangeSet || changes[0].NewIndex != 0 {
		t.Fatalf("unexpected events: %+v", changes)
	}
	if got := area.Values()[0].Text; got != "a\nb" {
		t.Fatalf("expected normalized merged text, got %q", got)
	}
}

func TestOutputDeferredClear(t *testing.T) {
	area := newOutputAreaModel()
	area.Add(schema.Stream(schema.StreamStdout, "old"))
	area.Add(schema.ErrorOutput("ValueError", "x", nil))
	var changes []observable.Change[schema.Output]
	area.Outputs().Changed().Connect(func(c observable.Change[schema.Output]) { changes = append(changes, c) })

	area.Clear(true)
	if area.Len() != 2 || len(changes) != 0 {
		t.Fatalf("deferred clear must not touch outputs yet: len=%d events=%d", area.Len(), len(changes))
	}
	if !area.ClearPending() {
		t.Fatalf("expected pending clear")
	}
	x := schema.DisplayData(schema.TextBundle(map[string]string{"text/plain": "x"}))
	area.Add(x)
	if diff := cmp.Diff([]schema.Output{x}, area.Values()); diff != "" {
		t.Fatalf("outputs (-want +got):\n%s", diff)
	}
	if len(changes) != 1 || changes[0].Kind != observable.ChangeReplace {
		t.Fatalf("expected one replace event, got %+v", changes)
	}
	if area.ClearPending() {
		t.Fatalf("expected pending clear consumed")
	}
}

func TestOutputDeferredClearDoesNotMergeStream(t *testing.T) {
	area := newOutputAreaModel()
	area.Add(schema.Stream(schema.StreamStdout, "1"))
	area.Clear(true)
	area.Add(schema.Stream(schema.StreamStdout, "2"))
	want := []schema.Output{schema.Stream(schema.StreamStdout, "2")}
	if diff := cmp.Diff(want, area.Values()); diff != "" {
		t.Fatalf("outputs (-want +got):\n%s", diff)
	}
}

func TestOutputUnknownTypeDropped(t *testing.T) {
	area := newOutputAreaModel()
	events := 0
	area.Outputs().Changed().Connect(func(observable.Change[schema.Output]) { events++ })
	area.Add(schema.Output{OutputType: "update_display_data"})
	area.Add(schema.Output{OutputType: "status"})
	if area.Len() != 0 || events != 0 {
		t.Fatalf("expected unknown outputs dropped, len=%d events=%d", area.Len(), events)
	}
}

func TestOutputClearImmediate(t *testing.T) {
	area := newOutputAreaModel()
	area.Add(schema.Stream(schema.StreamStdout, "a"))
	area.Clear(true)
	area.Clear(false)
	if area.Len() != 0 || area.ClearPending() {
		t.Fatalf("expected immediate clear, len=%d pending=%v", area.Len(), area.ClearPending())
	}
}

func TestOutputFlagsEmitState(t *testing.T) {
	area := newOutputAreaModel()
	var names []string
	area.StateChanged().Connect(func(c StateChange) { names = append(names, c.Name) })
	area.SetTrusted(true)
	area.SetTrusted(true)
	area.SetCollapsed(true)
	area.SetFixedHeight(true)
	if diff := cmp.Diff([]string{PropTrusted, PropCollapsed, PropFixedHeight}, names); diff != "" {
		t.Fatalf("state events (-want +got):\n%s", diff)
	}
}
