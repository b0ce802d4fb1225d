package persist

import (
	"fmt"
	"testing"
	"time"
)

func TestInteractionState_Navigation(t *testing.T) {
	st := &InteractionState{}
	if _, ok := st.CurrentOutput(); ok {
		t.Fatalf("empty history should have no current output")
	}
	if st.NavPrev() || st.NavNext() {
		t.Fatalf("navigation on empty history should be a no-op")
	}

	for i := 0; i < 3; i++ {
		st.AddOutput(OutputRecord{Filename: fmt.Sprintf("out%d.png", i), Timestamp: time.Now().UTC()})
	}
	if st.CurrentIndex != 2 {
		t.Fatalf("cursor should follow appends, got %d", st.CurrentIndex)
	}
	if st.NavNext() {
		t.Fatalf("should not navigate past the latest result")
	}
	if !st.NavPrev() || st.CurrentIndex != 1 {
		t.Fatalf("nav prev failed: %d", st.CurrentIndex)
	}
	if !st.NavPrev() || st.CurrentIndex != 0 {
		t.Fatalf("nav prev failed: %d", st.CurrentIndex)
	}
	if st.NavPrev() {
		t.Fatalf("should not navigate before the first result")
	}
	out, ok := st.CurrentOutput()
	if !ok || out.Filename != "out0.png" {
		t.Fatalf("unexpected current output: %+v", out)
	}
}

func TestInteractionState_OutputCap(t *testing.T) {
	st := &InteractionState{}
	var evicted []OutputRecord
	for i := 0; i < MaxOutputs+3; i++ {
		evicted = append(evicted, st.AddOutput(OutputRecord{Filename: fmt.Sprintf("out%d.png", i)})...)
	}
	if len(st.Outputs) != MaxOutputs {
		t.Fatalf("cap not enforced: %d", len(st.Outputs))
	}
	if len(evicted) != 3 {
		t.Fatalf("want 3 evicted, got %d", len(evicted))
	}
	if evicted[0].Filename != "out0.png" {
		t.Fatalf("eviction should drop the oldest first: %+v", evicted[0])
	}
	if st.Outputs[0].Filename != "out3.png" {
		t.Fatalf("unexpected head after eviction: %+v", st.Outputs[0])
	}
	if st.CurrentIndex != MaxOutputs-1 {
		t.Fatalf("cursor out of range after eviction: %d", st.CurrentIndex)
	}
}
