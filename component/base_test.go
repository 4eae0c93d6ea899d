package component

import (
	"context"
	"errors"
	"testing"

	"github.com/c360studio/streamharness/channel"
)

func TestAttachInputRejectsSecondChannel(t *testing.T) {
	b := NewBase("sink", Dependencies{})

	ch1, _ := channel.New("a.out->sink.in", 1)
	ch2, _ := channel.New("b.out->sink.in", 1)
	_, r1 := ch1.Ends()
	_, r2 := ch2.Ends()

	if err := b.AttachInput("in", r1); err != nil {
		t.Fatalf("first attach: %v", err)
	}
	if err := b.AttachInput("in", r2); err == nil {
		t.Fatal("second attach to same input port should fail")
	}
	if err := b.AttachInput("other", r2); err != nil {
		t.Fatalf("attach to different port: %v", err)
	}
}

func TestSendFansOutToAllChannels(t *testing.T) {
	b := NewBase("src", Dependencies{})

	ch1, _ := channel.New("src.out->a.in", 2)
	ch2, _ := channel.New("src.out->b.in", 2)
	s1, r1 := ch1.Ends()
	s2, r2 := ch2.Ends()

	if err := b.AttachOutput("out", s1); err != nil {
		t.Fatal(err)
	}
	if err := b.AttachOutput("out", s2); err != nil {
		t.Fatal(err)
	}

	if err := b.Send(context.Background(), "item", nil); err == nil {
		t.Fatal("send to unwired port should fail")
	}
	if err := b.Send(context.Background(), "out", 42); err != nil {
		t.Fatal(err)
	}

	for _, r := range []*channel.Receiver{r1, r2} {
		v, ok := r.Receive(context.Background())
		if !ok || v != 42 {
			t.Fatalf("fan-out receive: got (%v, %v)", v, ok)
		}
	}
}

func TestSendUnwiredPort(t *testing.T) {
	b := NewBase("src", Dependencies{})
	if err := b.Send(context.Background(), "out", 1); err == nil {
		t.Fatal("expected error for unwired output port")
	}
}

func TestLifecycleFlags(t *testing.T) {
	b := NewBase("c", Dependencies{})

	if b.Running() || b.Ready() {
		t.Fatal("component should not be running before Setup")
	}
	if err := b.Setup(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !b.Running() || !b.Ready() {
		t.Fatal("component should be running after Setup")
	}
	if err := b.Cleanup(context.Background()); err != nil {
		t.Fatal(err)
	}
	if b.Running() {
		t.Fatal("component should not be running after Cleanup")
	}
}

func TestCleanupClosesOutputs(t *testing.T) {
	b := NewBase("src", Dependencies{})
	ch, _ := channel.New("src.out->x.in", 1)
	s, r := ch.Ends()
	if err := b.AttachOutput("out", s); err != nil {
		t.Fatal(err)
	}

	if err := b.Cleanup(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Receive(context.Background()); ok {
		t.Fatal("expected end-of-stream after Cleanup")
	}
}

func TestStatusCounters(t *testing.T) {
	b := NewBase("c", Dependencies{})
	_ = b.Setup(context.Background())

	b.RecordItem()
	b.RecordItem()
	b.RecordError(errors.New("boom"))

	st := b.Status()
	if st.ItemsProcessed != 2 {
		t.Errorf("ItemsProcessed = %d, want 2", st.ItemsProcessed)
	}
	if st.ErrorsEncountered != 1 {
		t.Errorf("ErrorsEncountered = %d, want 1", st.ErrorsEncountered)
	}
	if st.LastError != "boom" {
		t.Errorf("LastError = %q, want boom", st.LastError)
	}
	if st.Healthy {
		t.Error("status should be unhealthy after an error")
	}

	h := b.Health()
	if !h.Healthy {
		t.Error("default Health is tied to running, not errors")
	}
	if h.ItemsProcessed != 2 || h.ErrorCount != 1 {
		t.Errorf("health counters = (%d, %d), want (2, 1)", h.ItemsProcessed, h.ErrorCount)
	}
}
