package builtin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/c360studio/streamharness/channel"
	"github.com/c360studio/streamharness/component"
	"github.com/c360studio/streamharness/loader"
)

func wireOutput(t *testing.T, comp component.Component, port string, capacity int) *channel.Receiver {
	t.Helper()
	ch, err := channel.New("test-out", capacity)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	sender, receiver := ch.Ends()
	if err := comp.(component.Wirable).AttachOutput(port, sender); err != nil {
		t.Fatalf("attach output: %v", err)
	}
	return receiver
}

func wireInput(t *testing.T, comp component.Component, port string, capacity int) *channel.Sender {
	t.Helper()
	ch, err := channel.New("test-in", capacity)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	sender, receiver := ch.Ends()
	if err := comp.(component.Wirable).AttachInput(port, receiver); err != nil {
		t.Fatalf("attach input: %v", err)
	}
	return sender
}

func TestGeneratorEmitsSequence(t *testing.T) {
	gen, err := NewGenerator("gen", json.RawMessage(`{"start": 10, "count": 3}`), component.Dependencies{})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	out := wireOutput(t, gen, "out", 3)
	ctx := context.Background()
	if err := gen.Setup(ctx); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := gen.Process(ctx); err != nil {
		t.Fatalf("Process: %v", err)
	}
	out.Channel().Close()

	want := []int{10, 11, 12}
	for i, w := range want {
		item, ok := out.Receive(ctx)
		if !ok {
			t.Fatalf("stream ended at item %d", i)
		}
		if item.(int) != w {
			t.Errorf("item %d = %v, want %d", i, item, w)
		}
	}
	if _, ok := out.Receive(ctx); ok {
		t.Error("expected end-of-stream after emitted sequence")
	}
}

func TestGeneratorConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"defaults", "", false},
		{"negative count", `{"count": -1}`, true},
		{"negative interval", `{"interval_ms": -5}`, true},
		{"malformed json", `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator("gen", json.RawMessage(tt.raw), component.Dependencies{})
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransformAppliesArithmetic(t *testing.T) {
	tr, err := NewTransform("double", json.RawMessage(`{"multiplier": 2, "offset": 1}`), component.Dependencies{})
	if err != nil {
		t.Fatalf("NewTransform: %v", err)
	}

	in := wireInput(t, tr, "in", 4)
	out := wireOutput(t, tr, "out", 4)
	ctx := context.Background()

	for _, v := range []int{1, 2, 3} {
		if err := in.Send(ctx, v); err != nil {
			t.Fatalf("send %d: %v", v, err)
		}
	}
	in.Close()

	if err := tr.Process(ctx); err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := []int{3, 5, 7}
	for i, w := range want {
		item, ok := out.Receive(ctx)
		if !ok {
			t.Fatalf("stream ended at item %d", i)
		}
		if item.(int) != w {
			t.Errorf("item %d = %v, want %d", i, item, w)
		}
	}
}

func TestTransformRejectsZeroMultiplier(t *testing.T) {
	if _, err := NewTransform("t", json.RawMessage(`{"multiplier": 0}`), component.Dependencies{}); err == nil {
		t.Fatal("expected error for zero multiplier")
	}
}

func TestTransformRejectsNonInteger(t *testing.T) {
	tr, err := NewTransform("t", nil, component.Dependencies{})
	if err != nil {
		t.Fatalf("NewTransform: %v", err)
	}
	in := wireInput(t, tr, "in", 1)
	wireOutput(t, tr, "out", 1)

	ctx := context.Background()
	if err := in.Send(ctx, "not an int"); err != nil {
		t.Fatalf("send: %v", err)
	}
	in.Close()

	if err := tr.Process(ctx); err == nil {
		t.Fatal("expected type error")
	}
}

func TestCollectorRetainsBoundedHistory(t *testing.T) {
	col, err := NewCollector("sink", json.RawMessage(`{"max_items": 3}`), component.Dependencies{})
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	in := wireInput(t, col, "in", 8)

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		if err := in.Send(ctx, i); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	in.Close()

	if err := col.Process(ctx); err != nil {
		t.Fatalf("Process: %v", err)
	}

	sink := col.(*Collector)
	items := sink.Items()
	if len(items) != 3 {
		t.Fatalf("retained %d items, want 3: %v", len(items), items)
	}
	if items[0].(int) != 3 || items[2].(int) != 5 {
		t.Errorf("retained wrong window: %v", items)
	}
}

func TestRegisterAddsAllFactories(t *testing.T) {
	registry := loader.NewRegistry()
	if err := Register(registry); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for _, name := range []string{FactoryGenerator, FactoryTransform, FactoryCollector} {
		if _, ok := registry.Get(name); !ok {
			t.Errorf("factory %q not registered", name)
		}
	}
	if err := Register(registry); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}
