package memgo_test

import (
	"errors"
	"testing"

	"github.com/hupe1980/memgo"
)

func TestBuilder_Heap_Basic(t *testing.T) {
	stack, err := memgo.Heap().
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer stack.Close()

	buf, err := stack.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if len(buf) != 64 {
		t.Errorf("expected 64 bytes, got %d", len(buf))
	}

	if err := stack.Free(buf); err != nil {
		t.Fatalf("Free failed: %v", err)
	}
}

func TestBuilder_Heap_FullOptions(t *testing.T) {
	metrics := &memgo.BasicMetricsCollector{}

	stack, err := memgo.Heap().
		BaseAllocator(memgo.NewGoAllocator()).
		MemoryLimit(1 << 20).
		LeakCheck().
		Logger(memgo.NoopLogger()).
		Metrics(metrics).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer stack.Close()

	buf, err := stack.Allocate(128)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if err := stack.Free(buf); err != nil {
		t.Fatalf("Free failed: %v", err)
	}

	if got := metrics.GetStats().AllocCount; got != 1 {
		t.Errorf("expected 1 recorded allocation, got %d", got)
	}
}

func TestBuilder_Arena_Basic(t *testing.T) {
	stack, err := memgo.Arena(1 << 16).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer stack.Close()

	if stack.Arena() == nil {
		t.Fatal("expected an arena-backed stack")
	}

	buf, err := stack.Allocate(256)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if len(buf) != 256 {
		t.Errorf("expected 256 bytes, got %d", len(buf))
	}
}

func TestBuilder_Arena_FullOptions(t *testing.T) {
	stack, err := memgo.Arena(1 << 16).
		MemoryLimit(1 << 20).
		ReleasePacing(1 << 20).
		LeakOrigins().
		Logger(memgo.NoopLogger()).
		Metrics(&memgo.BasicMetricsCollector{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if !stack.LeakCheckEnabled() {
		t.Error("expected leak checking to be enabled")
	}

	buf, err := stack.Allocate(32)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if err := stack.Free(buf); err != nil {
		t.Fatalf("Free failed: %v", err)
	}

	if err := stack.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestBuilder_LeakCheck(t *testing.T) {
	stack, err := memgo.Heap().
		LeakCheck().
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if _, err := stack.Allocate(24); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	// The buffer is never freed, so Close must report it.
	err = stack.Close()
	if !errors.Is(err, memgo.ErrLeaksDetected) {
		t.Fatalf("expected ErrLeaksDetected, got %v", err)
	}

	var leakErr *memgo.LeakError
	if !errors.As(err, &leakErr) {
		t.Fatalf("expected a LeakError, got %T", err)
	}
	if leakErr.Count != 1 {
		t.Errorf("expected 1 leaked allocation, got %d", leakErr.Count)
	}
}

func TestBuilder_MustBuild_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected MustBuild to panic on invalid config")
		}
	}()

	// Negative memory limit should cause panic
	_ = memgo.Heap().
		MemoryLimit(-1).
		MustBuild()
}
