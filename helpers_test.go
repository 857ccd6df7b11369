package bladevk

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/andewx/bladevk/internal/driver/simulated"
)

// newTestContext boots a context on a fresh simulated driver. mutate, when
// non-nil, adjusts the adapter before bootstrap.
func newTestContext(t *testing.T, mutate func(*simulated.Config)) (*Context, *simulated.Driver) {
	t.Helper()
	cfg := simulated.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	drv := simulated.New(cfg)
	ctx, err := InitWithDriver(drv, ContextDesc{Application: t.Name()})
	if err != nil {
		t.Fatalf("InitWithDriver: %v", err)
	}
	t.Cleanup(func() {
		ctx.Destroy()
		if v := drv.Violations(); len(v) > 0 {
			t.Errorf("driver violations: %q", v)
		}
	})
	return ctx, drv
}

// expectPanic runs fn and returns the value it panicked with.
func expectPanic(t *testing.T, fn func()) (v any) {
	t.Helper()
	defer func() {
		v = recover()
		if v == nil {
			t.Error("expected a panic")
		}
	}()
	fn()
	return nil
}

func panicIs(v any, target error) bool {
	err, ok := v.(error)
	return ok && errors.Is(err, target)
}

// captureLog routes the package logger into a buffer for the rest of the
// test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { SetLogger(nil) })
	return &buf
}
