package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/andewx/bladevk"
	"github.com/andewx/bladevk/internal/driver/simulated"
)

func TestRunSimulated(t *testing.T) {
	*backend = bladevk.BackendSimulated
	defer func() { *backend = "" }()

	var out bytes.Buffer
	if err := run(&out); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	if !strings.Contains(text, "backend:   simulated") {
		t.Errorf("missing backend line:\n%s", text)
	}
	if !strings.Contains(text, "smoke:     ok") {
		t.Errorf("smoke test did not report:\n%s", text)
	}
}

func TestFillAndCopyOrdering(t *testing.T) {
	cfg := simulated.DefaultConfig()
	cfg.AutoProcess = true
	drv := simulated.New(cfg)
	ctx, err := bladevk.InitWithDriver(drv, bladevk.ContextDesc{Application: t.Name()})
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Destroy()

	var out bytes.Buffer
	if err := fillAndCopy(&out, ctx, bladevk.CommandEncoderDesc{Name: "smoke", BufferCount: 1}); err != nil {
		t.Fatal(err)
	}
	if v := drv.Violations(); len(v) > 0 {
		t.Errorf("driver violations: %q", v)
	}
}
