// Command bladeinfo opens a context, prints what bootstrap found and runs a
// small transfer on the queue.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/andewx/bladevk"
)

const smokeSize = 256

var (
	configPath = flag.String("config", "", "usage JSON read for context and encoder settings")
	validation = flag.Bool("validation", false, "enable the validation layer")
	backend    = flag.String("backend", "", "backend name, empty picks the best registered one")
	logPath    = flag.String("log", "", "append logs to this file")
	logLevel   = flag.String("level", "info", "log level")
	smoke      = flag.Bool("smoke", true, "run a fill and copy on the queue")
)

func main() {
	flag.Parse()
	if err := run(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "bladeinfo: %+v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer) error {
	if *logPath != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
			return errors.Wrap(err, "log level")
		}
		l, closer, err := bladevk.NewFileLogger(*logPath, level)
		if err != nil {
			return err
		}
		defer closer.Close()
		bladevk.SetLogger(l)
	}

	usage := bladevk.NewUsage("bladeinfo")
	if *configPath != "" {
		u, err := bladevk.LoadUsage(*configPath)
		if err != nil {
			return err
		}
		usage = u
	}
	desc := usage.ContextDesc()
	if *validation {
		desc.Validation = true
	}
	if *backend != "" {
		desc.Backend = *backend
	}
	if desc.Application == "" {
		desc.Application = "bladeinfo"
	}

	ctx, err := bladevk.Init(desc)
	if err != nil {
		return err
	}
	defer ctx.Destroy()

	report(out, ctx)
	if !*smoke {
		return nil
	}
	return fillAndCopy(out, ctx, usage.EncoderDesc("smoke"))
}

func report(out io.Writer, ctx *bladevk.Context) {
	info := ctx.AdapterInfo()
	caps := ctx.Capabilities()
	fmt.Fprintf(out, "backends:  %s\n", strings.Join(bladevk.Backends(), ", "))
	fmt.Fprintf(out, "backend:   %s\n", ctx.Backend())
	fmt.Fprintf(out, "adapter:   %s (%v)\n", info.Name, info.Type)
	fmt.Fprintf(out, "api:       %d.%d\n", caps.APIVersion>>22, (caps.APIVersion>>12)&0x3ff)
	instance, device := ctx.Extensions()
	fmt.Fprintf(out, "instance:  %s\n", strings.Join(instance, " "))
	fmt.Fprintf(out, "device:    %s\n", strings.Join(device, " "))
	fmt.Fprintf(out, "memory:    valid mask %#x\n", ctx.Memory().ValidMask())
}

// fillAndCopy fills a device buffer, copies it into a shared one and checks
// the bytes on the CPU.
func fillAndCopy(out io.Writer, ctx *bladevk.Context, encDesc bladevk.CommandEncoderDesc) error {
	src := ctx.CreateBuffer(bladevk.BufferDesc{Name: "smoke-src", Size: smokeSize, Memory: bladevk.MemoryDevice})
	defer ctx.DestroyBuffer(src)
	dst := ctx.CreateBuffer(bladevk.BufferDesc{Name: "smoke-dst", Size: smokeSize, Memory: bladevk.MemoryShared})
	defer ctx.DestroyBuffer(dst)

	enc, err := ctx.CreateCommandEncoder(encDesc)
	if err != nil {
		return err
	}
	defer ctx.DestroyCommandEncoder(enc)

	enc.Start()
	recordFillAndCopy(enc, src, dst, 0x5a)
	sp := ctx.Submit(enc)
	if !ctx.WaitFor(sp, 1000) {
		return errors.Newf("sync point %d did not complete", sp.Progress)
	}

	for i, b := range dst.Bytes() {
		if b != 0x5a {
			return errors.Newf("byte %d is %#x after copy", i, b)
		}
	}
	stats := ctx.Memory().Stats()
	fmt.Fprintf(out, "smoke:     ok, sync point %d, %d blocks in %d chunks\n", sp.Progress, stats.Blocks, stats.Chunks)
	return nil
}

// recordFillAndCopy puts the fill and the copy in separate transfer passes
// so the copy starts behind the barrier that closes the fill.
func recordFillAndCopy(enc *bladevk.CommandEncoder, src, dst bladevk.Buffer, value uint8) {
	fill := enc.Transfer()
	fill.FillBuffer(src.At(0), src.Size(), value)
	fill.End()

	cp := enc.Transfer()
	cp.CopyBufferToBuffer(src.At(0), dst.At(0), min(src.Size(), dst.Size()))
	cp.End()
}
