package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"strand/internal/audio"
	"strand/internal/compiler"
	"strand/internal/concurrency"
	"strand/internal/form"
	"strand/internal/monitor"
	"strand/internal/preset"
	"strand/internal/value"
	"strand/internal/vm"
)

// renderOpts are renderFile's optional side-effects beyond the WAV
// write: a live monitor feed, and saving the top-level result under a
// preset name once the render finishes (only possible when the
// program's result is a Form; a bare signal has nothing to snapshot).
type renderOpts struct {
	hub        *monitor.Hub
	presetName string
	presetDB   *preset.Store
}

// renderFile compiles and runs filename, then pulls its top-level
// result's "out" channels (the same convention ola event templates
// use, internal/vm.EventOutChannels) block by block into a new WAV
// file at outPath. If opts.hub is non-nil, a scope-meter frame is
// broadcast to any connected monitor client after every block. Errors
// are returned rather than fatal so a batch render (internal/concurrency.Pool)
// reports them through Pool.Run, which starts no further files once one
// has failed.
func renderFile(filename, outPath string, channels int, rate vm.Rate, opts renderOpts) error {
	source, err := readSourceFile(filename)
	if err != nil {
		return fmt.Errorf("could not read file: %w", err)
	}

	registry := vm.NewStandardRegistry()
	spawner := concurrency.NewSpawner()
	vm.RegisterConcurrency(registry, spawner)
	c := compiler.NewCompiler(registry)

	code, err := c.Compile(source, filename)
	if err != nil {
		return err
	}

	th := vm.NewThread(vm.NewWorkspace(), rate, 1)
	runID := uuid.NewString()
	if err := th.Run(code); err != nil {
		return err
	}
	top, err := th.Pop()
	if err != nil {
		return fmt.Errorf("render %s: program left nothing on the stack to render", runID)
	}

	if opts.presetName != "" {
		f, ok := top.Ref().(*form.Form)
		if !ok || top.Kind() != value.KindForm {
			return fmt.Errorf("render %s: -save-preset requires the script's result to be a form", runID)
		}
		if err := opts.presetDB.Save(opts.presetName, f); err != nil {
			return fmt.Errorf("render: save preset: %w", err)
		}
	}

	cursors, err := vm.EventOutChannels(th, top, channels)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	f, err := audio.Create(outPath, channels, rate.SampleRate, rate.SampleRate)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	defer f.Close()

	start := time.Now()
	buffers := make([][]float64, channels)
	for ch := range buffers {
		buffers[ch] = make([]float64, rate.BlockSize)
	}

	for {
		n := rate.BlockSize
		for ch, cur := range cursors {
			written, err := cur.Fill(th, rate.BlockSize, buffers[ch])
			if err != nil {
				return fmt.Errorf("render: %w", err)
			}
			if written < n {
				n = written
			}
		}
		if n == 0 {
			break
		}
		if err := f.Push(buffers, n); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		if opts.hub != nil {
			// Voice count is only meaningful for an ola-driven render;
			// a bare top-level signal has no such notion, so 0 stands in.
			frame := monitor.NewFrame(trimmedBlocks(buffers, n), 0, time.Since(start))
			opts.hub.Broadcast(frame)
		}
		if n < rate.BlockSize {
			break
		}
	}

	fmt.Printf("wrote %s (%s)\n", outPath, time.Since(start))
	return nil
}

func trimmedBlocks(buffers [][]float64, n int) [][]float64 {
	out := make([][]float64, len(buffers))
	for i, b := range buffers {
		out[i] = b[:n]
	}
	return out
}
