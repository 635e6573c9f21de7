// cmd/strand/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"strand/internal/compiler"
	"strand/internal/concurrency"
	"strand/internal/errors"
	"strand/internal/monitor"
	"strand/internal/preset"
	"strand/internal/repl"
	"strand/internal/vm"
)

const VERSION = "0.1.0"

var (
	BuildDate = time.Now().Format("2006-01-02")
	GitCommit = "unknown"
)

var commandAliases = map[string]string{
	"r": "run",
	"i": "repl",
	"v": "version",
}

func main() {
	os.Exit(strandMain(os.Args[1:]))
}

// strandMain dispatches one CLI invocation and returns its exit code.
// Split out from main so cmd/strand's testscript suite can drive it as
// an in-process subcommand (github.com/rogpeppe/go-internal/testscript).
func strandMain(args []string) int {
	if len(args) == 0 {
		showUsage()
		return 0
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		showVersion()
	case "repl":
		repl.New(os.Stdout, defaultRate()).Run(os.Stdin)
	case "run":
		if len(args) < 2 {
			log.Fatal("no filename provided to run command")
		}
		runFile(args[1])
	case "render":
		renderCommand(args[1:])
	case "preset":
		presetCommand(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		showUsage()
		return 1
	}
	return 0
}

func defaultRate() vm.Rate {
	return vm.Rate{SampleRate: 44100, BlockSize: 64}
}

// runFile compiles and runs a whole file as one top-level compilation
// unit: a file is just a longer program than a REPL line, sharing the
// exact same compiler/workspace/thread machinery.
func runFile(filename string) {
	source, err := os.ReadFile(filename)
	if err != nil {
		log.Fatalf("could not read file: %v", err)
	}

	registry := vm.NewStandardRegistry()
	vm.RegisterConcurrency(registry, concurrency.NewSpawner())
	c := compiler.NewCompiler(registry)

	code, err := c.Compile(string(source), filename)
	if err != nil {
		reportErr(err)
	}

	th := vm.NewThread(vm.NewWorkspace(), defaultRate(), 1)
	if err := th.Run(code); err != nil {
		reportErr(err)
	}
}

func readSourceFile(filename string) (string, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// renderCommand parses `render`'s flags and bounces a script's
// top-level output to a WAV file, optionally serving a live scope
// meter over websocket while it renders. Given more than one input
// file it switches to batch mode: every file renders under its own
// thread and workspace into -out-dir, bounded to -jobs concurrent
// renders at a time by a concurrency.Pool instead of running all of
// them at once.
func renderCommand(args []string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	out := fs.String("out", "out.wav", "output WAV file path (single-file mode)")
	outDir := fs.String("out-dir", "", "output directory, one WAV per input basename (batch mode: required for more than one input file)")
	channels := fs.Int("channels", 2, "number of output channels")
	sampleRate := fs.Float64("rate", 44100, "sample rate in Hz")
	blockSize := fs.Int("block", 512, "block size in frames")
	monitorAddr := fs.String("monitor", "", "if set, serve a scope-meter websocket at this address while rendering")
	savePreset := fs.String("save-preset", "", "if set, save the script's result form under this preset name (single-file mode only)")
	presetType := fs.String("preset-type", "sqlite", "preset store database type")
	presetDSN := fs.String("preset-dsn", "presets.db", "preset store data source name")
	jobs := fs.Int64("jobs", 2, "max concurrent renders in batch mode")
	fs.Parse(args)

	if fs.NArg() < 1 {
		log.Fatal("no filename provided to render command")
	}

	rate := vm.Rate{SampleRate: *sampleRate, BlockSize: *blockSize}

	var opts renderOpts
	if *monitorAddr != "" {
		opts.hub = monitor.NewHub()
		go func() {
			log.Printf("monitor listening on %s", *monitorAddr)
			if err := http.ListenAndServe(*monitorAddr, opts.hub); err != nil {
				log.Printf("monitor: %v", err)
			}
		}()
	}
	if *savePreset != "" {
		store, err := preset.Open(*presetType, *presetDSN)
		if err != nil {
			log.Fatalf("preset: %v", err)
		}
		defer store.Close()
		opts.presetName = *savePreset
		opts.presetDB = store
	}

	if fs.NArg() == 1 {
		if err := renderFile(fs.Arg(0), *out, *channels, rate, opts); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *savePreset != "" {
		log.Fatal("render: -save-preset is not supported in batch mode (more than one input file)")
	}
	if *outDir == "" {
		log.Fatal("render: -out-dir is required when rendering more than one input file")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("render: %v", err)
	}

	pool := concurrency.NewPool(*jobs)
	renderJobs := make([]func(context.Context) error, fs.NArg())
	for i := 0; i < fs.NArg(); i++ {
		in := fs.Arg(i)
		outPath := filepath.Join(*outDir, strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))+".wav")
		renderJobs[i] = func(ctx context.Context) error {
			return renderFile(in, outPath, *channels, rate, opts)
		}
	}
	if err := pool.Run(context.Background(), renderJobs); err != nil {
		log.Fatalf("render: %v", err)
	}
	m := pool.Metrics()
	log.Printf("batch render complete: %d files, %d failed", m.Completed, m.Failed)
}

// presetCommand manages named Form snapshots already saved in a
// SQL-backed store (internal/preset) by a prior `render -save-preset`:
// `list` and `delete` manage the catalog, `load` prints one back.
func presetCommand(args []string) {
	fs := flag.NewFlagSet("preset", flag.ExitOnError)
	dbType := fs.String("type", "sqlite", "database type: sqlite, postgres, mysql, sqlserver")
	dsn := fs.String("dsn", "presets.db", "data source name for the preset store")
	fs.Parse(args)

	if fs.NArg() < 1 {
		log.Fatal("usage: strand preset [-type T] [-dsn DSN] <list|load|delete> [name]")
	}

	store, err := preset.Open(*dbType, *dsn)
	if err != nil {
		log.Fatalf("preset: %v", err)
	}
	defer store.Close()

	switch fs.Arg(0) {
	case "list":
		names, err := store.List()
		if err != nil {
			log.Fatalf("preset: %v", err)
		}
		for _, n := range names {
			fmt.Println(n)
		}
	case "delete":
		if fs.NArg() < 2 {
			log.Fatal("preset delete requires a name")
		}
		if err := store.Delete(fs.Arg(1)); err != nil {
			log.Fatalf("preset: %v", err)
		}
	case "load":
		if fs.NArg() < 2 {
			log.Fatal("preset load requires a name")
		}
		f, err := store.Load(fs.Arg(1))
		if err != nil {
			log.Fatalf("preset: %v", err)
		}
		fmt.Printf("%+v\n", f)
	default:
		log.Fatalf("unknown preset subcommand: %s", fs.Arg(0))
	}
}

func reportErr(err error) {
	if se, ok := err.(*errors.Error); ok {
		fmt.Fprintln(os.Stderr, se.Error())
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}

func showUsage() {
	fmt.Println("strand - a concatenative sound synthesis language")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  strand run <file.strand>      Run a script, discarding its result (alias: r)")
	fmt.Println("  strand render [flags] <file>  Render a script's output to a WAV file")
	fmt.Println("  strand render [flags] <f...>  Batch-render several scripts into -out-dir")
	fmt.Println("  strand preset [flags] <cmd>   Manage named preset snapshots (list|load|delete)")
	fmt.Println("  strand repl                   Start interactive REPL             (alias: i)")
	fmt.Println("  strand version                Show version info                 (alias: v)")
	fmt.Println("  strand help                   Show this message")
}

func showVersion() {
	fmt.Printf("strand v%s\n", VERSION)
	fmt.Printf("Build Date: %s\n", BuildDate)
	if out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output(); err == nil {
		GitCommit = strings.TrimSpace(string(out))
	}
	if GitCommit != "unknown" {
		fmt.Printf("Git Commit: %s\n", GitCommit)
	}
}
