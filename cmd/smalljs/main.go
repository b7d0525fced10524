// smalljs CLI - assembles, runs and stores smalljs programs
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/smalljs/manifest"
	"github.com/chazu/smalljs/vm"
)

var log = commonlog.GetLogger("smalljs.cli")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// cli holds the settings shared by every subcommand.
type cli struct {
	stdout   io.Writer
	stderr   io.Writer
	manifest *manifest.Manifest
	cfg      vm.Config
}

// run parses global flags, applies configuration and dispatches to a
// subcommand. It returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("smalljs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbosity := fs.Int("v", 0, "Log verbosity (0 = errors only, higher is more)")
	trace := fs.Bool("trace", false, "Log every instruction with the stack (needs -v 4)")
	stackSize := fs.Int("stack", 0, "Stack capacity in words (default from smalljs.toml or 4096)")
	heapSize := fs.Int("heap", 0, "Heap capacity in words (default from smalljs.toml or 4096)")
	maxSteps := fs.Int64("max-steps", 0, "Instruction budget per run, 0 = unlimited")
	configDir := fs.String("config", ".", "Directory to search upward for smalljs.toml")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: smalljs [options] <command> [arguments]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		fmt.Fprintf(stderr, "  run FILE.sjs            Assemble and run a program\n")
		fmt.Fprintf(stderr, "  build FILE.sjs -o OUT   Assemble a program into an image file\n")
		fmt.Fprintf(stderr, "  exec FILE.img           Run an image file\n")
		fmt.Fprintf(stderr, "  dis FILE                Disassemble a program or image\n")
		fmt.Fprintf(stderr, "  store put FILE [-name N] Store a program or image\n")
		fmt.Fprintf(stderr, "  store run NAME|HASH     Run a stored image\n")
		fmt.Fprintf(stderr, "  store ls                List stored images\n")
		fmt.Fprintf(stderr, "  store rm NAME|HASH      Delete a stored image\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	m, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading manifest: %v\n", err)
		return 1
	}
	if m == nil {
		m = manifest.Default(*configDir)
	}

	// Flags given on the command line override the manifest
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["v"] {
		m.Log.Verbosity = *verbosity
	}
	if set["trace"] {
		m.Engine.Trace = *trace
	}
	if set["stack"] {
		m.Engine.StackSize = *stackSize
	}
	if set["heap"] {
		m.Engine.HeapSize = *heapSize
	}
	if set["max-steps"] {
		m.Engine.MaxSteps = *maxSteps
	}

	if path := m.LogPath(); path != "" {
		commonlog.Configure(m.Log.Verbosity, &path)
	} else {
		commonlog.Configure(m.Log.Verbosity, nil)
	}
	log.Debugf("configuration from %s: %+v", m.Dir, m.Engine)

	c := &cli{stdout: stdout, stderr: stderr, manifest: m, cfg: m.EngineConfig()}
	code, err := c.dispatch(fs.Arg(0), fs.Args()[1:])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

func (c *cli) dispatch(cmd string, args []string) (int, error) {
	switch cmd {
	case "run":
		return c.runCommand(args)
	case "build":
		return 0, c.buildCommand(args)
	case "exec":
		return c.execCommand(args)
	case "dis":
		return 0, c.disCommand(args)
	case "store":
		return c.storeCommand(args)
	}
	return 2, fmt.Errorf("unknown command %q", cmd)
}
