package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"

	"github.com/funvibe/fundbg/internal/debug"
	"github.com/funvibe/fundbg/internal/expr"

	_ "github.com/tliron/commonlog/simple"
)

const usage = `Usage: fundbg [options]

Evaluates debugger expressions against a recorded process snapshot.

Options:
  -snapshot <file>   load a snapshot (.yaml fixture or .dump CBOR file)
  -e <expression>    evaluate one expression and exit
  -rust              use Rust expression rules instead of C
  -debug             verbose logging
  -no-history        don't record input history
  -help              show this help

REPL commands:
  .regs              show canonical register values
  .save <file>       save the current snapshot as a CBOR dump
  .history           show recent inputs
  .quit              exit
`

type options struct {
	snapshotPath string
	expression   string
	rust         bool
	debugMode    bool
	noHistory    bool
}

func parseArgs(args []string) (options, error) {
	var opts options
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-snapshot", "--snapshot":
			i++
			if i >= len(args) {
				return opts, fmt.Errorf("-snapshot needs a file argument")
			}
			opts.snapshotPath = args[i]
		case "-e", "--eval":
			i++
			if i >= len(args) {
				return opts, fmt.Errorf("-e needs an expression argument")
			}
			opts.expression = args[i]
		case "-rust", "--rust":
			opts.rust = true
		case "-debug", "--debug":
			opts.debugMode = true
		case "-no-history", "--no-history":
			opts.noHistory = true
		case "-help", "--help", "-h":
			fmt.Print(usage)
			os.Exit(0)
		default:
			return opts, fmt.Errorf("unknown option %q", args[i])
		}
	}
	return opts, nil
}

func loadSnapshot(path string) (*debug.Snapshot, error) {
	if path == "" {
		// An empty snapshot still evaluates pure expressions.
		return debug.NewSnapshot(), nil
	}
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return debug.LoadSnapshotYAMLFile(path)
	}
	return debug.LoadDumpFile(path)
}

// session ties together the evaluation context, its event loop, and
// the snapshot behind it.
type session struct {
	snap    *debug.Snapshot
	loop    *debug.Loop
	ctx     *expr.Context
	history *history
}

func newSession(opts options) (*session, error) {
	snap, err := loadSnapshot(opts.snapshotPath)
	if err != nil {
		return nil, err
	}
	lang := expr.LanguageC
	if opts.rust {
		lang = expr.LanguageRust
	}
	loop := debug.NewLoop()
	ctx := expr.NewContext(lang, debug.NewSnapshotProvider(snap, loop))

	s := &session{snap: snap, loop: loop, ctx: ctx}
	if !opts.noHistory {
		// History failing to open is not fatal; the REPL works without.
		if h, err := openHistory(); err == nil {
			s.history = h
		}
	}
	return s, nil
}

// eval runs one expression to completion, pumping the event loop until
// the result callback fires.
func (s *session) eval(input string) (string, error) {
	var out string
	var evalErr error
	done := false

	expr.EvalExpression(input, s.ctx, true, func(result expr.ErrOrValue) {
		done = true
		if result.HasError() {
			evalErr = result.Err()
			return
		}
		out = formatValue(s.ctx, result.Value())
	})
	for !done {
		if s.loop.PumpAll() == 0 {
			return "", fmt.Errorf("evaluation stalled: no pending work but no result")
		}
	}
	return out, evalErr
}

func (s *session) command(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".quit", ".exit":
		if s.history != nil {
			s.history.Close()
		}
		os.Exit(0)
	case ".regs":
		s.printRegisters()
	case ".save":
		if len(fields) != 2 {
			fmt.Fprintln(os.Stderr, "Usage: .save <file>")
			return true
		}
		if err := s.snap.SaveDumpFile(fields[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return true
		}
		fmt.Printf("Saved snapshot to %s\n", fields[1])
	case ".history":
		s.printHistory()
	case ".help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q; try .help\n", fields[0])
	}
	return true
}

func (s *session) printRegisters() {
	names := make([]string, 0, len(s.snap.Registers))
	values := map[string]uint64{}
	for id, data := range s.snap.Registers {
		name := debug.RegisterName(id)
		var v uint64
		for i := 0; i < len(data) && i < 8; i++ {
			v |= uint64(data[i]) << (8 * uint(i))
		}
		names = append(names, name)
		values[name] = v
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-8s 0x%016x\n", name, values[name])
	}
}

func (s *session) printHistory() {
	if s.history == nil {
		fmt.Fprintln(os.Stderr, "History is disabled.")
		return
	}
	lines, err := s.history.Recent(20)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}
	for _, line := range lines {
		fmt.Printf("  %s\n", line)
	}
}

func (s *session) repl() {
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print("dbg> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			s.command(line)
			continue
		}
		if s.history != nil {
			s.history.Append(line)
		}
		result, err := s.eval(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			continue
		}
		fmt.Println(result)
	}
	if s.history != nil {
		s.history.Close()
	}
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	verbosity := 0
	if opts.debugMode {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	s, err := newSession(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if opts.expression != "" {
		result, err := s.eval(opts.expression)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		fmt.Println(result)
		return
	}
	s.repl()
}
