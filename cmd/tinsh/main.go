package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/tinscript/tin/tin"
)

var (
	debug       bool
	execStats   bool
	rawTTY      bool
	interactive bool
	disasm      bool
	tick        time.Duration
	strTabIn    string
	strTabOut   string
)

func atExit(faultCount int, err error) {
	if err == nil {
		return
	}
	if !debug {
		fmt.Fprintf(os.Stderr, "\n%v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "\n%+v\n(%d fault(s) raised before exit)\n", err, faultCount)
	}
	os.Exit(1)
}

func main() {
	var err error
	var faultCount int

	flag.BoolVar(&debug, "debug", false, "enable debug diagnostics")
	flag.BoolVar(&execStats, "stats", false, "print performance statistics upon exit")
	flag.BoolVar(&rawTTY, "raw", false, "read console input in raw mode")
	flag.BoolVar(&interactive, "i", false, "read further statements from stdin after the script runs")
	flag.BoolVar(&disasm, "dis", false, "dump the compiled script's bytecode to stderr")
	flag.DurationVar(&tick, "clkslp", 16*time.Millisecond, "interval between scheduler ticks")
	flag.StringVar(&strTabIn, "strtab", "", "load string-table `filename` for debug symbol resolution")
	flag.StringVar(&strTabOut, "strtab-out", "", "write the string table to `filename` on exit")
	flag.Parse()

	defer func() { atExit(faultCount, err) }()

	if flag.NArg() < 1 {
		err = errors.New("usage: tinsh [flags] script.tin")
		return
	}
	scriptPath := flag.Arg(0)

	if rawTTY {
		var tearDown func()
		tearDown, err = setRawIO()
		if err != nil {
			fmt.Fprintf(os.Stderr, "tinsh: raw IO unavailable, falling back to cooked mode: %v\n", err)
			err = nil
		} else {
			defer tearDown()
		}
	}

	if debug {
		if w, h := consoleSize(os.Stdout); w > 0 {
			fmt.Fprintf(os.Stderr, "tinsh: console %dx%d\n", w, h)
		}
	}

	opts := []tin.Option{
		tin.PrintHandler(func(s string) { fmt.Println(s) }),
		tin.AssertHandler(func(f *tin.Fault) bool {
			faultCount++
			if debug {
				fmt.Fprintf(os.Stderr, "fault: %s:%d: %s: %s\n", f.File, f.Line, f.Kind, f.Msg)
			}
			return true
		}),
	}
	if strTabIn != "" {
		opts = append(opts, tin.WithStringTableFile(strTabIn))
	}

	var ctx *tin.Context
	ctx, err = tin.NewContext(opts...)
	if err != nil {
		return
	}

	start := time.Now()
	if err = ctx.ExecuteFile(scriptPath); err != nil {
		return
	}
	if disasm {
		if err = ctx.Disassemble(scriptPath, os.Stderr); err != nil {
			return
		}
	}

	ticks := 0
	tickOnce := func() error {
		time.Sleep(tick)
		ticks++
		return ctx.UpdateContext(time.Since(start).Milliseconds())
	}

	if interactive {
		if err = console(ctx, tickOnce); err != nil {
			return
		}
	}

	// Drain any commands the script scheduled, ticking the context at a
	// fixed interval until the queue runs dry.
	for ctx.PendingSchedules() > 0 {
		if err = tickOnce(); err != nil {
			return
		}
	}

	if strTabOut != "" {
		if err = ctx.SaveStringTable(strTabOut); err != nil {
			return
		}
	}

	if execStats {
		delta := time.Since(start)
		fmt.Fprintf(os.Stderr, "Executed in %v (%d scheduler tick(s), %d fault(s)).\n", delta, ticks, faultCount)
	}
}

// console reads statements from stdin line by line and executes each as
// its own translation unit, ticking the scheduler between lines so
// schedule(...) commands typed at the prompt still fire.
func console(ctx *tin.Context, tickOnce func() error) error {
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "tin> ")
		if !in.Scan() {
			fmt.Fprintln(os.Stderr)
			return errors.Wrap(in.Err(), "tinsh: console read")
		}
		line := strings.TrimSpace(in.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		}
		if err := ctx.ExecuteText(line, "<console>"); err != nil {
			// a typo at the prompt shouldn't kill the session
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		for ctx.PendingSchedules() > 0 {
			if err := tickOnce(); err != nil {
				return err
			}
		}
	}
}
