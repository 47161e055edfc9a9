// Command celoxgo-repl is an interactive shell for driving a running
// Simulator: set signals, tick events, advance simulated time, and
// inspect values, without recompiling anything between commands.
// Grounded on cmd/repl/main.go's command-prefixed ("/cmd") REPL loop,
// generalized from the Z80 emulator's register/memory commands to
// pkg/simrun's signal/event vocabulary, and on pkg/readline (previously
// unused) for line editing and history.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hdlsim/celoxgo/pkg/config"
	"github.com/hdlsim/celoxgo/pkg/examples"
	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/readline"
	"github.com/hdlsim/celoxgo/pkg/simrun"
	"github.com/hdlsim/celoxgo/pkg/version"
	"golang.org/x/term"
)

var designs = map[string]func() map[string]*model.Module{
	"counter":       examples.Counter,
	"clock-divider": examples.ClockDivider,
}

var topOf = map[string]string{
	"counter":       "counter",
	"clock-divider": "top",
}

// REPL holds one interactive session's live Simulator plus the Scheduler
// driving simulated time, and the line reader/history wrapping stdin.
type REPL struct {
	sim        *simrun.Simulator
	sched      *simrun.Scheduler
	rl         *readline.Reader
	promptName string
	quit       bool
}

func main() {
	name := "counter"
	if len(os.Args) > 1 {
		name = os.Args[1]
	}
	build, ok := designs[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown design %q\n", name)
		os.Exit(1)
	}

	sim, err := simrun.Build(build(), topOf[name], config.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// History persistence only makes sense against a real terminal; a
	// piped/scripted session (term.IsTerminal false) gets no history file,
	// matching cmd/repl's own interactive-vs-piped distinction.
	historyFile := ""
	if term.IsTerminal(int(os.Stdin.Fd())) {
		if home, err := os.UserHomeDir(); err == nil {
			historyFile = home + "/.celoxgo_history"
		}
	}

	r := &REPL{
		sim:        sim,
		sched:      simrun.NewScheduler(sim),
		promptName: name,
		rl: readline.NewReader(&readline.Config{
			Prompt:      name + "> ",
			HistoryFile: historyFile,
		}),
	}
	r.Run()
}

func (r *REPL) Run() {
	r.printBanner()
	for !r.quit {
		r.rl.SetPrompt(fmt.Sprintf("%s@%d> ", r.promptName, r.sched.Time()))
		line, err := r.rl.ReadLine()
		if err != nil {
			fmt.Println()
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.execute(line)
	}
}

func (r *REPL) printBanner() {
	fmt.Println("celoxgo interactive shell " + version.GetVersion())
	fmt.Println("type /help for commands")
}

func (r *REPL) execute(line string) {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "/help", "/h", "/?":
		r.help()
	case "/quit", "/q", "/exit":
		r.quit = true
	case "/set":
		r.cmdSet(args)
	case "/get":
		r.cmdGet(args)
	case "/tick":
		r.cmdTick(args)
	case "/clock":
		r.cmdAddClock(args)
	case "/schedule":
		r.cmdSchedule(args)
	case "/step":
		r.cmdStep(args)
	case "/time":
		fmt.Printf("t = %d\n", r.sched.Time())
	case "/dump":
		r.cmdDump()
	case "/signals":
		r.cmdSignals()
	case "/events":
		r.cmdEvents()
	case "/history":
		r.cmdHistory(args)
	case "/clear-history":
		r.rl.ClearHistory()
	default:
		fmt.Printf("unknown command %q (try /help)\n", cmd)
	}
}

func (r *REPL) help() {
	fmt.Println(`commands:
  /set <signal> <value>     force a signal to value (hex or decimal)
  /get <signal>             print a signal's current value
  /tick <event>             run one event's domain directly, then eval_comb
  /clock <port> <period> [delay]   register a periodic clock
  /schedule <port> <time> <value>  queue a one-shot value change
  /step                     advance the scheduler to its next event
  /time                     print current simulated time
  /dump                     print every named signal's value
  /signals                  list every resolvable signal path
  /events                   list every registered event path
  /history [query]          list command history, optionally filtered
  /clear-history            erase command history (memory and disk)
  /quit                     exit`)
}

func (r *REPL) cmdSet(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: /set <signal> <value>")
		return
	}
	ref, err := r.sim.Signal(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	v, err := parseUint(args[1])
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := r.sim.Modify(func(io *simrun.IOContext) { io.Set(ref, v) }); err != nil {
		fmt.Println(err)
	}
}

func (r *REPL) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: /get <signal>")
		return
	}
	ref, err := r.sim.Signal(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	v, err := r.sim.Get(ref)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("%s = %d (0x%x)\n", args[0], v, v)
}

func (r *REPL) cmdTick(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: /tick <event>")
		return
	}
	ref, err := r.sim.Event(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := r.sim.Tick(ref); err != nil {
		fmt.Println(err)
	}
}

func (r *REPL) cmdAddClock(args []string) {
	if len(args) < 2 || len(args) > 3 {
		fmt.Println("usage: /clock <port> <period> [delay]")
		return
	}
	period, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fmt.Println(err)
		return
	}
	delay := period / 2
	if len(args) == 3 {
		delay, err = strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			fmt.Println(err)
			return
		}
	}
	if err := r.sched.AddClock(args[0], period, delay); err != nil {
		fmt.Println(err)
	}
}

func (r *REPL) cmdSchedule(args []string) {
	if len(args) != 3 {
		fmt.Println("usage: /schedule <port> <time> <value>")
		return
	}
	at, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fmt.Println(err)
		return
	}
	v, err := parseUint(args[2])
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := r.sched.Schedule(args[0], at, v); err != nil {
		fmt.Println(err)
	}
}

func (r *REPL) cmdStep(args []string) {
	n := 1
	if len(args) == 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Println(err)
			return
		}
		n = v
	}
	for i := 0; i < n; i++ {
		more, err := r.sched.Step()
		if err != nil {
			fmt.Println(err)
			return
		}
		if !more {
			fmt.Println("(event queue empty)")
			return
		}
	}
	fmt.Printf("t = %d\n", r.sched.Time())
}

func (r *REPL) cmdDump() {
	out, err := r.sim.Dump()
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Print(out)
}

func (r *REPL) cmdSignals() {
	for path := range r.sim.NamedSignals() {
		fmt.Println(path)
	}
}

func (r *REPL) cmdEvents() {
	for path := range r.sim.NamedEvents() {
		fmt.Println(path)
	}
}

func (r *REPL) cmdHistory(args []string) {
	entries := r.rl.GetHistory()
	if len(args) == 1 {
		entries = r.rl.SearchHistory(args[0])
	}
	for i, line := range entries {
		fmt.Printf("%4d  %s\n", i+1, line)
	}
}

func parseUint(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}
