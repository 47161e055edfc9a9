// Command celoxgo drives a built-in design through the simulation core
// from the command line: build it, optionally dump a VCD, and run a
// fixed number of clock cycles. It exists to exercise pkg/simrun end to
// end without a front-end (parsing HDL source is out of this core's
// scope) -- real embedders call pkg/simrun directly.
package main

import (
	"fmt"
	"os"

	"github.com/hdlsim/celoxgo/pkg/config"
	"github.com/hdlsim/celoxgo/pkg/examples"
	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/simrun"
	"github.com/hdlsim/celoxgo/pkg/vcd"
	"github.com/hdlsim/celoxgo/pkg/version"
	"github.com/spf13/cobra"
)

var (
	fourState    bool
	noOptimize   bool
	vcdPath      string
	cycles       int
	period       int64
	showVersion  bool
	listDesigns  bool
	dumpFinal    bool
)

var designs = map[string]func() map[string]*model.Module{
	"counter":       examples.Counter,
	"clock-divider": examples.ClockDivider,
}

var topOf = map[string]string{
	"counter":       "counter",
	"clock-divider": "top",
}

var clockOf = map[string]string{
	"counter":       "clk",
	"clock-divider": "clk",
}

var resetOf = map[string]string{
	"counter":       "rst",
	"clock-divider": "rst",
}

var rootCmd = &cobra.Command{
	Use:   "celoxgo [design]",
	Short: "celoxgo simulation core driver " + version.GetVersion(),
	Long: `celoxgo - cycle-accurate hardware simulation core
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
Builds one of the built-in example designs, drives its clock for a
fixed number of cycles through the discrete-event scheduler, and
optionally records a VCD waveform.

DESIGNS:
  counter         8-bit synchronous counter, single clock domain
  clock-divider   counter driven through a cascaded divided clock

EXAMPLES:
  celoxgo counter --cycles 16
  celoxgo clock-divider --cycles 64 --vcd out.vcd
  celoxgo --list-designs
  celoxgo counter --four-state --cycles 4
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetFullVersion())
			return
		}
		if listDesigns {
			fmt.Println("Available designs:")
			for name := range designs {
				fmt.Printf("  - %s\n", name)
			}
			return
		}
		if len(args) == 0 {
			cmd.Help()
			os.Exit(0)
		}
		if err := run(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version")
	rootCmd.Flags().BoolVar(&fourState, "four-state", false, "simulate with 0/1/X/Z logic instead of 0/1")
	rootCmd.Flags().BoolVar(&noOptimize, "no-optimize", false, "disable SIR optimization passes")
	rootCmd.Flags().StringVar(&vcdPath, "vcd", "", "write a VCD waveform to this path")
	rootCmd.Flags().IntVar(&cycles, "cycles", 10, "number of clock periods to run")
	rootCmd.Flags().Int64Var(&period, "period", 10, "clock period in simulated nanoseconds")
	rootCmd.Flags().BoolVar(&listDesigns, "list-designs", false, "list available built-in designs")
	rootCmd.Flags().BoolVar(&dumpFinal, "dump", false, "print every named signal's final value")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(name string) error {
	build, ok := designs[name]
	if !ok {
		return fmt.Errorf("unknown design %q (see --list-designs)", name)
	}

	opts := config.Default()
	opts.FourState = fourState
	opts.Optimize = !noOptimize
	opts.VCDPath = vcdPath

	sim, err := simrun.Build(build(), topOf[name], opts)
	if err != nil {
		return err
	}

	var writer *vcd.Writer
	if vcdPath != "" {
		writer, err = vcd.Open(vcdPath, sim.Design(), sim.Registry())
		if err != nil {
			return fmt.Errorf("opening vcd: %w", err)
		}
		defer writer.Close()
		if err := writer.Dump(0, sim.Memory()); err != nil {
			return err
		}
	}

	sched := simrun.NewScheduler(sim)
	if err := sched.AddClock(clockOf[name], period, period/2); err != nil {
		return err
	}

	rst, rstErr := sim.Signal(resetOf[name])
	if rstErr == nil {
		if err := sim.Modify(func(io *simrun.IOContext) { io.Set(rst, 1) }); err != nil {
			return err
		}
	}

	// Each Step applies one clock edge, so one clock period is two steps.
	for i := 0; i < 2*cycles; i++ {
		if i == 1 && rstErr == nil {
			if err := sim.Modify(func(io *simrun.IOContext) { io.Set(rst, 0) }); err != nil {
				return err
			}
		}
		if _, err := sched.Step(); err != nil {
			return err
		}
		if writer != nil {
			if err := writer.Dump(sched.Time(), sim.Memory()); err != nil {
				return err
			}
		}
	}

	if dumpFinal {
		out, err := sim.Dump()
		if err != nil {
			return err
		}
		fmt.Print(out)
	}
	return nil
}
