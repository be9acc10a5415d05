// Package main provides the membist CLI: it runs the DRAM self-test of a
// generator/checker equipped SoC over one of the register-bus backends
// and reports throughput and data integrity.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/soclab/membist/bist"
	"github.com/soclab/membist/csr"
	"github.com/soclab/membist/etherbone"
	"github.com/soclab/membist/mmio"
	"github.com/soclab/membist/profile"
	"github.com/soclab/membist/report"
	"github.com/soclab/membist/socsim"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "membist:", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "membist",
		Short: "DRAM self-test driver for generator/checker SoCs",
		Long: `Membist drives the built-in self-test blocks of a LiteX-style SoC:
one write pass through the generator, one read-back pass through the
checker, throughput measured with the SoC's own timer. The device is
reached over Etherbone, a local MMIO window, or a built-in simulation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := slog.LevelInfo
			if verbose {
				level = socsim.LevelTrace
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
				&slog.HandlerOptions{Level: level})))
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Log register and transfer events")

	root.AddCommand(newRunCmd())
	root.AddCommand(newProbeCmd())

	return root
}

// backendOptions selects and parameterizes the register-bus backend.
type backendOptions struct {
	backend     string
	profilePath string

	ebAddr string

	mmioDev  string
	mmioBase uint32
}

func (o *backendOptions) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.backend, "backend", "sim",
		"Register bus backend: sim, etherbone or mmio")
	flags.StringVar(&o.profilePath, "profile", "",
		"Board profile YAML (default: embedded arty, or sim profile "+
			"for the sim backend)")
	flags.StringVar(&o.ebAddr, "addr", "",
		"Etherbone bridge address, overrides the profile")
	flags.StringVar(&o.mmioDev, "dev", "",
		"Memory device for the mmio backend, overrides the profile")
	flags.Uint32Var(&o.mmioBase, "base", 0,
		"Physical CSR window base for the mmio backend, overrides the profile")
}

func newRunCmd() *cobra.Command {
	var (
		opts       backendOptions
		sizeBytes  uint64
		timeout    time.Duration
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the self-test and report throughput and errors",
		RunE: func(*cobra.Command, []string) error {
			return runSelfTest(opts, sizeBytes, timeout, outputJSON)
		},
	}

	opts.register(cmd)
	flags := cmd.Flags()
	flags.Uint64Var(&sizeBytes, "size", 0,
		"Transfer size in bytes per phase, overrides the profile")
	flags.DurationVar(&timeout, "timeout", 0,
		"Done-polling timeout per phase, overrides the profile")
	flags.BoolVar(&outputJSON, "json", false,
		"Output the result as JSON instead of a table")

	return cmd
}

func newProbeCmd() *cobra.Command {
	var opts backendOptions

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the backend answers and the register map is usable",
		RunE: func(*cobra.Command, []string) error {
			return probe(opts)
		},
	}

	opts.register(cmd)

	return cmd
}

func runSelfTest(
	opts backendOptions,
	sizeBytes uint64,
	timeout time.Duration,
	outputJSON bool,
) error {
	prof, err := loadProfile(opts)
	if err != nil {
		return err
	}

	cfg := prof.BISTConfig()
	if sizeBytes != 0 {
		cfg.TransferBytes = sizeBytes
	}
	if timeout != 0 {
		cfg.PollTimeout = timeout
	}

	bus, cleanup, err := openBus(opts, prof, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	slog.Info("starting self-test",
		"backend", opts.backend,
		"profile", prof.Name,
		"bytes", cfg.TransferBytes,
		"clock_hz", cfg.ClockHz,
	)

	tester := bist.TesterBuilder{}.
		WithBus(bus).
		WithMap(prof.CSRMap()).
		WithConfig(cfg).
		WithProgress(os.Stdout).
		Build()

	res, err := tester.Run()
	if err != nil {
		return err
	}

	if outputJSON {
		err = report.WriteJSON(os.Stdout, res)
	} else {
		err = report.Write(os.Stdout, res, cfg)
	}
	if err != nil {
		return err
	}

	if !res.Passed() {
		return fmt.Errorf("self-test failed")
	}
	return nil
}

func probe(opts backendOptions) error {
	prof, err := loadProfile(opts)
	if err != nil {
		return err
	}

	m := prof.CSRMap()
	if err := m.Validate(); err != nil {
		return err
	}

	bus, cleanup, err := openBus(opts, prof, prof.BISTConfig())
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("profile: %s\n", prof.Name)
	fmt.Printf("backend: %s\n", opts.backend)

	// An Etherbone bridge can be asked directly whether anyone is home.
	if p, ok := bus.(interface{ Probe() error }); ok {
		if err := p.Probe(); err != nil {
			return err
		}
		fmt.Println("etherbone bridge: ok")
	}

	// Touch one status register per block; a backend that decodes these
	// reads can run the self-test.
	for _, reg := range []struct {
		name string
		addr uint32
	}{
		{"generator_done", m.Generator.Done},
		{"checker_done", m.Checker.Done},
		{"timer0_value", m.Timer.Value},
	} {
		v, err := bus.Read32(reg.addr)
		if err != nil {
			return fmt.Errorf("probe %s: %w", reg.name, err)
		}
		fmt.Printf("%-16s @ 0x%08x = 0x%08x\n", reg.name, reg.addr, v)
	}

	fmt.Println("probe ok")
	return nil
}

func loadProfile(opts backendOptions) (profile.Profile, error) {
	if opts.profilePath != "" {
		return profile.Load(opts.profilePath)
	}
	if opts.backend == "sim" {
		return profile.Sim(), nil
	}
	return profile.Default(), nil
}

// openBus builds the selected backend. The returned cleanup is always
// non-nil on success.
func openBus(
	opts backendOptions,
	prof profile.Profile,
	cfg bist.Config,
) (csr.Bus, func(), error) {
	switch opts.backend {
	case "sim":
		engine := sim.NewSerialEngine()
		soc := socsim.Builder{}.
			WithEngine(engine).
			WithFreq(sim.Freq(prof.SysClkHz)).
			WithMemoryBytes(uint64(cfg.BaseAddr) + cfg.TransferBytes).
			WithCSRMap(prof.CSRMap()).
			Build("SoC")
		return soc.Bus(), func() {}, nil

	case "etherbone":
		params := prof.Etherbone
		if params == nil {
			params = &profile.EtherboneParams{}
		}
		addr := params.Addr
		if opts.ebAddr != "" {
			addr = opts.ebAddr
		}

		client, err := etherbone.ClientBuilder{}.
			WithAddress(addr).
			WithTimeout(params.Timeout).
			Build()
		if err != nil {
			return nil, nil, err
		}
		return client, func() { client.Close() }, nil

	case "mmio":
		params := prof.MMIO
		if params == nil {
			params = &profile.MMIOParams{Dev: mmio.DefaultDevMem}
		}
		dev, base, size := params.Dev, params.Base, params.Size
		if opts.mmioDev != "" {
			dev = opts.mmioDev
		}
		if opts.mmioBase != 0 {
			base = opts.mmioBase
		}
		if size == 0 {
			size = 0x10000
		}

		win, err := mmio.Open(dev, base, size)
		if err != nil {
			return nil, nil, err
		}
		return win, func() { win.Close() }, nil
	}

	return nil, nil, fmt.Errorf(
		"unknown backend %q (sim, etherbone or mmio)", opts.backend)
}
