// Package main runs the memory self-test against the simulated SoC, the
// quickest way to see the whole write/read/verify flow end to end.
package main

import (
	"fmt"
	"os"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/soclab/membist/bist"
	"github.com/soclab/membist/profile"
	"github.com/soclab/membist/report"
	"github.com/soclab/membist/socsim"
)

func main() {
	engine := sim.NewSerialEngine()
	prof := profile.Sim()

	soc := socsim.Builder{}.
		WithEngine(engine).
		WithFreq(sim.Freq(prof.SysClkHz)).
		WithMemoryBytes(prof.TransferBytes).
		WithCSRMap(prof.CSRMap()).
		Build("SoC")

	tester := bist.TesterBuilder{}.
		WithBus(soc.Bus()).
		WithMap(prof.CSRMap()).
		WithConfig(prof.BISTConfig()).
		WithProgress(os.Stdout).
		Build()

	res, err := tester.Run()
	if err != nil {
		panic(err)
	}

	if err := report.Write(os.Stdout, res, prof.BISTConfig()); err != nil {
		panic(err)
	}

	fmt.Printf("simulated time: %.3f ms\n", float64(engine.CurrentTime())*1e3)

	atexit.Exit(0)
}
