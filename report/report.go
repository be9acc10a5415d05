// Package report renders self-test results, a summary table for humans
// and JSON for machines. The firmware-compatible progress text stays with
// the tester; this package only formats the structured outcome.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/soclab/membist/bist"
)

// Write renders the run as a table followed by the verdict. PASS means
// both phases measured cleanly and the checker counted zero errors.
func Write(w io.Writer, res bist.Result, cfg bist.Config) error {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("memory self-test @ %s",
		humanize.SIWithDigits(float64(cfg.ClockHz), 0, "Hz")))
	t.AppendHeader(table.Row{"Phase", "Transferred", "Ticks", "Speed"})
	t.AppendRow(phaseRow(res.Write))
	t.AppendRow(phaseRow(res.Read))

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}

	verdict := "PASS"
	if !res.Passed() {
		verdict = "FAIL"
	}
	_, err := fmt.Fprintf(w, "data errors: %d\nverdict: %s\n",
		res.Errors, verdict)
	return err
}

func phaseRow(p bist.PhaseResult) table.Row {
	speed := "invalid"
	if p.Valid() {
		speed = fmt.Sprintf("%d Mbps", p.Mbps)
	}

	return table.Row{
		p.Direction.String(),
		humanize.IBytes(p.Bytes),
		p.Ticks,
		speed,
	}
}

// jsonPhase is the wire form of one phase measurement.
type jsonPhase struct {
	Direction string `json:"direction"`
	Bytes     uint64 `json:"bytes"`
	Ticks     uint32 `json:"ticks"`
	Mbps      uint64 `json:"mbps"`
	Valid     bool   `json:"valid"`
}

type jsonReport struct {
	Write  jsonPhase `json:"write"`
	Read   jsonPhase `json:"read"`
	Errors uint32    `json:"errors"`
	Passed bool      `json:"passed"`
}

// WriteJSON writes the run as indented JSON.
func WriteJSON(w io.Writer, res bist.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(jsonReport{
		Write:  jsonPhaseOf(res.Write),
		Read:   jsonPhaseOf(res.Read),
		Errors: res.Errors,
		Passed: res.Passed(),
	})
}

func jsonPhaseOf(p bist.PhaseResult) jsonPhase {
	return jsonPhase{
		Direction: p.Direction.String(),
		Bytes:     p.Bytes,
		Ticks:     p.Ticks,
		Mbps:      p.Mbps,
		Valid:     p.Valid(),
	}
}
