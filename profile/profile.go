// Package profile loads board profiles: the per-platform constants the
// reference firmware bakes in at build time, expressed as YAML so one
// binary can drive different bitstreams.
package profile

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soclab/membist/bist"
	"github.com/soclab/membist/csr"
)

//go:embed arty.yaml
var artyYAML []byte

//go:embed sim.yaml
var simYAML []byte

// Profile bundles everything needed to run the self-test against one
// platform: test parameters, the CSR layout and how to reach the bus.
type Profile struct {
	Name string `yaml:"name"`

	SysClkHz      uint64 `yaml:"sys_clk_hz"`
	TransferBytes uint64 `yaml:"transfer_bytes"`
	BitsPerBeat   uint64 `yaml:"bits_per_beat"`
	BaseAddr      uint32 `yaml:"base_addr"`

	PollTimeout  time.Duration `yaml:"poll_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`

	CSR CSRLayout `yaml:"csr"`

	// Backend parameter blocks. A nil block means the profile does not
	// know how to reach the board that way.
	Etherbone *EtherboneParams `yaml:"etherbone"`
	MMIO      *MMIOParams      `yaml:"mmio"`
}

// CSRLayout locates the register blocks, mirroring the generated csr map
// of the bitstream.
type CSRLayout struct {
	Base           uint32 `yaml:"base"`
	TimerBlock     uint32 `yaml:"timer_block"`
	GeneratorBlock uint32 `yaml:"generator_block"`
	CheckerBlock   uint32 `yaml:"checker_block"`
}

// EtherboneParams point the UDP bridge client at the board.
type EtherboneParams struct {
	Addr    string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// MMIOParams locate the CSR window in physical memory.
type MMIOParams struct {
	Dev  string `yaml:"dev"`
	Base uint32 `yaml:"base"`
	Size uint32 `yaml:"size"`
}

// Default returns the embedded Arty reference profile.
func Default() Profile {
	return mustParse(artyYAML)
}

// Sim returns the embedded simulation profile, the Arty layout with a
// transfer small enough for quick runs.
func Sim() Profile {
	return mustParse(simYAML)
}

func mustParse(data []byte) Profile {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		panic(fmt.Sprintf("profile: embedded profile broken: %s", err))
	}
	return p
}

// Parse decodes a profile on top of the Arty defaults, so a file only
// has to name what differs from the reference platform.
func Parse(data []byte) (Profile, error) {
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Load reads and validates a profile file.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("profile: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return Profile{}, fmt.Errorf("%w (from %s)", err, path)
	}
	return p, nil
}

// Validate checks the profile can drive a run: the test parameters must
// form a valid configuration and the CSR layout a valid map.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile: name not set")
	}
	if err := p.BISTConfig().Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	if err := p.CSRMap().Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	return nil
}

// BISTConfig converts the profile into test parameters.
func (p Profile) BISTConfig() bist.Config {
	return bist.Config{
		TransferBytes: p.TransferBytes,
		ClockHz:       p.SysClkHz,
		BitsPerBeat:   p.BitsPerBeat,
		BaseAddr:      p.BaseAddr,
		PollTimeout:   p.PollTimeout,
		PollInterval:  p.PollInterval,
	}
}

// CSRMap expands the block indices into absolute register addresses.
func (p Profile) CSRMap() csr.Map {
	return csr.MapAt(
		p.CSR.Base,
		p.CSR.TimerBlock,
		p.CSR.GeneratorBlock,
		p.CSR.CheckerBlock,
	)
}
