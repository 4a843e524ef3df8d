// Package config loads railsig station files.
//
// A station file is YAML. It is checked twice: first against the embedded
// CUE schema, which reports the position of every violation, then decoded
// into Config in strict mode so unknown fields are rejected.
//
//	protocol: selectrix
//	selectrix:
//	  variant: t0t1
//	  pins: {t0: 0, data: 1}
//	  channels: {0: 0xAC, 17: 0x55}
//	stream:
//	  journal: journal.db
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Protocol names accepted in the protocol field.
const (
	ProtocolSelectrix = "selectrix"
	ProtocolDCC       = "dcc"
	ProtocolMotorola  = "motorola"
	ProtocolMFX       = "mfx"
)

// Config is a decoded station file.
type Config struct {
	Protocol  string    `yaml:"protocol"`
	Selectrix Selectrix `yaml:"selectrix"`
	DCC       DCC       `yaml:"dcc"`
	Motorola  Motorola  `yaml:"motorola"`
	MFX       MFX       `yaml:"mfx"`
	Stream    Stream    `yaml:"stream"`
}

// Selectrix configures an SX1 transmitter.
type Selectrix struct {
	Variant  string         `yaml:"variant"`
	Address  string         `yaml:"address"`
	Pins     SelectrixPins  `yaml:"pins"`
	Power    *bool          `yaml:"power"`
	Channels map[int]int    `yaml:"channels"`
	Labels   map[int]string `yaml:"labels"`
}

// SelectrixPins assigns the bus lines.
type SelectrixPins struct {
	T0   *int `yaml:"t0"`
	Data *int `yaml:"data"`
}

// DCC configures a DCC command station.
type DCC struct {
	Pin      int       `yaml:"pin"`
	Cutout   *int      `yaml:"cutout"`
	Railcom  bool      `yaml:"railcom"`
	Preamble int       `yaml:"preamble"`
	Locos    []DCCLoco `yaml:"locos"`
}

// DCCLoco is one refreshed DCC decoder.
type DCCLoco struct {
	Address   int   `yaml:"address"`
	Speed     int   `yaml:"speed"`
	Forward   *bool `yaml:"forward"`
	Functions []int `yaml:"functions"`
}

// Motorola configures an MM command station.
type Motorola struct {
	Pin       int      `yaml:"pin"`
	Accessory bool     `yaml:"accessory"`
	Locos     []MMLoco `yaml:"locos"`
}

// MMLoco is one refreshed MM decoder.
type MMLoco struct {
	Address  int  `yaml:"address"`
	Speed    int  `yaml:"speed"`
	Function bool `yaml:"function"`
}

// MFX configures the mfx sender.
type MFX struct {
	Pin     int    `yaml:"pin"`
	Payload string `yaml:"payload"`
}

// Stream configures the streaming run.
type Stream struct {
	// Duration bounds the run; empty runs until interrupted.
	Duration string `yaml:"duration"`
	// Journal is the SQLite frame journal path; empty disables journaling.
	Journal string `yaml:"journal"`
	// Statsview is the listen address of the runtime stats viewer.
	Statsview string `yaml:"statsview"`
	// Labels are stored with the journal session.
	Labels map[string]string `yaml:"labels"`
}

// Default returns the configuration used when no file is given: a powered
// selectrix bus with every channel zero.
func Default() *Config {
	cfg := &Config{Protocol: ProtocolSelectrix}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates the station file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates data against the schema and decodes it. filename is used
// in error positions only.
func Parse(filename string, data []byte) (*Config, error) {
	if err := validateSchema(filename, data); err != nil {
		return nil, err
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, &Error{Code: ErrCodeSyntax, Message: err.Error()}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Protocol == "" {
		c.Protocol = ProtocolSelectrix
	}
	if c.Selectrix.Variant == "" {
		c.Selectrix.Variant = "t0t1"
	}
	if c.Selectrix.Address == "" {
		c.Selectrix.Address = "inverted"
	}
	if c.Selectrix.Pins.T0 == nil {
		c.Selectrix.Pins.T0 = intPtr(0)
	}
	if c.Selectrix.Pins.Data == nil {
		c.Selectrix.Pins.Data = intPtr(1)
	}
	if c.Selectrix.Power == nil {
		on := true
		c.Selectrix.Power = &on
	}
	if c.DCC.Cutout == nil {
		c.DCC.Cutout = intPtr(c.DCC.Pin + 1)
	}
}

// validate checks what the schema cannot express.
func (c *Config) validate() error {
	if _, err := c.Duration(); err != nil {
		return &Error{Code: ErrCodeInvalid, Path: "stream.duration", Message: err.Error()}
	}
	t0, data := *c.Selectrix.Pins.T0, *c.Selectrix.Pins.Data
	lines := 1
	if c.Selectrix.Variant == "differential" {
		lines = 2
	}
	if t0 >= data && t0 < data+lines {
		return &Error{Code: ErrCodeInvalid, Path: "selectrix.pins", Message: fmt.Sprintf("t0 pin %d overlaps data pins %d..%d", t0, data, data+lines-1)}
	}
	if c.DCC.Railcom && *c.DCC.Cutout == c.DCC.Pin {
		return &Error{Code: ErrCodeInvalid, Path: "dcc.cutout", Message: "cutout and data share a pin"}
	}
	seen := make(map[int]bool)
	for i, l := range c.DCC.Locos {
		if seen[l.Address] {
			return &Error{Code: ErrCodeInvalid, Path: fmt.Sprintf("dcc.locos[%d]", i), Message: fmt.Sprintf("duplicate address %d", l.Address)}
		}
		seen[l.Address] = true
	}
	seen = make(map[int]bool)
	for i, l := range c.Motorola.Locos {
		if seen[l.Address] {
			return &Error{Code: ErrCodeInvalid, Path: fmt.Sprintf("motorola.locos[%d]", i), Message: fmt.Sprintf("duplicate address %d", l.Address)}
		}
		seen[l.Address] = true
	}
	return nil
}

// Duration parses stream.duration. Zero means unbounded.
func (c *Config) Duration() (time.Duration, error) {
	if c.Stream.Duration == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Stream.Duration)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}

func intPtr(v int) *int { return &v }
