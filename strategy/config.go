package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/signal"
)

var (
	ErrInvalidConfig   = errors.New("invalid strategy")
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// Config is a declarative strategy: the indicators it needs, the entry and
// exit rules over their keys, and the risk exits.
type Config struct {
	Name        string                  `json:"name" yaml:"name"`
	Description string                  `json:"description,omitempty" yaml:"description,omitempty"`
	Indicators  []indicators.Definition `json:"indicators" yaml:"indicators"`
	Entry       signal.RuleSet          `json:"entry" yaml:"entry"`
	Exit        signal.RuleSet          `json:"exit" yaml:"exit"`
	Risk        risk.Policy             `json:"risk" yaml:"risk"`
}

// Validate checks the parts of the config that do not need an indicator
// registry. Compile performs the full check.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if len(c.Entry.Conditions) == 0 {
		return fmt.Errorf("%w: %s: at least one entry condition is required", ErrInvalidConfig, c.Name)
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, c.Name, err)
	}
	return nil
}

// Compiled is a validated strategy ready for one run. It owns stateful
// indicators and must not be shared between runs.
type Compiled struct {
	Name   string
	Engine *indicators.Engine
	Entry  signal.Rule
	Exit   signal.Rule
	Risk   risk.Policy
}

// Compile validates c, instantiates its indicators from reg (nil means the
// default registry) and compiles both rule sets against the keys the
// indicators publish.
func (c Config) Compile(reg *indicators.Registry) (*Compiled, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	eng, err := indicators.NewEngine(reg, c.Indicators)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: indicators: %w", ErrInvalidConfig, c.Name, err)
	}
	keys := eng.Keys()

	entry, err := signal.Compile(c.Entry, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: entry: %w", ErrInvalidConfig, c.Name, err)
	}
	exit, err := signal.Compile(c.Exit, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: exit: %w", ErrInvalidConfig, c.Name, err)
	}

	return &Compiled{
		Name:   c.Name,
		Engine: eng,
		Entry:  entry,
		Exit:   exit,
		Risk:   c.Risk,
	}, nil
}

// Selection picks either a built-in strategy (with optional parameter
// overrides) or a custom Config.
type Selection struct {
	Builtin string            `json:"builtin,omitempty" yaml:"builtin,omitempty"`
	Params  indicators.Params `json:"params,omitempty" yaml:"params,omitempty"`
	Custom  *Config           `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// Resolve returns the Config the selection refers to.
func (s Selection) Resolve() (Config, error) {
	switch {
	case s.Builtin != "" && s.Custom != nil:
		return Config{}, fmt.Errorf("%w: set either builtin or custom, not both", ErrInvalidConfig)
	case s.Custom != nil:
		if len(s.Params) > 0 {
			return Config{}, fmt.Errorf("%w: params only apply to built-in strategies", ErrInvalidConfig)
		}
		return *s.Custom, nil
	case s.Builtin != "":
		return Builtin(s.Builtin, s.Params)
	}
	return Config{}, fmt.Errorf("%w: no strategy selected", ErrInvalidConfig)
}

func (s Selection) String() string {
	if s.Custom != nil {
		return s.Custom.Name
	}
	return s.Builtin
}
