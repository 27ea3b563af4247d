package backtest

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrConfig                = errors.New("backtest: invalid config")
	ErrProvider              = errors.New("backtest: price provider failed")
	ErrResourceLimitExceeded = errors.New("backtest: resource limit exceeded")
	ErrAborted               = errors.New("backtest: aborted")
)

// ConfigError reports an invalid run configuration or unusable input
// series. It is returned before any bar is simulated.
type ConfigError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "backtest: config: " + e.Msg
	}
	return fmt.Sprintf("backtest: config: %s: %s", e.Field, e.Msg)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
func (e *ConfigError) Unwrap() error        { return e.Err }

func configErr(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Msg: err.Error(), Err: err}
}

// ProviderError wraps a failure of the price series provider unchanged.
type ProviderError struct {
	Instrument string
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("backtest: provider: %s: %v", e.Instrument, e.Err)
}

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }
func (e *ProviderError) Unwrap() error        { return e.Err }

// ResourceLimitError reports that a run exceeded its bar or wall-clock
// budget. No partial result is returned with it.
type ResourceLimitError struct {
	Limit   string // "bars" or "duration"
	Bars    int
	MaxBars int
	Elapsed time.Duration
	Max     time.Duration
}

func (e *ResourceLimitError) Error() string {
	if e.Limit == "bars" {
		return fmt.Sprintf("backtest: resource limit exceeded: %d bars > max %d", e.Bars, e.MaxBars)
	}
	return fmt.Sprintf("backtest: resource limit exceeded: %s after %d bars > max %s", e.Elapsed.Round(time.Millisecond), e.Bars, e.Max)
}

func (e *ResourceLimitError) Is(target error) bool { return target == ErrResourceLimitExceeded }
