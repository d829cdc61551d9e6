// Package bench drives load through an httpbridge transport and reports
// latency and error statistics. It supports a fixed request count, a
// constant request rate, and virtual users with think time.
package bench

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExecutionMode selects how requests are scheduled
type ExecutionMode int

const (
	// CountMode sends Requests requests with VUs workers
	CountMode ExecutionMode = iota
	// RateMode sends Rate requests per second for Duration
	RateMode
	// VUMode runs VUs virtual users with think time for Duration
	VUMode
)

var modeNames = [...]string{CountMode: "count", RateMode: "rate", VUMode: "vu"}

func (m ExecutionMode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("ExecutionMode(%d)", int(m))
}

// ParseMode accepts "count" (the default for ""), "rate", "vu" or "vus"
func ParseMode(s string) (ExecutionMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return CountMode, nil
	case "vus":
		return VUMode, nil
	}
	for m, name := range modeNames {
		if s == name {
			return ExecutionMode(m), nil
		}
	}
	return CountMode, fmt.Errorf("unknown bench mode %q (want count, rate or vu)", s)
}

type Config struct {
	Mode       ExecutionMode
	Requests   int           // CountMode
	Duration   time.Duration // RateMode, VUMode
	Rate       float64       // RateMode, requests per second
	VUs        int           // CountMode workers, VUMode users
	MaxVUs     int           // in-flight cap
	ThinkTime  time.Duration // VUMode pause between requests
	RampUp     time.Duration
	Thresholds Thresholds
}

// DefaultConfig is 1000 sequential requests
func DefaultConfig() *Config {
	return &Config{
		Mode:     CountMode,
		Requests: 1000,
		Duration: 30 * time.Second,
		Rate:     10,
		VUs:      1,
		MaxVUs:   100,
	}
}

// Validate reports the first setting that cannot run in c.Mode
func (c *Config) Validate() error {
	var errs []string
	need := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	switch c.Mode {
	case CountMode:
		need(c.Requests > 0, "requests must be positive in count mode")
		need(c.VUs > 0, "VUs must be positive in count mode")
	case RateMode:
		need(c.Duration > 0, "duration must be positive")
		need(c.Rate > 0, "rate must be positive in rate mode")
	case VUMode:
		need(c.Duration > 0, "duration must be positive")
		need(c.VUs > 0, "VUs must be positive in VU mode")
	default:
		return fmt.Errorf("unknown mode %d", int(c.Mode))
	}
	need(c.MaxVUs >= 1, "maxVUs must be at least 1")
	need(c.RampUp >= 0, "rampUp cannot be negative")
	need(c.Mode == CountMode || c.RampUp <= c.Duration, "rampUp cannot exceed duration")

	if len(errs) == 0 {
		return nil
	}
	return errors.New(errs[0])
}
