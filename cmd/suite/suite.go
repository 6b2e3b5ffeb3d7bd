// Package suite loads check suites and runs them against providers.
package suite

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/DanyaHDanny/tafordqe/cmd/providers"
)

var (
	ErrNoScenarios          = errors.New("suite has no scenarios")
	ErrScenarioNameRequired = errors.New("scenario name is required")
	ErrDuplicateScenario    = errors.New("duplicate scenario name")
	ErrNoChecks             = errors.New("scenario has no checks")
	ErrUnknownCheck         = errors.New("unknown check type")
	ErrUnknownSide          = errors.New("unknown check side")
	ErrSideRequired         = errors.New("check needs a dataset the scenario does not define")
	ErrColumnsNotAllowed    = errors.New("check does not take columns")
	ErrToleranceInvalid     = errors.New("float tolerance must not be negative")
	ErrUnsupportedVersion   = errors.New("unsupported suite version")
)

// CheckType names one of the dataset checks.
type CheckType string

const (
	CheckCount        CheckType = "count"
	CheckCompleteness CheckType = "completeness"
	CheckEmpty        CheckType = "empty"
	CheckNotEmpty     CheckType = "not_empty"
	CheckNotNull      CheckType = "not_null"
	CheckDuplicates   CheckType = "duplicates"
)

// crossTable reports whether the check compares source against target.
func (c CheckType) crossTable() bool {
	return c == CheckCount || c == CheckCompleteness
}

func (c CheckType) valid() bool {
	switch c {
	case CheckCount, CheckCompleteness, CheckEmpty, CheckNotEmpty, CheckNotNull, CheckDuplicates:
		return true
	}
	return false
}

// Side selects which dataset a single-table check inspects.
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
	SideBoth   Side = "both"
)

type Suite struct {
	Version   int        `yaml:"version"`
	Name      string     `yaml:"name"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// Scenario pairs a source and a target dataset with the checks to run on them.
type Scenario struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	Requirement string             `yaml:"requirement,omitempty"`
	Source      *providers.Locator `yaml:"source,omitempty"`
	Target      *providers.Locator `yaml:"target,omitempty"`
	Checks      []CheckSpec        `yaml:"checks"`
}

type CheckSpec struct {
	Type           CheckType `yaml:"type"`
	On             Side      `yaml:"on,omitempty"`
	Columns        []string  `yaml:"columns,omitempty"`
	FloatTolerance *float64  `yaml:"float_tolerance,omitempty"`
}

// sides lists the datasets the check runs on.
func (c CheckSpec) sides() []Side {
	if c.Type.crossTable() {
		return nil
	}
	switch c.On {
	case SideBoth:
		return []Side{SideSource, SideTarget}
	case "":
		return []Side{SideTarget}
	}
	return []Side{c.On}
}

// Load reads and validates a suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a suite, rejecting unknown fields, and validates it.
func Parse(data []byte) (*Suite, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Suite
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse suite: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Suite) Validate() error {
	if s.Version != 0 && s.Version != 1 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, s.Version)
	}
	if len(s.Scenarios) == 0 {
		return ErrNoScenarios
	}
	seen := map[string]bool{}
	for i, sc := range s.Scenarios {
		if sc.Name == "" {
			return fmt.Errorf("scenario %d: %w", i, ErrScenarioNameRequired)
		}
		if seen[sc.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateScenario, sc.Name)
		}
		seen[sc.Name] = true
		if err := sc.validate(); err != nil {
			return fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
	}
	return nil
}

func (sc *Scenario) validate() error {
	if len(sc.Checks) == 0 {
		return ErrNoChecks
	}
	for _, side := range []Side{SideSource, SideTarget} {
		loc := sc.locator(side)
		if loc == nil {
			continue
		}
		if err := loc.Validate(); err != nil {
			return fmt.Errorf("%s: %w", side, err)
		}
	}

	for i, c := range sc.Checks {
		if !c.Type.valid() {
			return fmt.Errorf("check %d: %w: %q", i, ErrUnknownCheck, c.Type)
		}
		switch c.On {
		case "", SideSource, SideTarget, SideBoth:
		default:
			return fmt.Errorf("check %d: %w: %q", i, ErrUnknownSide, c.On)
		}
		if len(c.Columns) > 0 && c.Type != CheckNotNull && c.Type != CheckDuplicates {
			return fmt.Errorf("check %d (%s): %w", i, c.Type, ErrColumnsNotAllowed)
		}
		if c.FloatTolerance != nil && *c.FloatTolerance < 0 {
			return fmt.Errorf("check %d (%s): %w", i, c.Type, ErrToleranceInvalid)
		}
		needs := c.sides()
		if c.Type.crossTable() {
			needs = []Side{SideSource, SideTarget}
		}
		for _, side := range needs {
			if sc.locator(side) == nil {
				return fmt.Errorf("check %d (%s): %w: %s", i, c.Type, ErrSideRequired, side)
			}
		}
	}
	return nil
}

func (sc *Scenario) locator(side Side) *providers.Locator {
	if side == SideSource {
		return sc.Source
	}
	return sc.Target
}

// Usage reports which backends a suite needs.
type Usage struct {
	SQL   bool
	S3    bool
	Files bool
}

func (s *Suite) Usage() Usage {
	var u Usage
	for _, sc := range s.Scenarios {
		for _, loc := range []*providers.Locator{sc.Source, sc.Target} {
			switch {
			case loc == nil:
			case loc.IsSQL():
				u.SQL = true
			case loc.IsS3():
				u.S3 = true
			default:
				u.Files = true
			}
		}
	}
	return u
}
