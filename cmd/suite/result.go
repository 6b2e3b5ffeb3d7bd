package suite

import (
	"time"

	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

// Status of one check run.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	StatusError  Status = "error"
)

type CheckResult struct {
	Name      string            `json:"name"`
	Type      CheckType         `json:"type"`
	Side      Side              `json:"side,omitempty"`
	Status    Status            `json:"status"`
	Condition quality.Condition `json:"condition,omitempty"`
	Message   string            `json:"message,omitempty"`
	Details   quality.Violation `json:"details,omitempty"`
	Duration  time.Duration     `json:"duration_ns"`
}

// DatasetInfo describes one fetched side of a scenario.
type DatasetInfo struct {
	Locator  string        `json:"locator"`
	Rows     int           `json:"rows"`
	Columns  []string      `json:"columns,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

type ScenarioResult struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Requirement string        `json:"requirement,omitempty"`
	Source      *DatasetInfo  `json:"source,omitempty"`
	Target      *DatasetInfo  `json:"target,omitempty"`
	Checks      []CheckResult `json:"checks"`
	Duration    time.Duration `json:"duration_ns"`
}

// Passed reports whether every check of the scenario passed.
func (s ScenarioResult) Passed() bool {
	for _, c := range s.Checks {
		if c.Status != StatusPassed {
			return false
		}
	}
	return true
}

type Report struct {
	RunID     string           `json:"run_id"`
	Suite     string           `json:"suite,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration_ns"`
	Scenarios []ScenarioResult `json:"scenarios"`
}

type Summary struct {
	Scenarios int `json:"scenarios"`
	Checks    int `json:"checks"`
	Passed    int `json:"passed"`
	Failed    int `json:"failed"`
	Errors    int `json:"errors"`
}

func (r *Report) Summary() Summary {
	s := Summary{Scenarios: len(r.Scenarios)}
	for _, sc := range r.Scenarios {
		for _, c := range sc.Checks {
			s.Checks++
			switch c.Status {
			case StatusPassed:
				s.Passed++
			case StatusFailed:
				s.Failed++
			default:
				s.Errors++
			}
		}
	}
	return s
}

// Failed reports whether any check failed or errored.
func (r *Report) Failed() bool {
	s := r.Summary()
	return s.Failed > 0 || s.Errors > 0
}
