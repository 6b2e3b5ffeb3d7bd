// Package generator produces the synthetic clinic dataset used to exercise
// suites end to end: patients, facilities, and their visits.
package generator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

var (
	ErrPatientsRequired      = errors.New("at least one patient is required")
	ErrFacilityTypesRequired = errors.New("at least one facility type is required")
	ErrInvalidDateRange      = errors.New("start date must not be after end date")
	ErrInvalidVisitRange     = errors.New("visits per day range is invalid")
)

const (
	minTreatmentCost = 50.0
	maxTreatmentCost = 5000.0
	minDuration      = 15
	maxDuration      = 60
	minPatientAge    = 18
	maxPatientAge    = 100
)

type Config struct {
	Patients        int
	StartDate       time.Time
	EndDate         time.Time
	FacilityTypes   []string
	MinVisitsPerDay int
	MaxVisitsPerDay int
	// Seed makes the output reproducible. Zero picks a random seed.
	Seed int64
}

func DefaultConfig() Config {
	return Config{
		Patients:        30,
		StartDate:       time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2025, time.April, 2, 0, 0, 0, 0, time.UTC),
		FacilityTypes:   []string{"Hospital", "Clinic", "Urgent Care", "Specialty Center"},
		MinVisitsPerDay: 7,
		MaxVisitsPerDay: 10,
	}
}

func (c Config) Validate() error {
	if c.Patients <= 0 {
		return ErrPatientsRequired
	}
	if len(c.FacilityTypes) == 0 {
		return ErrFacilityTypesRequired
	}
	if c.StartDate.After(c.EndDate) {
		return ErrInvalidDateRange
	}
	if c.MinVisitsPerDay < 0 || c.MaxVisitsPerDay < c.MinVisitsPerDay {
		return fmt.Errorf("%w: %d-%d", ErrInvalidVisitRange, c.MinVisitsPerDay, c.MaxVisitsPerDay)
	}
	return nil
}

// Dataset is one generated run.
type Dataset struct {
	Patients   *quality.Table
	Facilities *quality.Table
	Visits     *quality.Table
}

// Generate builds the three tables. The same non-zero seed always yields
// the same dataset.
func Generate(cfg Config) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	faker := gofakeit.New(cfg.Seed)

	patients, err := generatePatients(faker, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate patients: %w", err)
	}
	facilities, err := generateFacilities(faker, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate facilities: %w", err)
	}
	visits, err := generateVisits(faker, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate visits: %w", err)
	}
	return &Dataset{Patients: patients, Facilities: facilities, Visits: visits}, nil
}

func generatePatients(faker *gofakeit.Faker, cfg Config) (*quality.Table, error) {
	t, err := quality.NewTable(
		quality.Column{Name: "patient_id", Kind: quality.KindInteger},
		quality.Column{Name: "first_name", Kind: quality.KindText},
		quality.Column{Name: "last_name", Kind: quality.KindText},
		quality.Column{Name: "date_of_birth", Kind: quality.KindTimestamp},
		quality.Column{Name: "address", Kind: quality.KindText},
	)
	if err != nil {
		return nil, err
	}
	// ages are relative to the end of the range so a seed stays reproducible
	oldest := cfg.EndDate.AddDate(-maxPatientAge, 0, 0)
	youngest := cfg.EndDate.AddDate(-minPatientAge, 0, 0)
	for i := 1; i <= cfg.Patients; i++ {
		dob := truncateDay(faker.DateRange(oldest, youngest))
		if err := t.Append(i, faker.FirstName(), faker.LastName(), dob, faker.Address().Address); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func generateFacilities(faker *gofakeit.Faker, cfg Config) (*quality.Table, error) {
	t, err := quality.NewTable(
		quality.Column{Name: "facility_id", Kind: quality.KindInteger},
		quality.Column{Name: "facility_name", Kind: quality.KindText},
		quality.Column{Name: "facility_type", Kind: quality.KindText},
		quality.Column{Name: "address", Kind: quality.KindText},
		quality.Column{Name: "city", Kind: quality.KindText},
		quality.Column{Name: "state", Kind: quality.KindText},
	)
	if err != nil {
		return nil, err
	}
	city, state := faker.City(), faker.State()
	for i, facilityType := range cfg.FacilityTypes {
		if err := t.Append(i+1, faker.Company(), facilityType, faker.Address().Address, city, state); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func generateVisits(faker *gofakeit.Faker, cfg Config) (*quality.Table, error) {
	t, err := quality.NewTable(
		quality.Column{Name: "patient_id", Kind: quality.KindInteger},
		quality.Column{Name: "facility_id", Kind: quality.KindInteger},
		quality.Column{Name: "visit_timestamp", Kind: quality.KindTimestamp},
		quality.Column{Name: "treatment_cost", Kind: quality.KindFloat},
		quality.Column{Name: "duration_minutes", Kind: quality.KindInteger},
	)
	if err != nil {
		return nil, err
	}
	last := truncateDay(cfg.EndDate)
	for day := truncateDay(cfg.StartDate); !day.After(last); day = day.AddDate(0, 0, 1) {
		n := faker.IntRange(cfg.MinVisitsPerDay, cfg.MaxVisitsPerDay)
		for v := 0; v < n; v++ {
			ts := day.Add(time.Duration(faker.IntRange(0, 23))*time.Hour +
				time.Duration(faker.IntRange(0, 59))*time.Minute +
				time.Duration(faker.IntRange(0, 59))*time.Second)
			err := t.Append(
				faker.IntRange(1, cfg.Patients),
				faker.IntRange(1, len(cfg.FacilityTypes)),
				ts,
				round2(faker.Float64Range(minTreatmentCost, maxTreatmentCost)),
				faker.IntRange(minDuration, maxDuration),
			)
			if err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
