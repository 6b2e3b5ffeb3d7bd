package generator

import (
	"fmt"
	"sort"
	"time"

	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

// facilityTypes maps facility_id to facility_type.
func facilityTypes(facilities *quality.Table) (map[int64]string, error) {
	_, idCol, ok := facilities.Column("facility_id")
	if !ok {
		return nil, fmt.Errorf("facilities: missing column facility_id")
	}
	_, typeCol, ok := facilities.Column("facility_type")
	if !ok {
		return nil, fmt.Errorf("facilities: missing column facility_type")
	}
	types := make(map[int64]string, facilities.Len())
	for i := 0; i < facilities.Len(); i++ {
		id, _ := facilities.Value(i, idCol).(int64)
		ft, _ := facilities.Value(i, typeCol).(string)
		types[id] = ft
	}
	return types, nil
}

func columnPositions(t *quality.Table, table string, names ...string) ([]int, error) {
	out := make([]int, len(names))
	for i, name := range names {
		_, pos, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("%s: missing column %s", table, name)
		}
		out[i] = pos
	}
	return out, nil
}

type typeDay struct {
	facilityType string
	day          time.Time
}

// FacilityTypeAvgTimeSpent averages visit duration per facility type and
// visit date, rounded to two decimals.
func FacilityTypeAvgTimeSpent(d *Dataset) (*quality.Table, error) {
	types, err := facilityTypes(d.Facilities)
	if err != nil {
		return nil, err
	}
	pos, err := columnPositions(d.Visits, "visits", "facility_id", "visit_timestamp", "duration_minutes")
	if err != nil {
		return nil, err
	}

	type acc struct {
		sum   int64
		count int64
	}
	groups := map[typeDay]*acc{}
	var keys []typeDay
	for i := 0; i < d.Visits.Len(); i++ {
		id, _ := d.Visits.Value(i, pos[0]).(int64)
		ts, ok := d.Visits.Value(i, pos[1]).(time.Time)
		duration, okDur := d.Visits.Value(i, pos[2]).(int64)
		ft, okType := types[id]
		if !ok || !okDur || !okType {
			continue
		}
		k := typeDay{facilityType: ft, day: truncateDay(ts)}
		a := groups[k]
		if a == nil {
			a = &acc{}
			groups[k] = a
			keys = append(keys, k)
		}
		a.sum += duration
		a.count++
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].facilityType != keys[j].facilityType {
			return keys[i].facilityType < keys[j].facilityType
		}
		return keys[i].day.Before(keys[j].day)
	})

	out, err := quality.NewTable(
		quality.Column{Name: "facility_type", Kind: quality.KindText},
		quality.Column{Name: "visit_date", Kind: quality.KindTimestamp},
		quality.Column{Name: "avg_time_spent", Kind: quality.KindFloat},
	)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		a := groups[k]
		if err := out.Append(k.facilityType, k.day, round2(float64(a.sum)/float64(a.count))); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type typeName struct {
	facilityType string
	fullName     string
}

// PatientSumTreatmentCost totals treatment cost per facility type and
// patient full name ("first last").
func PatientSumTreatmentCost(d *Dataset) (*quality.Table, error) {
	types, err := facilityTypes(d.Facilities)
	if err != nil {
		return nil, err
	}
	pPos, err := columnPositions(d.Patients, "patients", "patient_id", "first_name", "last_name")
	if err != nil {
		return nil, err
	}
	vPos, err := columnPositions(d.Visits, "visits", "patient_id", "facility_id", "treatment_cost")
	if err != nil {
		return nil, err
	}

	names := make(map[int64]string, d.Patients.Len())
	for i := 0; i < d.Patients.Len(); i++ {
		id, _ := d.Patients.Value(i, pPos[0]).(int64)
		first, _ := d.Patients.Value(i, pPos[1]).(string)
		last, _ := d.Patients.Value(i, pPos[2]).(string)
		names[id] = first + " " + last
	}

	sums := map[typeName]float64{}
	var keys []typeName
	for i := 0; i < d.Visits.Len(); i++ {
		patientID, _ := d.Visits.Value(i, vPos[0]).(int64)
		facilityID, _ := d.Visits.Value(i, vPos[1]).(int64)
		cost, okCost := d.Visits.Value(i, vPos[2]).(float64)
		name, okName := names[patientID]
		ft, okType := types[facilityID]
		if !okCost || !okName || !okType {
			continue
		}
		k := typeName{facilityType: ft, fullName: name}
		if _, seen := sums[k]; !seen {
			keys = append(keys, k)
		}
		sums[k] += cost
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].facilityType != keys[j].facilityType {
			return keys[i].facilityType < keys[j].facilityType
		}
		return keys[i].fullName < keys[j].fullName
	})

	out, err := quality.NewTable(
		quality.Column{Name: "facility_type", Kind: quality.KindText},
		quality.Column{Name: "full_name", Kind: quality.KindText},
		quality.Column{Name: "sum_treatment_cost", Kind: quality.KindFloat},
	)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		// costs carry two decimals; rounding drops float accumulation noise
		if err := out.Append(k.facilityType, k.fullName, round2(sums[k])); err != nil {
			return nil, err
		}
	}
	return out, nil
}
