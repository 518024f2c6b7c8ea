package database

import (
	"context"
	"fmt"

	"github.com/jo-hoe/platewatch/internal/attendance"
)

// SampleRoster is the roster loaded by the seed command when none is configured
func SampleRoster() []attendance.Employee {
	return []attendance.Employee{
		{Name: "John Doe", LicensePlate: "HR26DK8337", Department: "IT", ExpectedArrival: attendance.MustParseTimeOfDay("09:00")},
		{Name: "Jane Smith", LicensePlate: "KA03MG9267", Department: "HR", ExpectedArrival: attendance.MustParseTimeOfDay("08:30")},
		{Name: "Bob Johnson", LicensePlate: "KA5GP8497", Department: "Engineering", ExpectedArrival: attendance.MustParseTimeOfDay("09:30")},
	}
}

// SeedEmployees upserts every employee, so seeding twice leaves one row per plate
func SeedEmployees(ctx context.Context, db DatabaseService, employees []attendance.Employee) (int, error) {
	for i, employee := range employees {
		if _, err := db.UpsertEmployee(ctx, employee); err != nil {
			return i, fmt.Errorf("seed employee %d: %w", i, err)
		}
	}
	return len(employees), nil
}
