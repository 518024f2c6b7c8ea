package database

import "database/sql"

type employeeRow struct {
	ID              int64  `db:"id"`
	Name            string `db:"name"`
	LicensePlate    string `db:"license_plate"`
	Department      string `db:"department"`
	ExpectedArrival string `db:"expected_arrival"` // HH:MM
}

type entryRow struct {
	ID           string        `db:"id"`
	LicensePlate string        `db:"license_plate"`
	Timestamp    int64         `db:"timestamp"` // unix milliseconds
	EmployeeName string        `db:"employee_name"`
	Department   string        `db:"department"`
	Status       string        `db:"status"`
	MinutesLate  sql.NullInt64 `db:"minutes_late"`
}
