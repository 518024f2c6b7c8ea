package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jo-hoe/platewatch/internal/attendance"
)

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// SQLite has a single writer and every in-memory connection is its own database
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS employees (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			license_plate TEXT NOT NULL UNIQUE,
			department TEXT NOT NULL DEFAULT '',
			expected_arrival TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entry_logs (
			id TEXT PRIMARY KEY,
			license_plate TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			employee_name TEXT NOT NULL,
			department TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('ON_TIME', 'LATE', 'INVALID')),
			minutes_late INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entry_logs_timestamp ON entry_logs (timestamp)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return nil, err
		}
	}

	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) UpsertEmployee(ctx context.Context, employee attendance.Employee) (int64, error) {
	if employee.LicensePlate == "" {
		return 0, fmt.Errorf("employee %q has no license plate", employee.Name)
	}
	if !employee.ExpectedArrival.Valid() {
		return 0, fmt.Errorf("employee %q has an invalid expected arrival", employee.Name)
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `INSERT INTO employees (name, license_plate, department, expected_arrival)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (license_plate) DO UPDATE SET
			name = excluded.name,
			department = excluded.department,
			expected_arrival = excluded.expected_arrival
		RETURNING id`,
		employee.Name, employee.LicensePlate, employee.Department, employee.ExpectedArrival.String()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert employee %s: %w", employee.LicensePlate, err)
	}
	return id, nil
}

func (s *SQLiteDatabase) ListEmployees(ctx context.Context) ([]attendance.Employee, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, license_plate, department, expected_arrival FROM employees ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var employees []attendance.Employee
	for rows.Next() {
		var row employeeRow
		if err := rows.Scan(&row.ID, &row.Name, &row.LicensePlate, &row.Department, &row.ExpectedArrival); err != nil {
			return nil, err
		}
		employee, err := row.toEmployee()
		if err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}
	return employees, rows.Err()
}

func (s *SQLiteDatabase) FindEmployeeByPlate(ctx context.Context, plate string) (*attendance.Employee, error) {
	var row employeeRow
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, license_plate, department, expected_arrival FROM employees WHERE license_plate = ?", plate).
		Scan(&row.ID, &row.Name, &row.LicensePlate, &row.Department, &row.ExpectedArrival)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find employee by plate %s: %w", plate, err)
	}

	employee, err := row.toEmployee()
	if err != nil {
		return nil, err
	}
	return &employee, nil
}

func (s *SQLiteDatabase) AppendEntry(ctx context.Context, entry attendance.EntryLog) error {
	row := entryRow{
		ID:           entry.ID,
		LicensePlate: entry.LicensePlate,
		Timestamp:    entry.Timestamp.UnixMilli(),
		EmployeeName: entry.EmployeeName,
		Department:   entry.Department,
		Status:       string(entry.Status),
	}
	if entry.MinutesLate != nil {
		row.MinutesLate = sql.NullInt64{Int64: int64(*entry.MinutesLate), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO entry_logs
		(id, license_plate, timestamp, employee_name, department, status, minutes_late)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.LicensePlate, row.Timestamp, row.EmployeeName, row.Department, row.Status, row.MinutesLate)
	if err != nil {
		return fmt.Errorf("insert entry %s: %w", entry.ID, err)
	}
	return nil
}

func (s *SQLiteDatabase) ListEntriesSince(ctx context.Context, since time.Time) ([]attendance.EntryLog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, license_plate, timestamp, employee_name, department, status, minutes_late
		FROM entry_logs WHERE timestamp >= ? ORDER BY timestamp DESC, id`, since.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var entries []attendance.EntryLog
	for rows.Next() {
		var row entryRow
		if err := rows.Scan(&row.ID, &row.LicensePlate, &row.Timestamp, &row.EmployeeName, &row.Department, &row.Status, &row.MinutesLate); err != nil {
			return nil, err
		}
		entry, err := row.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r employeeRow) toEmployee() (attendance.Employee, error) {
	expected, err := attendance.ParseTimeOfDay(r.ExpectedArrival)
	if err != nil {
		return attendance.Employee{}, fmt.Errorf("employee %d: %w", r.ID, err)
	}
	return attendance.Employee{
		ID:              r.ID,
		Name:            r.Name,
		LicensePlate:    r.LicensePlate,
		Department:      r.Department,
		ExpectedArrival: expected,
	}, nil
}

func (r entryRow) toEntry() (attendance.EntryLog, error) {
	status, err := attendance.ParseEntryStatus(r.Status)
	if err != nil {
		return attendance.EntryLog{}, fmt.Errorf("entry %s: %w", r.ID, err)
	}
	entry := attendance.EntryLog{
		ID:           r.ID,
		LicensePlate: r.LicensePlate,
		Timestamp:    time.UnixMilli(r.Timestamp),
		EmployeeName: r.EmployeeName,
		Department:   r.Department,
		Status:       status,
	}
	if r.MinutesLate.Valid {
		minutes := int(r.MinutesLate.Int64)
		entry.MinutesLate = &minutes
	}
	return entry, nil
}
