package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jo-hoe/platewatch/internal/attendance"
)

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	// UpsertEmployee inserts the employee or updates the row owning the same plate and returns its id.
	UpsertEmployee(ctx context.Context, employee attendance.Employee) (int64, error)
	ListEmployees(ctx context.Context) ([]attendance.Employee, error)
	// FindEmployeeByPlate matches the plate exactly and returns nil, nil when nobody owns it.
	FindEmployeeByPlate(ctx context.Context, plate string) (*attendance.Employee, error)

	AppendEntry(ctx context.Context, entry attendance.EntryLog) error
	// ListEntriesSince returns entries at or after since, newest first.
	ListEntriesSince(ctx context.Context, since time.Time) ([]attendance.EntryLog, error)
}
