package test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/tigerroll/datasource/pkg/datasource/core/port"
)

// StaticDataSource is a port.DataSource over a fixed *sql.DB.
type StaticDataSource struct {
	HandleID    string
	LogicalName string
	Kind        port.Type
	Pool        *sql.DB
}

// NewStaticDataSource creates a StaticDataSource with a random ID.
func NewStaticDataSource(name string, typ port.Type, db *sql.DB) *StaticDataSource {
	return &StaticDataSource{HandleID: uuid.NewString(), LogicalName: name, Kind: typ, Pool: db}
}

func (s *StaticDataSource) ID() string { return s.HandleID }
func (s *StaticDataSource) Name() string { return s.LogicalName }
func (s *StaticDataSource) Type() port.Type { return s.Kind }
func (s *StaticDataSource) DB() *sql.DB { return s.Pool }

func (s *StaticDataSource) Conn(ctx context.Context) (*sql.Conn, error) {
	return s.Pool.Conn(ctx)
}

// NewSQLMockDataSource creates a StaticDataSource backed by go-sqlmock. The mock database is
// closed when the test ends.
func NewSQLMockDataSource(t testing.TB, name string, typ port.Type) (*StaticDataSource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStaticDataSource(name, typ, db), mock
}

var _ port.DataSource = (*StaticDataSource)(nil)
