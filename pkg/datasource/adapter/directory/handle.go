package directory

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tigerroll/datasource/pkg/datasource/core/port"
)

// dataSource is the handle returned for a bound object.
type dataSource struct {
	id   string
	name string
	db   *sql.DB
}

func (d *dataSource) ID() string { return d.id }
func (d *dataSource) Name() string { return d.name }
func (d *dataSource) Type() port.Type { return port.TypeDirectory }
func (d *dataSource) DB() *sql.DB { return d.db }

func (d *dataSource) Conn(ctx context.Context) (*sql.Conn, error) {
	return d.db.Conn(ctx)
}

// wrap turns a bound object into a handle. Supported bindings are *sql.DB, *gorm.DB and port.DataSource.
func wrap(name string, obj interface{}) (port.DataSource, error) {
	if isNil(obj) {
		return nil, fmt.Errorf("bound object of type %T is nil", obj)
	}
	var db *sql.DB
	switch v := obj.(type) {
	case *sql.DB:
		db = v
	case *gorm.DB:
		sqlDB, err := v.DB()
		if err != nil {
			return nil, fmt.Errorf("bound *gorm.DB has no connection pool: %w", err)
		}
		db = sqlDB
	case port.DataSource:
		db = v.DB()
	default:
		return nil, fmt.Errorf("bound object of type %T is not a data source", obj)
	}
	if db == nil {
		return nil, fmt.Errorf("bound object of type %T has a nil connection pool", obj)
	}
	return &dataSource{id: uuid.NewString(), name: name, db: db}, nil
}

// isNil reports whether obj is nil or an interface holding a nil pointer, map, func or channel.
func isNil(obj interface{}) bool {
	if obj == nil {
		return true
	}
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
