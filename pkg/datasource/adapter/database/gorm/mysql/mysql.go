// Package mysql registers the GORM dialector for MySQL and MariaDB data sources.
package mysql

import (
	"fmt"
	"net"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"go.uber.org/fx"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/datasource/pkg/datasource/adapter/database/gorm"
	"github.com/tigerroll/datasource/pkg/datasource/core/dbconfig"
)

const defaultPort = 3306

func init() {
	gormadapter.RegisterDialector("mysql", NewDialector)
}

// NewDialector builds a mysql dialector for cfg.
func NewDialector(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mysql host cannot be empty")
	}
	return mysql.Open(ConnectionString(cfg)), nil
}

// ConnectionString renders cfg as a go-sql-driver DSN
// (user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=true&loc=Local).
func ConnectionString(c dbconfig.DatabaseConfig) string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}

	mc := gomysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Loc = time.Local
	mc.Params = map[string]string{"charset": "utf8mb4"}
	for k, v := range c.Params {
		mc.Params[k] = v
	}
	return mc.FormatDSN()
}

// NewDriver exposes the mysql dialector to the fx driver group.
func NewDriver() gormadapter.Driver {
	return gormadapter.Driver{Type: "mysql", Factory: NewDialector}
}

// Module contributes the mysql driver to the application.
var Module = fx.Options(gormadapter.AsDriver(NewDriver))
