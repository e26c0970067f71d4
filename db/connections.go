package db

import (
	"github.com/jmoiron/sqlx"
)

const (
	DriverMysql  = "mysql"
	DriverSqlite = "sqlite3"
)

type Connections struct {
	Db     *sqlx.DB
	Driver string
}

// upsert picks the driver specific flavour of an upsert statement
func (c Connections) upsert(mysqlQuery, sqliteQuery string) string {
	if c.Driver == DriverMysql {
		return mysqlQuery
	}
	return sqliteQuery
}
