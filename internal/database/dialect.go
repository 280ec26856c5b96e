package database

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

// sqliteDSN adds the connection parameters the local store relies on:
// enforced foreign keys, a lock wait, and write locks taken at BEGIN so a
// transaction never upgrades from reader to writer halfway through.
func sqliteDSN(path string) string {
	return path + "?_foreign_keys=1&_busy_timeout=5000&_txlock=immediate"
}

// MySQLOptions locate a remote store.
type MySQLOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string

	PoolSize    int
	MaxOverflow int
	Recycle     time.Duration
}

// mysqlDSN formats opts for the mysql driver. ANSI_QUOTES lets the
// shared SQL quote identifiers with double quotes.
func mysqlDSN(opts MySQLOptions) string {
	cfg := mysql.NewConfig()
	cfg.User = opts.User
	cfg.Passwd = opts.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	cfg.DBName = opts.DBName
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true
	cfg.ClientFoundRows = true
	cfg.Params = map[string]string{
		"sql_mode":  "'TRADITIONAL,ANSI_QUOTES'",
		"time_zone": "'+00:00'",
	}
	return cfg.FormatDSN()
}

// isUniqueViolation reports whether err is a unique-constraint failure
// from either driver.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062 // ER_DUP_ENTRY
	}
	return false
}

// isSerializationFailure reports whether err aborted a transaction that
// lost a lock race. sqlite serializes writers and never reports one.
func isSerializationFailure(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1213 // ER_LOCK_DEADLOCK
	}
	return false
}
