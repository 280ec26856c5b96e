package database

import (
	"fmt"
	"path/filepath"
	"time"

	"projectdb-go/internal/config"
)

// NewDatabaseFromConfig opens the relational store described by cfg. Local
// mode uses a sqlite file named after the database under DataDir; remote
// mode connects to mysql with the configured pool.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, removeOrphans bool) (*Database, error) {
	if cfg.LocalMode {
		switch cfg.DataDir {
		case "":
			return nil, fmt.Errorf("data_dir required for local mode")
		case ":memory:":
			return NewSQLiteDatabase(":memory:", removeOrphans)
		}
		name := cfg.DBName
		if name == "" {
			name = config.DefaultDBName
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, name+".db"), removeOrphans)
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("host required for remote mode")
	}
	return NewMySQLDatabase(MySQLOptions{
		Host:        cfg.Host,
		Port:        cfg.Port,
		User:        cfg.User,
		Password:    cfg.Password,
		DBName:      cfg.DBName,
		PoolSize:    cfg.PoolSize,
		MaxOverflow: cfg.MaxOverflow,
		Recycle:     time.Duration(cfg.PoolRecycleSeconds) * time.Second,
	}, removeOrphans)
}
