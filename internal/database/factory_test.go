package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"projectdb-go/internal/config"
)

func TestNewDatabaseFromConfig(t *testing.T) {
	t.Run("memory database", func(t *testing.T) {
		cfg := config.DatabaseConfig{LocalMode: true, DataDir: ":memory:"}
		got, err := NewDatabaseFromConfig(cfg, false)
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if err := got.Initialize(context.Background()); err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}
	})

	t.Run("sqlite file named after the database", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.DatabaseConfig{LocalMode: true, DataDir: dir, DBName: "karabo"}
		got, err := NewDatabaseFromConfig(cfg, false)
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if err := got.Initialize(context.Background()); err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "karabo.db")); err != nil {
			t.Errorf("database file not created: %v", err)
		}
	})

	t.Run("local mode without data_dir", func(t *testing.T) {
		got, err := NewDatabaseFromConfig(config.DatabaseConfig{LocalMode: true}, false)
		if err == nil {
			t.Error("NewDatabaseFromConfig() expected error for missing data_dir, got nil")
		}
		if got != nil {
			t.Error("NewDatabaseFromConfig() should return nil on error")
			got.Close()
		}
	})

	t.Run("remote mode without host", func(t *testing.T) {
		got, err := NewDatabaseFromConfig(config.DatabaseConfig{DBName: "projectdb"}, false)
		if err == nil {
			t.Error("NewDatabaseFromConfig() expected error for missing host, got nil")
		}
		if got != nil {
			t.Error("NewDatabaseFromConfig() should return nil on error")
			got.Close()
		}
	})
}
