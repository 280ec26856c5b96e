package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{
		"ProjectDomain", "Project", "ProjectSubproject", "Scene", "SceneLinkedScene",
		"Macro", "DeviceServer", "DeviceInstance", "DeviceConfig", "DatabaseMetadata",
		"schema_migrations",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestMigrateUp_RecordsSchemaVersion(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	var version string
	if err := db.QueryRow(`SELECT value FROM DatabaseMetadata WHERE "key" = 'schema_version'`).Scan(&version); err != nil {
		t.Fatalf("reading schema_version: %v", err)
	}
	if version != "1" {
		t.Errorf("schema_version = %q, want 1", version)
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	err := CheckDBMigrationStatus(db, SQLite)
	if err == nil {
		t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}
	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	if err := CheckDBMigrationStatus(db, SQLite); err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db, SQLite); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}
	if err := CheckDBMigrationStatus(db, SQLite); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestMigrateUp_UnknownDialect(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, Dialect("oracle")); err == nil {
		t.Error("MigrateUp() with unknown dialect succeeded, want error")
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// A project must belong to an existing domain.
	_, err := db.Exec(`
		INSERT INTO Project (uuid, name, date, project_domain_id)
		VALUES ('p1', 'P', '2024-01-15 10:30:00', 42)
	`)
	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_ConfigNameUniquePerInstance(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	mustExec(t, db, `INSERT INTO ProjectDomain (id, name) VALUES (1, 'CAS')`)
	mustExec(t, db, `INSERT INTO DeviceInstance (id, uuid, name, date, project_domain_id) VALUES (1, 'i1', 'MOTOR_1', '2024-01-15 10:30:00', 1)`)
	mustExec(t, db, `INSERT INTO DeviceConfig (uuid, name, date, project_domain_id, device_instance_id) VALUES ('c1', 'default', '2024-01-15 10:30:00', 1, 1)`)

	_, err := db.Exec(`INSERT INTO DeviceConfig (uuid, name, date, project_domain_id, device_instance_id) VALUES ('c2', 'default', '2024-01-15 10:30:00', 1, 1)`)
	if err == nil {
		t.Error("Expected unique constraint violation for duplicate config name, but insert succeeded")
	}

	// Detached configs do not collide.
	mustExec(t, db, `INSERT INTO DeviceConfig (uuid, name, date, project_domain_id) VALUES ('c3', 'default', '2024-01-15 10:30:00', 1)`)
	mustExec(t, db, `INSERT INTO DeviceConfig (uuid, name, date, project_domain_id) VALUES ('c4', 'default', '2024-01-15 10:30:00', 1)`)
}

func TestSchema_ItemsRequireDomain(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`INSERT INTO Scene (uuid, name, date) VALUES ('s1', 'main', '2024-01-15 10:30:00')`)
	if err == nil {
		t.Error("Expected NOT NULL violation for scene without domain, but insert succeeded")
	}
}

func TestSchema_ServerDeleteCascades(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	mustExec(t, db, `INSERT INTO ProjectDomain (id, name) VALUES (1, 'CAS')`)
	mustExec(t, db, `INSERT INTO DeviceServer (id, uuid, name, date, project_domain_id) VALUES (1, 'sv1', 'srv', '2024-01-15 10:30:00', 1)`)
	mustExec(t, db, `INSERT INTO DeviceInstance (id, uuid, name, date, project_domain_id, device_server_id) VALUES (1, 'i1', 'MOTOR_1', '2024-01-15 10:30:00', 1, 1)`)
	mustExec(t, db, `INSERT INTO DeviceConfig (uuid, name, date, project_domain_id, device_instance_id) VALUES ('c1', 'default', '2024-01-15 10:30:00', 1, 1)`)
	mustExec(t, db, `DELETE FROM DeviceServer WHERE id = 1`)

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM DeviceConfig`).Scan(&n); err != nil {
		t.Fatalf("counting configs: %v", err)
	}
	if n != 0 {
		t.Errorf("DeviceConfig rows after server delete = %d, want 0", n)
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}
	return db
}

func mustExec(t *testing.T, db *sql.DB, query string) {
	t.Helper()
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
