package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/meshsim/internal/infrastructure/config"
)

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sim", "meshsim.db")

	db, err := Open(config.DatabaseConfig{Path: path, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
}

func TestOpen_Memory(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	// Enough round trips to cycle a pooled connection if one were recycled.
	if _, err := db.ExecContext(ctx, "CREATE TABLE status_probe (device_id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := db.ExecContext(ctx, "INSERT INTO status_probe (device_id) VALUES (?)", i); err != nil {
			t.Fatal(err)
		}
	}
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM status_probe").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestDataSourceName(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.DatabaseConfig
		want    []string
		notWant []string
	}{
		{"memory", config.DatabaseConfig{Path: MemoryPath}, []string{"file::memory:"}, []string{"_busy_timeout"}},
		{"wal", config.DatabaseConfig{Path: "/tmp/a.db", WALMode: true, BusyTimeout: 5},
			[]string{"file:/tmp/a.db?", "_busy_timeout=5000", "_journal_mode=WAL"}, nil},
		{"rollback journal", config.DatabaseConfig{Path: "/tmp/a.db", BusyTimeout: 2},
			[]string{"_busy_timeout=2000"}, []string{"_journal_mode"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := dataSourceName(tt.cfg)
			for _, s := range tt.want {
				if !strings.Contains(dsn, s) {
					t.Errorf("dataSourceName() = %q, missing %q", dsn, s)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(dsn, s) {
					t.Errorf("dataSourceName() = %q, unexpected %q", dsn, s)
				}
			}
		})
	}
}

func TestClose(t *testing.T) {
	db := openMemory(t)
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := db.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() after Close() should fail")
	}

	var never *DB
	if err := never.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}

// openMemory opens an in-memory database closed at test cleanup.
func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{Path: MemoryPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}
