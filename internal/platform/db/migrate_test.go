package db

import (
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/patient360/portal/internal/platform/db/migrations"
)

func TestLoadMigrations(t *testing.T) {
	files := fstest.MapFS{
		"001_patients.sql": {Data: []byte("CREATE TABLE patients (id TEXT PRIMARY KEY);")},
		"002_sessions.sql": {Data: []byte("CREATE TABLE auth_sessions (id TEXT PRIMARY KEY);")},
		"003_indexes.sql":  {Data: []byte("CREATE INDEX ON patients (id);")},
	}

	migrator := NewMigrator(nil, files, ".")
	loaded, err := migrator.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	if len(loaded) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(loaded))
	}
	if loaded[0].Version != 1 || loaded[0].Name != "001_patients.sql" {
		t.Errorf("unexpected first migration: %+v", loaded[0])
	}
	if loaded[0].SQL != "CREATE TABLE patients (id TEXT PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", loaded[0].SQL)
	}
	if loaded[1].Version != 2 || loaded[2].Version != 3 {
		t.Errorf("unexpected versions: %d, %d", loaded[1].Version, loaded[2].Version)
	}
}

func TestLoadMigrations_SortOrder(t *testing.T) {
	files := fstest.MapFS{
		"sql/010_late.sql":  {Data: []byte("SELECT 10;")},
		"sql/002_mid.sql":   {Data: []byte("SELECT 2;")},
		"sql/001_early.sql": {Data: []byte("SELECT 1;")},
	}

	loaded, err := NewMigrator(nil, files, "sql").LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	want := []int{1, 2, 10}
	for i, v := range want {
		if loaded[i].Version != v {
			t.Errorf("position %d: expected version %d, got %d", i, v, loaded[i].Version)
		}
	}
}

func TestLoadMigrations_SkipsNonMigrations(t *testing.T) {
	files := fstest.MapFS{
		"001_ok.sql":     {Data: []byte("SELECT 1;")},
		"README.md":      {Data: []byte("docs")},
		"noprefix.sql":   {Data: []byte("SELECT 0;")},
		"abc_bad.sql":    {Data: []byte("SELECT 0;")},
		"nested/002.sql": {Data: []byte("SELECT 2;")},
		"migrations.go":  {Data: []byte("package migrations")},
	}

	loaded, err := NewMigrator(nil, files, ".").LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Name != "001_ok.sql" {
		t.Errorf("expected only 001_ok.sql, got %+v", loaded)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	files := fstest.MapFS{
		"001_a.sql":  {Data: []byte("SELECT 1;")},
		"0001_b.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := NewMigrator(nil, files, ".").LoadMigrations(); err == nil {
		t.Error("expected error for duplicate version")
	}
}

func TestLoadMigrations_MissingDir(t *testing.T) {
	if _, err := NewMigrator(nil, fstest.MapFS{}, "nope").LoadMigrations(); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	loaded, err := NewMigrator(nil, migrations.FS, ".").LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(loaded) < 2 {
		t.Fatalf("expected at least 2 embedded migrations, got %d", len(loaded))
	}
	if !strings.Contains(loaded[0].SQL, "CREATE TABLE IF NOT EXISTS patients") {
		t.Error("expected first migration to create patients")
	}
	if !strings.Contains(loaded[1].SQL, "CREATE TABLE IF NOT EXISTS auth_sessions") {
		t.Error("expected second migration to create auth_sessions")
	}
}

func TestPendingAndBuildStatus(t *testing.T) {
	migs := []Migration{
		{Version: 1, Name: "001_patients.sql"},
		{Version: 2, Name: "002_auth_sessions.sql"},
		{Version: 3, Name: "003_more.sql"},
	}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	applied := map[int]time.Time{1: at}

	pending := Pending(migs, applied)
	if len(pending) != 2 || pending[0].Version != 2 || pending[1].Version != 3 {
		t.Errorf("unexpected pending: %+v", pending)
	}

	statuses := BuildStatus(migs, applied)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected migration 1 applied at %v, got %+v", at, statuses[0])
	}
	if statuses[1].Applied || statuses[1].AppliedAt != nil {
		t.Errorf("expected migration 2 pending, got %+v", statuses[1])
	}
}

func TestNewMigrator_DefaultDir(t *testing.T) {
	m := NewMigrator(nil, fstest.MapFS{}, "")
	if m.dir != "." {
		t.Errorf("expected dir '.', got %q", m.dir)
	}
}
