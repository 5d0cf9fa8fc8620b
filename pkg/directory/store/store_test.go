package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shmkit/itsgate/pkg/directory/models"
)

// createTestStore creates an in-memory SQLite directory seeded with the
// demo catalog and the given accounts.
func createTestStore(t *testing.T, users []SeedUser) *Store {
	t.Helper()
	s, err := New(&Config{
		Type:   DatabaseTypeSQLite,
		SQLite: SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Seed(users); err != nil {
		t.Fatalf("failed to seed test store: %v", err)
	}
	return s
}

func TestConfig(t *testing.T) {
	t.Run("default config uses sqlite", func(t *testing.T) {
		config := &Config{}
		config.ApplyDefaults()

		if config.Type != DatabaseTypeSQLite {
			t.Errorf("expected sqlite, got %s", config.Type)
		}
	})

	t.Run("mysql defaults port", func(t *testing.T) {
		config := &Config{Type: DatabaseTypeMySQL}
		config.ApplyDefaults()

		if config.Server.Port != 3306 {
			t.Errorf("expected port 3306, got %d", config.Server.Port)
		}
	})

	t.Run("invalid config returns error", func(t *testing.T) {
		_, err := New(&Config{Type: "invalid"})
		if err == nil {
			t.Error("expected error for invalid config")
		}
	})

	t.Run("mysql without host fails validation", func(t *testing.T) {
		config := &Config{Type: DatabaseTypeMySQL}
		config.ApplyDefaults()
		if err := config.Validate(); err == nil {
			t.Error("expected validation error without host")
		}
	})
}

func TestGetUser(t *testing.T) {
	s := createTestStore(t, DefaultSeedUsers())
	ctx := context.Background()

	t.Run("existing user", func(t *testing.T) {
		user, err := s.GetUser(ctx, "admin")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if user.Grade != models.GradeAdmin {
			t.Errorf("expected grade AD, got %s", user.Grade)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.UserPW), []byte("admin")); err != nil {
			t.Errorf("stored hash does not verify seed password: %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := s.GetUser(ctx, "nobody")
		if !errors.Is(err, models.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestAuthorizedIDs(t *testing.T) {
	s := createTestStore(t, DefaultSeedUsers())
	ctx := context.Background()

	ids, err := s.AuthorizedIDs(ctx, "manager")
	if err != nil {
		t.Fatalf("failed to load authorized ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != "P_000001" {
		t.Errorf("expected [P_000001], got %v", ids)
	}

	ids, err = s.AuthorizedIDs(ctx, "admin")
	if err != nil {
		t.Fatalf("failed to load authorized ids: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no grants for admin, got %v", ids)
	}
}

func TestCatalog(t *testing.T) {
	s := createTestStore(t, DefaultSeedUsers())
	ctx := context.Background()

	t.Run("all projects", func(t *testing.T) {
		rows, err := s.ListProjects(ctx, nil)
		if err != nil {
			t.Fatalf("failed to list projects: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 projects, got %d", len(rows))
		}
		if rows[0].ProjectID != "P_000001" {
			t.Errorf("expected P_000001 first, got %s", rows[0].ProjectID)
		}
	})

	t.Run("filtered projects", func(t *testing.T) {
		rows, err := s.ListProjects(ctx, []string{"P_000002"})
		if err != nil {
			t.Fatalf("failed to list projects: %v", err)
		}
		if len(rows) != 1 || rows[0].ProjectName != "Metro Tunnel Section 4" {
			t.Errorf("unexpected filtered result: %+v", rows)
		}
	})

	t.Run("empty filter returns nothing", func(t *testing.T) {
		rows, err := s.ListProjects(ctx, []string{})
		if err != nil {
			t.Fatalf("failed to list projects: %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("expected no rows for empty filter, got %d", len(rows))
		}
	})

	t.Run("structures for project", func(t *testing.T) {
		rows, err := s.ListStructures(ctx, "P_000001")
		if err != nil {
			t.Fatalf("failed to list structures: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 structures, got %d", len(rows))
		}
	})

	t.Run("structures for project set", func(t *testing.T) {
		rows, err := s.StructuresForProjects(ctx, []string{"P_000001", "P_000002"})
		if err != nil {
			t.Fatalf("failed to expand projects: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected 3 structures, got %d", len(rows))
		}
	})

	t.Run("joined project structure catalog", func(t *testing.T) {
		rows, err := s.ListProjectStructures(ctx, nil)
		if err != nil {
			t.Fatalf("failed to list project structures: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected 3 rows, got %d", len(rows))
		}
		if rows[0].ProjectID != "P_000001" || rows[0].StID != "S_000001" {
			t.Errorf("unexpected first row: %+v", rows[0])
		}
	})
}

func TestSensors(t *testing.T) {
	s := createTestStore(t, DefaultSeedUsers())
	ctx := context.Background()

	t.Run("by project", func(t *testing.T) {
		rows, err := s.ListSensors(ctx, ProjectScope("P_000001"))
		if err != nil {
			t.Fatalf("failed to list sensors: %v", err)
		}
		// two accelerometer channels + one tiltmeter
		if len(rows) != 3 {
			t.Fatalf("expected 3 sensors, got %d", len(rows))
		}
		if rows[0].DeviceID != "DEV_ACC_01" || rows[0].Is3Axis != "Y" {
			t.Errorf("unexpected first sensor: %+v", rows[0])
		}
		if rows[0].DataType != "acceleration" {
			t.Errorf("expected data type join, got %+v", rows[0])
		}
	})

	t.Run("by structure", func(t *testing.T) {
		rows, err := s.ListSensors(ctx, StructureScope("S_000003"))
		if err != nil {
			t.Fatalf("failed to list sensors: %v", err)
		}
		if len(rows) != 1 || rows[0].DeviceID != "DEV_STR_01" {
			t.Errorf("unexpected sensors: %+v", rows)
		}
		if rows[0].Is3Axis != "N" {
			t.Errorf("strain gauge should not be three-axis: %+v", rows[0])
		}
	})

	t.Run("invalid scope", func(t *testing.T) {
		_, err := s.ListSensors(ctx, Scope{Group: "X", ID: "whatever"})
		if !errors.Is(err, models.ErrInvalidScope) {
			t.Errorf("expected ErrInvalidScope, got %v", err)
		}
	})

	t.Run("device info", func(t *testing.T) {
		rows, err := s.ListDeviceInfo(ctx, StructureScope("S_000001"))
		if err != nil {
			t.Fatalf("failed to list device info: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(rows))
		}
		if rows[0].SensorAlias != "span-acc-x" || rows[0].SN != "A1001" {
			t.Errorf("unexpected device info: %+v", rows[0])
		}
	})
}

func TestSensorMeta(t *testing.T) {
	s := createTestStore(t, DefaultSeedUsers())
	ctx := context.Background()

	t.Run("meta for device channel", func(t *testing.T) {
		row, err := s.GetSensorMeta(ctx, "DEV_ACC_01", "2")
		if err != nil {
			t.Fatalf("failed to get sensor meta: %v", err)
		}
		if row.DeviceType != "ACC" || row.DataType != "acceleration" || row.Is3Axis != "Y" {
			t.Errorf("unexpected meta: %+v", row)
		}
	})

	t.Run("placement for device channel", func(t *testing.T) {
		row, err := s.GetSensorPlacement(ctx, "DEV_STR_01", "1")
		if err != nil {
			t.Fatalf("failed to get placement: %v", err)
		}
		if row.StID != "S_000003" || row.ProjectID != "P_000002" {
			t.Errorf("unexpected placement: %+v", row)
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		_, err := s.GetSensorMeta(ctx, "DEV_NONE", "1")
		if !errors.Is(err, models.ErrSensorNotFound) {
			t.Errorf("expected ErrSensorNotFound, got %v", err)
		}
	})
}

func TestWindowHelper(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)

	u := &models.User{Grade: models.GradeContractor, AuthStartDate: &start, AuthEndDate: &end}
	if !u.InWindow(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("mid-window time should be in window")
	}
	if u.InWindow(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("time after end should be out of window")
	}
	if u.InWindow(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("time before start should be out of window")
	}

	open := &models.User{Grade: models.GradeManager}
	if !open.InWindow(time.Now()) {
		t.Error("user without a window is always in window")
	}
}
