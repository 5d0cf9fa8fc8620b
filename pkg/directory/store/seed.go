package store

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shmkit/itsgate/pkg/directory/models"
)

// SeedUser describes one account in a local fixture directory.
type SeedUser struct {
	Username string
	Password string
	Grade    models.Grade
	// Window bounds for limited grades; zero values leave the window unset.
	AuthStart time.Time
	AuthEnd   time.Time
	// Granted project/structure ids for limited grades.
	AuthorizedIDs []string
}

// Seed populates a sqlite fixture directory with a small demo catalog: two
// projects, three structures, a handful of sensors, plus the given accounts.
// It stands in for the operator-managed production directory in development
// and in tests.
func (s *Store) Seed(users []SeedUser) error {
	if s.config.Type != DatabaseTypeSQLite {
		return fmt.Errorf("refusing to seed a %s directory: fixtures are sqlite only", s.config.Type)
	}

	reg := time.Date(2023, 3, 2, 0, 0, 0, 0, time.UTC)

	projects := []models.Project{
		{ProjectID: "P_000001", ProjectName: "Harbor Bridge Monitoring", RegDate: &reg},
		{ProjectID: "P_000002", ProjectName: "Metro Tunnel Section 4", RegDate: &reg},
	}
	groups := []models.Group{
		{GroupID: "G_000001", ProjectID: "P_000001"},
		{GroupID: "G_000002", ProjectID: "P_000002"},
	}
	structures := []models.Structure{
		{StID: "S_000001", StName: "Main span", StAddr: "Harbor Rd 1", GroupID: "G_000001"},
		{StID: "S_000002", StName: "North approach", StAddr: "Harbor Rd 2", GroupID: "G_000001"},
		{StID: "S_000003", StName: "Bore 4A", StAddr: "Metro km 12", GroupID: "G_000002"},
	}
	modelIdx := int64(1)
	devices := []models.Device{
		{DeviceID: "DEV_ACC_01", StID: "S_000001", DeviceType: "ACC", ModelIdx: &modelIdx, ManageYN: "Y"},
		{DeviceID: "DEV_TLT_01", StID: "S_000002", DeviceType: "TILT", ManageYN: "Y"},
		{DeviceID: "DEV_STR_01", StID: "S_000003", DeviceType: "STRAIN", ManageYN: "Y"},
	}
	ch1, ch2 := "1", "2"
	sensors := []models.Sensor{
		{DeviceID: "DEV_ACC_01", Channel: &ch1, SensorType: "accelerometer", SensorAlias: "span-acc-x", SN: "A1001", ManageYN: "Y"},
		{DeviceID: "DEV_ACC_01", Channel: &ch2, SensorType: "accelerometer", SensorAlias: "span-acc-y", SN: "A1002", ManageYN: "Y"},
		{DeviceID: "DEV_TLT_01", Channel: &ch1, SensorType: "tiltmeter", SensorAlias: "approach-tilt", SN: "T2001", ManageYN: "Y"},
		{DeviceID: "DEV_STR_01", Channel: &ch1, SensorType: "strain gauge", SensorAlias: "bore-strain", SN: "S3001", ManageYN: "Y"},
	}
	dataTypes := []models.DeviceDataType{
		{DeviceType: "ACC", DataType: "acceleration"},
		{DeviceType: "TILT", DataType: "inclination"},
		{DeviceType: "STRAIN", DataType: "strain"},
	}
	catalog := []models.DeviceCatalog{
		{Idx: 1, ModelName: "SSC-320HR(2.0g)"},
		{Idx: 2, ModelName: "SSC-110"},
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	for _, batch := range []any{projects, groups, structures, devices, sensors, dataTypes, catalog} {
		if err := tx.Create(batch).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
	}

	for _, su := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(su.Password), bcrypt.DefaultCost)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to hash password for %s: %w", su.Username, err)
		}

		user := models.User{UserID: su.Username, UserPW: string(hash), Grade: su.Grade}
		if !su.AuthStart.IsZero() {
			start := su.AuthStart
			user.AuthStartDate = &start
		}
		if !su.AuthEnd.IsZero() {
			end := su.AuthEnd
			user.AuthEndDate = &end
		}
		if err := tx.Create(&user).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to seed user %s: %w", su.Username, err)
		}

		for _, id := range su.AuthorizedIDs {
			saType := "P"
			if len(id) > 0 && id[0] == 'S' {
				saType = "S"
			}
			mapping := models.AuthMapping{UserID: su.Username, SAType: saType, ID: id, Auth: "R"}
			if err := tx.Create(&mapping).Error; err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to seed authorization for %s: %w", su.Username, err)
			}
		}
	}

	return tx.Commit().Error
}

// DefaultSeedUsers returns the demo accounts created by `itsgate init --seed-demo`.
func DefaultSeedUsers() []SeedUser {
	now := time.Now()
	return []SeedUser{
		{Username: "admin", Password: "admin", Grade: models.GradeAdmin},
		{
			Username:      "manager",
			Password:      "manager",
			Grade:         models.GradeManager,
			AuthStart:     now.AddDate(0, -1, 0),
			AuthEnd:       now.AddDate(1, 0, 0),
			AuthorizedIDs: []string{"P_000001"},
		},
		{
			Username:      "contractor",
			Password:      "contractor",
			Grade:         models.GradeContractor,
			AuthStart:     now.AddDate(0, -1, 0),
			AuthEnd:       now.AddDate(1, 0, 0),
			AuthorizedIDs: []string{"S_000003"},
		},
	}
}
