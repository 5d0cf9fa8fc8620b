// Package models defines the read-only record types for the monitoring
// directory: users, projects, structures, devices and sensors, plus the
// per-user authorization mapping. The schema is owned by the upstream
// monitoring deployment; the gateway only reads it.
package models

import (
	"time"
)

// Grade represents the access grade of a directory user.
type Grade string

const (
	// GradeAdmin has unrestricted access to every project and structure.
	GradeAdmin Grade = "AD"
	// GradeManager is time-limited and restricted to an authorization list.
	GradeManager Grade = "CM"
	// GradeContractor is time-limited and restricted to an authorization list.
	GradeContractor Grade = "CT"
)

// IsValid checks if the grade is one the gateway understands.
func (g Grade) IsValid() bool {
	return g == GradeAdmin || g == GradeManager || g == GradeContractor
}

// Limited reports whether the grade is subject to a validity window and an
// explicit authorization list.
func (g Grade) Limited() bool {
	return g == GradeManager || g == GradeContractor
}

// User is a directory account. Password hashes are bcrypt.
//
// AuthStartDate/AuthEndDate bound the validity window for limited grades;
// both nil means no window is enforced.
type User struct {
	UserID        string     `gorm:"column:userid;primaryKey;size:64" json:"userid"`
	UserPW        string     `gorm:"column:userpw;not null" json:"-"`
	Grade         Grade      `gorm:"column:grade;size:8;not null" json:"grade"`
	AuthStartDate *time.Time `gorm:"column:authstartdate" json:"authstartdate,omitempty"`
	AuthEndDate   *time.Time `gorm:"column:authenddate" json:"authenddate,omitempty"`
}

// TableName returns the table name for User.
func (User) TableName() string { return "tb_user" }

// InWindow reports whether now falls inside the user's validity window.
// A user without a complete window is always in window.
func (u *User) InWindow(now time.Time) bool {
	if u.AuthStartDate == nil || u.AuthEndDate == nil {
		return true
	}
	return !now.Before(*u.AuthStartDate) && !now.After(*u.AuthEndDate)
}

// Project is a monitoring project.
type Project struct {
	ProjectID   string     `gorm:"column:projectid;primaryKey;size:32" json:"projectid"`
	ProjectName string     `gorm:"column:projectname;size:255" json:"projectname"`
	RegDate     *time.Time `gorm:"column:regdate" json:"regdate,omitempty"`
	CloseDate   *time.Time `gorm:"column:closedate" json:"closedate,omitempty"`
}

func (Project) TableName() string { return "tb_project" }

// Group ties structures to their owning project.
type Group struct {
	GroupID   string `gorm:"column:groupid;primaryKey;size:32" json:"groupid"`
	ProjectID string `gorm:"column:projectid;index;size:32" json:"projectid"`
}

func (Group) TableName() string { return "tb_group" }

// Structure is a monitored structure (bridge, tunnel, building).
type Structure struct {
	StID    string `gorm:"column:stid;primaryKey;size:32" json:"stid"`
	StName  string `gorm:"column:stname;size:255" json:"stname"`
	StAddr  string `gorm:"column:staddr;size:255" json:"staddr"`
	GroupID string `gorm:"column:groupid;index;size:32" json:"groupid"`
}

func (Structure) TableName() string { return "tb_structure" }

// Device is a data logger installed on a structure.
type Device struct {
	DeviceID   string `gorm:"column:deviceid;primaryKey;size:64" json:"deviceid"`
	StID       string `gorm:"column:stid;index;size:32" json:"stid"`
	DeviceType string `gorm:"column:devicetype;size:64" json:"devicetype"`
	ModelIdx   *int64 `gorm:"column:modelidx" json:"modelidx,omitempty"`
	ManageYN   string `gorm:"column:manageyn;size:1;default:Y" json:"manageyn"`
}

func (Device) TableName() string { return "tb_device" }

// Sensor is one channel of a device.
type Sensor struct {
	DeviceID    string  `gorm:"column:deviceid;primaryKey;size:64" json:"deviceid"`
	Channel     *string `gorm:"column:channel;primaryKey;size:8" json:"channel,omitempty"`
	SensorType  string  `gorm:"column:sensortype;size:64" json:"sensortype"`
	SensorAlias string  `gorm:"column:sensoralias;size:255" json:"sensoralias"`
	SN          string  `gorm:"column:sn;size:64" json:"sn"`
	ManageYN    string  `gorm:"column:manageyn;size:1;default:Y" json:"manageyn"`
}

func (Sensor) TableName() string { return "tb_sensor" }

// DeviceDataType maps a device type to the kind of data it produces.
type DeviceDataType struct {
	DeviceType string `gorm:"column:device_type;primaryKey;size:64" json:"device_type"`
	DataType   string `gorm:"column:data_type;size:64" json:"data_type"`
}

func (DeviceDataType) TableName() string { return "tb_device_data_type" }

// DeviceCatalog holds the hardware catalog; presence of one of the
// three-axis accelerometer models marks a device as three-axis.
type DeviceCatalog struct {
	Idx       int64  `gorm:"column:idx;primaryKey;autoIncrement" json:"idx"`
	ModelName string `gorm:"column:modelname;size:128" json:"modelname"`
}

func (DeviceCatalog) TableName() string { return "tb_device_catalog" }

// ThreeAxisModels are the catalog model names treated as three-axis sensors.
var ThreeAxisModels = []string{"SSC-320HR(2.0g)", "SSC-320HR(5.0g)", "SSC-320(3.0g)"}

// AuthMapping grants a user access to one project or structure id.
// SAType distinguishes project ("P") from structure ("S") grants.
type AuthMapping struct {
	UserID string `gorm:"column:userid;primaryKey;size:64" json:"userid"`
	SAType string `gorm:"column:satype;size:1" json:"satype"`
	ID     string `gorm:"column:id;primaryKey;size:32" json:"id"`
	Auth   string `gorm:"column:auth;size:8" json:"auth"`
}

func (AuthMapping) TableName() string { return "tb_sensor_auth_mapping" }

// AllModels returns every model for sqlite AutoMigrate (local fixtures only;
// the production directory schema is managed upstream).
func AllModels() []any {
	return []any{
		&User{},
		&Project{},
		&Group{},
		&Structure{},
		&Device{},
		&Sensor{},
		&DeviceDataType{},
		&DeviceCatalog{},
		&AuthMapping{},
	}
}
