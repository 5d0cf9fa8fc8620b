package models

import "time"

// Result row types returned by directory store lookups. Column sets mirror
// what the upstream directory exposes for each query; the gateway forwards
// them to clients without re-shaping.

// ProjectRow is one row of the project catalog.
type ProjectRow struct {
	ProjectID   string     `gorm:"column:projectid"`
	ProjectName string     `gorm:"column:projectname"`
	RegDate     *time.Time `gorm:"column:regdate"`
	CloseDate   *time.Time `gorm:"column:closedate"`
}

// StructureRow is one row of a project's structure catalog.
type StructureRow struct {
	StID   string `gorm:"column:stid"`
	StName string `gorm:"column:stname"`
	StAddr string `gorm:"column:staddr"`
}

// ProjectStructureRow is one row of the joined project/structure catalog.
type ProjectStructureRow struct {
	ProjectID   string     `gorm:"column:projectid"`
	ProjectName string     `gorm:"column:projectname"`
	StID        string     `gorm:"column:stid"`
	StName      string     `gorm:"column:stname"`
	StAddr      string     `gorm:"column:staddr"`
	RegDate     *time.Time `gorm:"column:regdate"`
	CloseDate   *time.Time `gorm:"column:closedate"`
}

// SensorRow describes one sensor channel with its data typing. Channel is
// normalized to "1" when the sensor row has none.
type SensorRow struct {
	DeviceID   string `gorm:"column:deviceid"`
	Channel    string `gorm:"column:channel"`
	DeviceType string `gorm:"column:device_type"`
	DataType   string `gorm:"column:data_type"`
	Is3Axis    string `gorm:"column:is3axis"` // "Y" or "N"
}

// DeviceInfoRow describes the installed sensor hardware for one channel.
type DeviceInfoRow struct {
	DeviceID    string `gorm:"column:deviceid"`
	Channel     string `gorm:"column:channel"`
	SensorType  string `gorm:"column:sensortype"`
	SensorAlias string `gorm:"column:sensoralias"`
	SN          string `gorm:"column:sn"`
}

// SensorMetaRow is the metadata join for a single device/channel pair.
type SensorMetaRow struct {
	DeviceID   string `gorm:"column:deviceid"`
	Channel    string `gorm:"column:channel"`
	DeviceType string `gorm:"column:device_type"`
	DataType   string `gorm:"column:data_type"`
	Is3Axis    string `gorm:"column:is3axis"`
}

// SensorPlacementRow resolves the structure and project that own a
// device/channel pair.
type SensorPlacementRow struct {
	DeviceID  string `gorm:"column:deviceid"`
	Channel   string `gorm:"column:channel"`
	StID      string `gorm:"column:stid"`
	ProjectID string `gorm:"column:projectid"`
}
