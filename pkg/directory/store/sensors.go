package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/shmkit/itsgate/pkg/directory/models"
)

// GroupCode selects the grouping level a sensor lookup is scoped to.
type GroupCode string

const (
	GroupProject   GroupCode = "P"
	GroupGroup     GroupCode = "G"
	GroupStructure GroupCode = "S"
	GroupDevice    GroupCode = "D"
)

// Scope is a sensor lookup scope: a grouping level plus the id at that level.
type Scope struct {
	Group GroupCode
	ID    string
}

// ProjectScope returns a project-level scope for the given id.
func ProjectScope(id string) Scope { return Scope{Group: GroupProject, ID: id} }

// StructureScope returns a structure-level scope for the given id.
func StructureScope(id string) Scope { return Scope{Group: GroupStructure, ID: id} }

// column maps the group code to the column the lookup filters on.
func (sc Scope) column() (string, error) {
	switch sc.Group {
	case GroupProject:
		return "p.projectid", nil
	case GroupGroup:
		return "g.groupid", nil
	case GroupStructure:
		return "st.stid", nil
	case GroupDevice:
		return "d.deviceid", nil
	default:
		return "", models.ErrInvalidScope
	}
}

// sensorJoin builds the sensor/device/structure/group/project join shared by
// the sensor queries. Only managed rows (manageyn = 'Y') are visible.
func (s *Store) sensorJoin(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("tb_sensor s").
		Joins("JOIN tb_device d ON d.deviceid = s.deviceid").
		Joins("JOIN tb_structure st ON st.stid = d.stid").
		Joins("JOIN tb_group g ON g.groupid = st.groupid").
		Joins("JOIN tb_project p ON p.projectid = g.projectid").
		Joins("LEFT JOIN tb_device_data_type tddt ON d.devicetype = tddt.device_type").
		Joins("LEFT JOIN tb_device_catalog tdc ON tdc.idx = d.modelidx AND tdc.modelname IN ?", models.ThreeAxisModels).
		Where("d.manageyn = 'Y' AND s.manageyn = 'Y'")
}

// ListSensors returns the sensor channels visible under the given scope,
// with device type, data type, and the three-axis flag resolved.
func (s *Store) ListSensors(ctx context.Context, scope Scope) ([]models.SensorRow, error) {
	col, err := scope.column()
	if err != nil {
		return nil, err
	}

	var rows []models.SensorRow
	err = s.sensorJoin(ctx).
		Select("s.deviceid, COALESCE(s.channel, '1') AS channel" +
			", d.devicetype AS device_type, tddt.data_type" +
			", CASE WHEN tdc.modelname IS NOT NULL THEN 'Y' ELSE 'N' END AS is3axis").
		Where(col+" = ?", scope.ID).
		Order("p.projectid, g.groupid, st.stid, d.deviceid, s.channel").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListDeviceInfo returns the installed hardware descriptions for the sensor
// channels under the given scope.
func (s *Store) ListDeviceInfo(ctx context.Context, scope Scope) ([]models.DeviceInfoRow, error) {
	col, err := scope.column()
	if err != nil {
		return nil, err
	}

	var rows []models.DeviceInfoRow
	err = s.sensorJoin(ctx).
		Select("s.deviceid, COALESCE(s.channel, '1') AS channel"+
			", s.sensortype, s.sensoralias, s.sn").
		Where(col+" = ?", scope.ID).
		Order("p.projectid, g.groupid, st.stid, d.deviceid, s.channel").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GetSensorMeta returns the metadata row for one device/channel pair.
func (s *Store) GetSensorMeta(ctx context.Context, deviceID, channel string) (*models.SensorMetaRow, error) {
	var row models.SensorMetaRow
	err := s.sensorJoin(ctx).
		Select("s.deviceid, s.channel, d.devicetype AS device_type, tddt.data_type"+
			", CASE WHEN tdc.modelname IS NOT NULL THEN 'Y' ELSE 'N' END AS is3axis").
		Where("s.deviceid = ? AND s.channel = ?", deviceID, channel).
		Limit(1).
		Take(&row).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrSensorNotFound)
	}
	return &row, nil
}

// GetSensorPlacement resolves the structure and project that own one
// device/channel pair.
func (s *Store) GetSensorPlacement(ctx context.Context, deviceID, channel string) (*models.SensorPlacementRow, error) {
	var row models.SensorPlacementRow
	err := s.sensorJoin(ctx).
		Select("s.deviceid, s.channel, st.stid, p.projectid").
		Where("s.deviceid = ? AND s.channel = ?", deviceID, channel).
		Limit(1).
		Take(&row).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrSensorNotFound)
	}
	return &row, nil
}
