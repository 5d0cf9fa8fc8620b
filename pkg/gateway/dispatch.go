package gateway

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shmkit/itsgate/internal/logger"
	"github.com/shmkit/itsgate/pkg/directory/models"
	"github.com/shmkit/itsgate/pkg/directory/store"
	"github.com/shmkit/itsgate/pkg/gateway/wire"
	"github.com/shmkit/itsgate/pkg/metrics"
)

const (
	msgLoginFirst       = "Login first"
	msgInvalidPassword  = "Invalid password"
	msgPermsExpired     = "Your ID permissions have expired."
	msgNoProjects       = "Projects are not exist"
	msgNoStructures     = "Structures are not exist"
	msgNoProjectAccess  = "You do not have access to any projects. Please contact the administrator."
	msgNoStructAccess   = "You do not have access to any structures. Please contact the administrator."
	msgThisStructDenied = "You do not have access to this structure. Please contact the administrator."
	msgEmptySensorData  = "sensor data is empty"
	msgNoSensors        = "No sensors found"
	msgScopeRequired    = "projectid or structureid required"
	msgChannelRequired  = "deviceid and channel are required"
	msgPlacementMissing = "Device/Channel not found"
	msgMetaMissing      = "Sensor metadata not found"
)

// directoryUnavailable is the message sent when a directory query fails.
// Query errors are logged server side; the client only learns the backend
// was unreachable.
const msgDirectoryUnavailable = "directory unavailable"

// CredentialVerifier checks a plaintext password against a stored bcrypt
// hash. Swappable so dispatcher tests do not pay the bcrypt cost.
type CredentialVerifier func(password, storedHash string) bool

// BcryptVerifier verifies with golang.org/x/crypto/bcrypt.
func BcryptVerifier(password, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}

// Dispatcher routes decoded requests to their command handlers. It is
// stateless apart from its wiring and safe for use from every connection
// goroutine concurrently; all mutable state lives in the session passed in.
type Dispatcher struct {
	instances Instances
	auth      Authorizer
	verify    CredentialVerifier
	metrics   metrics.GatewayMetrics
	now       func() time.Time
}

// NewDispatcher creates a dispatcher over the given instances. metrics may
// be nil.
func NewDispatcher(instances Instances, m metrics.GatewayMetrics) *Dispatcher {
	return &Dispatcher{
		instances: instances,
		verify:    BcryptVerifier,
		metrics:   m,
		now:       time.Now,
	}
}

// Handle executes one request against the session and returns the response
// to send back. It never returns nil.
func (d *Dispatcher) Handle(ctx context.Context, req *wire.Request, sess *Session) *wire.Response {
	start := time.Now()
	resp := d.dispatch(ctx, req, sess)
	if d.metrics != nil {
		d.metrics.RecordCommand(req.Command, resp.Result, time.Since(start))
	}
	logger.Debug("command handled",
		"command", req.Command,
		"result", resp.Result,
		"conn_id", sess.ConnID,
		"duration_ms", logger.Duration(start))
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, req *wire.Request, sess *Session) *wire.Response {
	switch req.Command {
	case wire.CommandLogin:
		return d.handleLogin(ctx, req, sess)
	case wire.CommandGetProjectStructures:
		return d.handleProjectStructureList(ctx, req, sess)
	case wire.CommandGetProjectList:
		return d.handleProjectList(ctx, req, sess)
	case wire.CommandGetStructureList:
		return d.handleStructureList(ctx, req, sess)
	case wire.CommandGetDeviceList:
		return d.handleDeviceList(ctx, req, sess)
	case wire.CommandDownloadSensorData, wire.CommandDownloadSensorDataAsDF:
		return d.handleDownload(ctx, req, sess)
	case wire.CommandQueryDeviceChannel:
		return d.handleDeviceChannel(ctx, req, sess)
	default:
		logger.Warn("unknown command", "command", req.Command, "conn_id", sess.ConnID)
		return wire.Fail(req.Command, "not defined command")
	}
}

// instance resolves the instance selector from the request. The failure
// response is non-nil when the selector is unknown.
func (d *Dispatcher) instance(req *wire.Request) (*Instance, *wire.Response) {
	inst, ok := d.instances.Get(req.Instance)
	if !ok {
		logger.Warn("unknown instance selector", "its", req.Instance, "command", req.Command)
		return nil, wire.Failf(req.Command, "unknown instance selector: %s", req.Instance)
	}
	return inst, nil
}

func (d *Dispatcher) queryFailed(req *wire.Request, sess *Session, err error) *wire.Response {
	logger.Error("directory query failed",
		"command", req.Command,
		"conn_id", sess.ConnID,
		"error", err)
	return wire.Fail(req.Command, msgDirectoryUnavailable)
}

// encode serializes a table payload, mapping marshal failures onto the
// generic query-failure response.
func (d *Dispatcher) encode(req *wire.Request, sess *Session, t *wire.Table) (string, *wire.Response) {
	encoded, err := t.Encode()
	if err != nil {
		return "", d.queryFailed(req, sess, err)
	}
	return encoded, nil
}

func (d *Dispatcher) authFailure(reason string) {
	if d.metrics != nil {
		d.metrics.RecordAuthFailure(reason)
	}
}

// handleLogin authenticates the connection. The session is committed only
// when every check passes; a failed login leaves the session exactly as it
// was, so a client cannot reach authenticated commands through a login that
// reported Fail.
func (d *Dispatcher) handleLogin(ctx context.Context, req *wire.Request, sess *Session) *wire.Response {
	inst, failed := d.instance(req)
	if failed != nil {
		d.authFailure("unknown_instance")
		return failed
	}

	user, err := inst.Directory.GetUser(ctx, req.User)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			d.authFailure("unknown_user")
			return wire.Failf(req.Command, "userid : %s is not exist", req.User)
		}
		return d.queryFailed(req, sess, err)
	}

	if !d.verify(req.Password, user.UserPW) {
		d.authFailure("bad_password")
		logger.Warn("invalid password", "user", req.User, "conn_id", sess.ConnID)
		return wire.Fail(req.Command, msgInvalidPassword)
	}

	authorized := []string{}
	if user.Grade.Limited() {
		if !user.InWindow(d.now()) {
			d.authFailure("window_expired")
			return wire.Fail(req.Command, msgPermsExpired)
		}

		authorized, err = inst.Directory.AuthorizedIDs(ctx, req.User)
		if err != nil {
			return d.queryFailed(req, sess, err)
		}
		if len(authorized) == 0 {
			d.authFailure("no_grants")
			return wire.Failf(req.Command,
				"You(%s) currently do not have access to any projects or structures.", req.User)
		}
	}

	sess.CommitLogin(user.UserID, user.UserPW, user.Grade, authorized, d.now())

	logger.Info("login",
		"user", user.UserID,
		"grade", string(user.Grade),
		"grants", len(authorized),
		"conn_id", sess.ConnID)
	return wire.Success(req.Command)
}

func (d *Dispatcher) handleProjectStructureList(ctx context.Context, req *wire.Request, sess *Session) *wire.Response {
	if !sess.Authenticated() {
		return wire.Fail(req.Command, msgLoginFirst)
	}
	inst, failed := d.instance(req)
	if failed != nil {
		return failed
	}

	var scope []string
	if !sess.IsAdmin() {
		if len(sess.AuthorizedIDs) == 0 {
			return wire.Fail(req.Command, msgNoProjectAccess)
		}
		scope = sess.AuthorizedIDs
	}

	rows, err := inst.Directory.ListProjectStructures(ctx, scope)
	if err != nil {
		return d.queryFailed(req, sess, err)
	}
	if len(rows) == 0 {
		return wire.Fail(req.Command, msgNoProjects)
	}

	table := wire.NewTable("projectid", "projectname", "stid", "stname", "staddr", "regdate", "closedate")
	for _, r := range rows {
		if err := table.Append(r.ProjectID, r.ProjectName, r.StID, r.StName, r.StAddr, r.RegDate, r.CloseDate); err != nil {
			return d.queryFailed(req, sess, err)
		}
	}
	encoded, failed := d.encode(req, sess, table)
	if failed != nil {
		return failed
	}
	resp := wire.Success(req.Command)
	resp.Data = encoded
	return resp
}

func (d *Dispatcher) handleProjectList(ctx context.Context, req *wire.Request, sess *Session) *wire.Response {
	if !sess.Authenticated() {
		return wire.Fail(req.Command, msgLoginFirst)
	}
	inst, failed := d.instance(req)
	if failed != nil {
		return failed
	}

	var scope []string
	if !sess.IsAdmin() {
		if len(sess.AuthorizedIDs) == 0 {
			return wire.Fail(req.Command, msgNoProjectAccess)
		}
		scope = sess.AuthorizedIDs
	}

	rows, err := inst.Directory.ListProjects(ctx, scope)
	if err != nil {
		return d.queryFailed(req, sess, err)
	}
	if len(rows) == 0 {
		return wire.Fail(req.Command, msgNoProjects)
	}

	table := wire.NewTable("projectid", "projectname", "regdate", "closedate")
	for _, r := range rows {
		if err := table.Append(r.ProjectID, r.ProjectName, r.RegDate, r.CloseDate); err != nil {
			return d.queryFailed(req, sess, err)
		}
	}
	encoded, failed := d.encode(req, sess, table)
	if failed != nil {
		return failed
	}
	resp := wire.Success(req.Command)
	resp.Data = encoded
	return resp
}

func (d *Dispatcher) handleStructureList(ctx context.Context, req *wire.Request, sess *Session) *wire.Response {
	if !sess.Authenticated() {
		return wire.Fail(req.Command, msgLoginFirst)
	}
	if !req.HasProject() {
		return wire.Fail(req.Command, "projectid required")
	}
	projectID := req.Project()

	// Authorization resolves before the directory is touched, so a denied
	// caller cannot distinguish existing projects from missing ones.
	if !d.auth.AuthorizeProject(sess, projectID) {
		d.authFailure("project_scope")
		return wire.Fail(req.Command, msgNoStructAccess)
	}

	inst, failed := d.instance(req)
	if failed != nil {
		return failed
	}

	rows, err := inst.Directory.ListStructures(ctx, projectID)
	if err != nil {
		return d.queryFailed(req, sess, err)
	}
	if len(rows) == 0 {
		return wire.Fail(req.Command, msgNoStructures)
	}

	table := wire.NewTable("stid", "stname", "staddr")
	for _, r := range rows {
		if err := table.Append(r.StID, r.StName, r.StAddr); err != nil {
			return d.queryFailed(req, sess, err)
		}
	}
	encoded, failed := d.encode(req, sess, table)
	if failed != nil {
		return failed
	}
	resp := wire.Success(req.Command)
	resp.Data = encoded
	return resp
}

// handleDeviceList lists the sensors and device info under one project or
// structure. The caller must be logged in and authorized for the requested
// scope, the same rule every other scoped command enforces.
func (d *Dispatcher) handleDeviceList(ctx context.Context, req *wire.Request, sess *Session) *wire.Response {
	if !sess.Authenticated() {
		return wire.Fail(req.Command, msgLoginFirst)
	}
	if !req.HasProject() && !req.HasStructure() {
		return wire.Fail(req.Command, msgScopeRequired)
	}
	inst, failed := d.instance(req)
	if failed != nil {
		return failed
	}

	var scope store.Scope
	if req.HasStructure() {
		allowed, err := d.auth.AuthorizeStructure(ctx, inst.Directory, sess, req.Structure())
		if err != nil {
			return d.queryFailed(req, sess, err)
		}
		if !allowed {
			d.authFailure("structure_scope")
			return wire.Fail(req.Command, msgThisStructDenied)
		}
		scope = store.StructureScope(req.Structure())
	} else {
		if !d.auth.AuthorizeProject(sess, req.Project()) {
			d.authFailure("project_scope")
			return wire.Fail(req.Command, msgNoProjectAccess)
		}
		scope = store.ProjectScope(req.Project())
	}

	sensors, deviceInfo, failed := d.loadSensors(ctx, req, sess, inst, scope)
	if failed != nil {
		return failed
	}
	if sensors.Empty() {
		return wire.Fail(req.Command, msgNoSensors)
	}

	data, failedResp := d.encode(req, sess, sensors)
	if failedResp != nil {
		return failedResp
	}
	info, failedResp := d.encode(req, sess, deviceInfo)
	if failedResp != nil {
		return failedResp
	}
	resp := wire.Success(req.Command)
	resp.Data = data
	resp.DeviceInfo = info
	return resp
}

// handleDownload resolves the requested scope, authorizes it, and on
// success returns the sensor list together with the time-series connection
// parameters the client needs to pull the data itself.
func (d *Dispatcher) handleDownload(ctx context.Context, req *wire.Request, sess *Session) *wire.Response {
	if !sess.Authenticated() {
		return wire.Fail(req.Command, msgLoginFirst)
	}
	inst, failed := d.instance(req)
	if failed != nil {
		return failed
	}

	var scope store.Scope
	switch {
	case req.HasProject():
		if !d.auth.AuthorizeProject(sess, req.Project()) {
			d.authFailure("project_scope")
			return wire.Fail(req.Command, msgNoStructAccess)
		}

		if !sess.IsAdmin() {
			// A granted but empty project fails before any sensor query.
			structs, err := inst.Directory.ListStructures(ctx, req.Project())
			if err != nil {
				return d.queryFailed(req, sess, err)
			}
			if len(structs) == 0 {
				return wire.Fail(req.Command, msgNoStructures)
			}
			if req.HasStructure() {
				found := false
				for _, st := range structs {
					if st.StID == req.Structure() {
						found = true
						break
					}
				}
				if !found {
					d.authFailure("structure_scope")
					return wire.Fail(req.Command, msgThisStructDenied)
				}
			}
		}

		if req.HasStructure() {
			scope = store.StructureScope(req.Structure())
		} else {
			scope = store.ProjectScope(req.Project())
		}

	case req.HasStructure():
		allowed, err := d.auth.AuthorizeStructure(ctx, inst.Directory, sess, req.Structure())
		if err != nil {
			return d.queryFailed(req, sess, err)
		}
		if !allowed {
			d.authFailure("structure_scope")
			return wire.Fail(req.Command, msgThisStructDenied)
		}
		scope = store.StructureScope(req.Structure())

	default:
		return wire.Fail(req.Command, msgScopeRequired)
	}

	sensors, deviceInfo, failed := d.loadSensors(ctx, req, sess, inst, scope)
	if failed != nil {
		return failed
	}
	if sensors.Empty() {
		return wire.Fail(req.Command, msgEmptySensorData)
	}

	data, failedResp := d.encode(req, sess, sensors)
	if failedResp != nil {
		return failedResp
	}
	devInfo, failedResp := d.encode(req, sess, deviceInfo)
	if failedResp != nil {
		return failedResp
	}
	resp := wire.Success(req.Command)
	resp.Data = data
	resp.DeviceInfo = devInfo
	conn := inst.TimeSeries
	resp.DBInfo = &conn
	return resp
}

func (d *Dispatcher) loadSensors(ctx context.Context, req *wire.Request, sess *Session, inst *Instance, scope store.Scope) (*wire.Table, *wire.Table, *wire.Response) {
	sensorRows, err := inst.Directory.ListSensors(ctx, scope)
	if err != nil {
		return nil, nil, d.queryFailed(req, sess, err)
	}
	infoRows, err := inst.Directory.ListDeviceInfo(ctx, scope)
	if err != nil {
		return nil, nil, d.queryFailed(req, sess, err)
	}

	sensors := wire.NewTable("deviceid", "channel", "device_type", "data_type", "is3axis")
	for _, r := range sensorRows {
		if err := sensors.Append(r.DeviceID, r.Channel, r.DeviceType, r.DataType, r.Is3Axis); err != nil {
			return nil, nil, d.queryFailed(req, sess, err)
		}
	}
	deviceInfo := wire.NewTable("deviceid", "channel", "sensortype", "sensoralias", "sn")
	for _, r := range infoRows {
		if err := deviceInfo.Append(r.DeviceID, r.Channel, r.SensorType, r.SensorAlias, r.SN); err != nil {
			return nil, nil, d.queryFailed(req, sess, err)
		}
	}
	return sensors, deviceInfo, nil
}

// handleDeviceChannel authorizes a single device/channel pair through its
// placement and returns its metadata plus the time-series connection
// parameters.
func (d *Dispatcher) handleDeviceChannel(ctx context.Context, req *wire.Request, sess *Session) *wire.Response {
	deviceID := req.DeviceID
	channel := string(req.Channel)
	if deviceID == "" || channel == "" {
		return wire.Fail(req.Command, msgChannelRequired)
	}
	if !sess.Authenticated() {
		return wire.Fail(req.Command, msgLoginFirst)
	}
	inst, failed := d.instance(req)
	if failed != nil {
		return failed
	}

	placement, err := inst.Directory.GetSensorPlacement(ctx, deviceID, channel)
	if err != nil {
		if errors.Is(err, models.ErrSensorNotFound) {
			return wire.Fail(req.Command, msgPlacementMissing)
		}
		return d.queryFailed(req, sess, err)
	}

	if !d.auth.AuthorizePlacement(sess, placement.ProjectID, placement.StID) {
		d.authFailure("placement_scope")
		return wire.Failf(req.Command, "Access denied for device %s, channel %s", deviceID, channel)
	}

	meta, err := inst.Directory.GetSensorMeta(ctx, deviceID, channel)
	if err != nil {
		if errors.Is(err, models.ErrSensorNotFound) {
			return wire.Fail(req.Command, msgMetaMissing)
		}
		return d.queryFailed(req, sess, err)
	}

	table := wire.NewTable("deviceid", "channel", "d_type", "data_type", "is3axis")
	if err := table.Append(deviceID, channel, meta.DeviceType, meta.DataType, meta.Is3Axis); err != nil {
		return d.queryFailed(req, sess, err)
	}
	encoded, failed := d.encode(req, sess, table)
	if failed != nil {
		return failed
	}

	resp := wire.Success(req.Command)
	resp.Data = encoded
	conn := inst.TimeSeries
	resp.DBInfo = &conn
	return resp
}
