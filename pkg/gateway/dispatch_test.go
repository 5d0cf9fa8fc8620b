package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shmkit/itsgate/pkg/directory/store"
	"github.com/shmkit/itsgate/pkg/gateway/wire"
)

var testTSDB = wire.ConnectionInfo{
	Host:   "tsdb.internal",
	Port:   "8086",
	Token:  "test-token",
	Org:    "monitoring",
	Bucket: "sensordata",
}

type testEnv struct {
	dispatcher *Dispatcher
	sessions   *SessionTable
	addrSeq    atomic.Int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	users := store.DefaultSeedUsers()
	users = append(users,
		store.SeedUser{
			Username:      "expired",
			Password:      "expired",
			Grade:         "CM",
			AuthStart:     time.Now().AddDate(-1, 0, 0),
			AuthEnd:       time.Now().AddDate(0, 0, -1),
			AuthorizedIDs: []string{"P_000001"},
		},
		store.SeedUser{
			Username: "nogrants",
			Password: "nogrants",
			Grade:    "CM",
		},
	)
	require.NoError(t, st.Seed(users))

	instances := Instances{
		"1": {Directory: st, TimeSeries: testTSDB},
	}
	return &testEnv{
		dispatcher: NewDispatcher(instances, nil),
		sessions:   NewSessionTable(nil),
	}
}

func (e *testEnv) newSession() *Session {
	return e.sessions.Add(fmt.Sprintf("10.0.0.1:%d", 40000+e.addrSeq.Add(1)))
}

func (e *testEnv) handle(req *wire.Request, sess *Session) *wire.Response {
	return e.dispatcher.Handle(context.Background(), req, sess)
}

func (e *testEnv) login(t *testing.T, user, password string) *Session {
	t.Helper()
	sess := e.newSession()
	resp := e.handle(&wire.Request{
		Command:  wire.CommandLogin,
		User:     user,
		Password: password,
		Instance: "1",
	}, sess)
	require.True(t, resp.IsSuccess(), "login failed: %s", resp.Msg)
	return sess
}

func strPtr(s string) *string { return &s }

// decodeTable parses a column-oriented data payload back into
// column -> row index -> value form.
func decodeTable(t *testing.T, payload string) map[string]map[string]any {
	t.Helper()
	var out map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &out))
	return out
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	t.Run("admin success", func(t *testing.T) {
		sess := env.login(t, "admin", "admin")
		assert.True(t, sess.Authenticated())
		assert.True(t, sess.IsAdmin())
		assert.Empty(t, sess.AuthorizedIDs)
	})

	t.Run("limited grade loads grants", func(t *testing.T) {
		sess := env.login(t, "manager", "manager")
		assert.False(t, sess.IsAdmin())
		assert.Equal(t, []string{"P_000001"}, sess.AuthorizedIDs)
	})

	t.Run("unknown user", func(t *testing.T) {
		sess := env.newSession()
		resp := env.handle(&wire.Request{
			Command: wire.CommandLogin, User: "ghost", Password: "x", Instance: "1",
		}, sess)
		assert.Equal(t, wire.ResultFail, resp.Result)
		assert.Equal(t, "userid : ghost is not exist", resp.Msg)
		assert.False(t, sess.Authenticated())
	})

	t.Run("invalid password", func(t *testing.T) {
		sess := env.newSession()
		resp := env.handle(&wire.Request{
			Command: wire.CommandLogin, User: "admin", Password: "wrong", Instance: "1",
		}, sess)
		assert.Equal(t, wire.ResultFail, resp.Result)
		assert.Equal(t, "Invalid password", resp.Msg)
		assert.False(t, sess.Authenticated())
	})

	t.Run("expired window", func(t *testing.T) {
		sess := env.newSession()
		resp := env.handle(&wire.Request{
			Command: wire.CommandLogin, User: "expired", Password: "expired", Instance: "1",
		}, sess)
		assert.Equal(t, wire.ResultFail, resp.Result)
		assert.Equal(t, "Your ID permissions have expired.", resp.Msg)
		assert.False(t, sess.Authenticated())
	})

	t.Run("limited grade without grants", func(t *testing.T) {
		sess := env.newSession()
		resp := env.handle(&wire.Request{
			Command: wire.CommandLogin, User: "nogrants", Password: "nogrants", Instance: "1",
		}, sess)
		assert.Equal(t, wire.ResultFail, resp.Result)
		assert.Equal(t, "You(nogrants) currently do not have access to any projects or structures.", resp.Msg)
		assert.False(t, sess.Authenticated())
	})

	t.Run("failed login keeps session locked out", func(t *testing.T) {
		sess := env.newSession()
		env.handle(&wire.Request{
			Command: wire.CommandLogin, User: "expired", Password: "expired", Instance: "1",
		}, sess)

		resp := env.handle(&wire.Request{
			Command: wire.CommandGetProjectList, Instance: "1",
		}, sess)
		assert.Equal(t, wire.ResultFail, resp.Result)
		assert.Equal(t, "Login first", resp.Msg)
	})

	t.Run("unknown instance selector", func(t *testing.T) {
		sess := env.newSession()
		resp := env.handle(&wire.Request{
			Command: wire.CommandLogin, User: "admin", Password: "admin", Instance: "9",
		}, sess)
		assert.Equal(t, wire.ResultFail, resp.Result)
		assert.False(t, sess.Authenticated())
	})
}

func TestUnknownCommand(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t, "admin", "admin")

	resp := env.handle(&wire.Request{Command: "drop_tables", Instance: "1"}, sess)
	assert.Equal(t, wire.ResultFail, resp.Result)
	assert.Equal(t, "not defined command", resp.Msg)
}

func TestProjectStructureList(t *testing.T) {
	env := newTestEnv(t)

	t.Run("requires login", func(t *testing.T) {
		resp := env.handle(&wire.Request{
			Command: wire.CommandGetProjectStructures, Instance: "1",
		}, env.newSession())
		assert.Equal(t, "Login first", resp.Msg)
	})

	t.Run("admin sees every structure", func(t *testing.T) {
		sess := env.login(t, "admin", "admin")
		resp := env.handle(&wire.Request{
			Command: wire.CommandGetProjectStructures, Instance: "1",
		}, sess)
		require.True(t, resp.IsSuccess(), resp.Msg)

		table := decodeTable(t, resp.Data)
		assert.Len(t, table["stid"], 3)
		assert.Equal(t, "P_000001", table["projectid"]["0"])
	})

	t.Run("manager sees only granted project", func(t *testing.T) {
		sess := env.login(t, "manager", "manager")
		resp := env.handle(&wire.Request{
			Command: wire.CommandGetProjectStructures, Instance: "1",
		}, sess)
		require.True(t, resp.IsSuccess(), resp.Msg)

		table := decodeTable(t, resp.Data)
		assert.Len(t, table["stid"], 2)
		for _, pid := range table["projectid"] {
			assert.Equal(t, "P_000001", pid)
		}
	})

	t.Run("structure-only grant matches nothing", func(t *testing.T) {
		sess := env.login(t, "contractor", "contractor")
		resp := env.handle(&wire.Request{
			Command: wire.CommandGetProjectStructures, Instance: "1",
		}, sess)
		assert.Equal(t, wire.ResultFail, resp.Result)
		assert.Equal(t, "Projects are not exist", resp.Msg)
	})
}

func TestProjectList(t *testing.T) {
	env := newTestEnv(t)

	t.Run("admin sees all projects", func(t *testing.T) {
		sess := env.login(t, "admin", "admin")
		resp := env.handle(&wire.Request{
			Command: wire.CommandGetProjectList, Instance: "1",
		}, sess)
		require.True(t, resp.IsSuccess(), resp.Msg)
		assert.Len(t, decodeTable(t, resp.Data)["projectid"], 2)
	})

	t.Run("manager is scoped", func(t *testing.T) {
		sess := env.login(t, "manager", "manager")
		resp := env.handle(&wire.Request{
			Command: wire.CommandGetProjectList, Instance: "1",
		}, sess)
		require.True(t, resp.IsSuccess(), resp.Msg)

		table := decodeTable(t, resp.Data)
		require.Len(t, table["projectid"], 1)
		assert.Equal(t, "P_000001", table["projectid"]["0"])
	})
}

func TestStructureList(t *testing.T) {
	env := newTestEnv(t)

	t.Run("granted project lists structures", func(t *testing.T) {
		sess := env.login(t, "manager", "manager")
		resp := env.handle(&wire.Request{
			Command: wire.CommandGetStructureList, Instance: "1",
			ProjectID: strPtr("P_000001"),
		}, sess)
		require.True(t, resp.IsSuccess(), resp.Msg)

		table := decodeTable(t, resp.Data)
		assert.Len(t, table["stid"], 2)
	})

	t.Run("denied before the directory is queried", func(t *testing.T) {
		sess := env.login(t, "manager", "manager")
		resp := env.handle(&wire.Request{
			Command: wire.CommandGetStructureList, Instance: "1",
			ProjectID: strPtr("P_404404"),
		}, sess)
		assert.Equal(t, wire.ResultFail, resp.Result)
		assert.Equal(t, "You do not have access to any structures. Please contact the administrator.", resp.Msg)
	})

	t.Run("admin on missing project", func(t *testing.T) {
		sess := env.login(t, "admin", "admin")
		resp := env.handle(&wire.Request{
			Command: wire.CommandGetStructureList, Instance: "1",
			ProjectID: strPtr("P_404404"),
		}, sess)
		assert.Equal(t, wire.ResultFail, resp.Result)
		assert.Equal(t, "Structures are not exist", resp.Msg)
	})
}

func TestDeviceList(t *testing.T) {
	env := newTestEnv(t)

	t.Run("requires login", func(t *testing.T) {
		resp := env.handle(&wire.Request{
			Command: wire.CommandGetDeviceList, Instance: "1",
			StructureID: strPtr("S_000001"),
		}, env.newSession())
		assert.Equal(t, "Login first", resp.Msg)
	})

	t.Run("requires a scope", func(t *testing.T) {
		sess := env.login(t, "admin", "admin")
		resp := env.handle(&wire.Request{
			Command: wire.CommandGetDeviceList, Instance: "1",
		}, sess)
		assert.Equal(t, "projectid or structureid required", resp.Msg)
	})

	t.Run("structure scope returns sensors and device info", func(t *testing.T) {
		sess := env.login(t, "manager", "manager")
		resp := env.handle(&wire.Request{
			Command: wire.CommandGetDeviceList, Instance: "1",
			StructureID: strPtr("S_000001"),
		}, sess)
		require.True(t, resp.IsSuccess(), resp.Msg)

		sensors := decodeTable(t, resp.Data)
		require.Len(t, sensors["deviceid"], 2)
		assert.Equal(t, "DEV_ACC_01", sensors["deviceid"]["0"])
		assert.Equal(t, "acceleration", sensors["data_type"]["0"])
		assert.Equal(t, "Y", sensors["is3axis"]["0"])

		info := decodeTable(t, resp.DeviceInfo)
		assert.Equal(t, "A1001", info["sn"]["0"])
		assert.Nil(t, resp.DBInfo)
	})

	t.Run("project grant covers its structures", func(t *testing.T) {
		sess := env.login(t, "manager", "manager")
		resp := env.handle(&wire.Request{
			Command: wire.CommandGetDeviceList, Instance: "1",
			StructureID: strPtr("S_000002"),
		}, sess)
		require.True(t, resp.IsSuccess(), resp.Msg)

		sensors := decodeTable(t, resp.Data)
		require.Len(t, sensors["deviceid"], 1)
		assert.Equal(t, "inclination", sensors["data_type"]["0"])
		assert.Equal(t, "N", sensors["is3axis"]["0"])
	})

	t.Run("foreign structure is denied", func(t *testing.T) {
		sess := env.login(t, "manager", "manager")
		resp := env.handle(&wire.Request{
			Command: wire.CommandGetDeviceList, Instance: "1",
			StructureID: strPtr("S_000003"),
		}, sess)
		assert.Equal(t, wire.ResultFail, resp.Result)
		assert.Equal(t, "You do not have access to this structure. Please contact the administrator.", resp.Msg)
	})

	t.Run("foreign project is denied", func(t *testing.T) {
		sess := env.login(t, "contractor", "contractor")
		resp := env.handle(&wire.Request{
			Command: wire.CommandGetDeviceList, Instance: "1",
			ProjectID: strPtr("P_000001"),
		}, sess)
		assert.Equal(t, wire.ResultFail, resp.Result)
		assert.Equal(t, "You do not have access to any projects. Please contact the administrator.", resp.Msg)
	})
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t)

	t.Run("requires a scope", func(t *testing.T) {
		sess := env.login(t, "admin", "admin")
		resp := env.handle(&wire.Request{
			Command: wire.CommandDownloadSensorData, Instance: "1",
		}, sess)
		assert.Equal(t, "projectid or structureid required", resp.Msg)
	})

	t.Run("admin project scope returns dbinfo", func(t *testing.T) {
		sess := env.login(t, "admin", "admin")
		resp := env.handle(&wire.Request{
			Command: wire.CommandDownloadSensorData, Instance: "1",
			ProjectID: strPtr("P_000001"),
		}, sess)
		require.True(t, resp.IsSuccess(), resp.Msg)

		sensors := decodeTable(t, resp.Data)
		assert.Len(t, sensors["deviceid"], 3)
		require.NotNil(t, resp.DBInfo)
		assert.Equal(t, testTSDB, *resp.DBInfo)
	})

	t.Run("manager narrows project to structure", func(t *testing.T) {
		sess := env.login(t, "manager", "manager")
		resp := env.handle(&wire.Request{
			Command: wire.CommandDownloadSensorData, Instance: "1",
			ProjectID:   strPtr("P_000001"),
			StructureID: strPtr("S_000002"),
		}, sess)
		require.True(t, resp.IsSuccess(), resp.Msg)
		assert.Len(t, decodeTable(t, resp.Data)["deviceid"], 1)
	})

	t.Run("structure outside the granted project", func(t *testing.T) {
		sess := env.login(t, "manager", "manager")
		resp := env.handle(&wire.Request{
			Command: wire.CommandDownloadSensorData, Instance: "1",
			ProjectID:   strPtr("P_000001"),
			StructureID: strPtr("S_000003"),
		}, sess)
		assert.Equal(t, wire.ResultFail, resp.Result)
		assert.Equal(t, "You do not have access to this structure. Please contact the administrator.", resp.Msg)
	})

	t.Run("structure-only request expands project grants", func(t *testing.T) {
		sess := env.login(t, "manager", "manager")
		resp := env.handle(&wire.Request{
			Command: wire.CommandDownloadSensorDataAsDF, Instance: "1",
			StructureID: strPtr("S_000001"),
		}, sess)
		require.True(t, resp.IsSuccess(), resp.Msg)
		assert.Len(t, decodeTable(t, resp.Data)["deviceid"], 2)
		require.NotNil(t, resp.DBInfo)
	})

	t.Run("direct structure grant", func(t *testing.T) {
		sess := env.login(t, "contractor", "contractor")
		resp := env.handle(&wire.Request{
			Command: wire.CommandDownloadSensorData, Instance: "1",
			StructureID: strPtr("S_000003"),
		}, sess)
		require.True(t, resp.IsSuccess(), resp.Msg)

		sensors := decodeTable(t, resp.Data)
		require.Len(t, sensors["deviceid"], 1)
		assert.Equal(t, "DEV_STR_01", sensors["deviceid"]["0"])
	})

	t.Run("structure-only denial", func(t *testing.T) {
		sess := env.login(t, "contractor", "contractor")
		resp := env.handle(&wire.Request{
			Command: wire.CommandDownloadSensorData, Instance: "1",
			StructureID: strPtr("S_000001"),
		}, sess)
		assert.Equal(t, wire.ResultFail, resp.Result)
		assert.Equal(t, "You do not have access to this structure. Please contact the administrator.", resp.Msg)
	})

	t.Run("ungranted project denial", func(t *testing.T) {
		sess := env.login(t, "manager", "manager")
		resp := env.handle(&wire.Request{
			Command: wire.CommandDownloadSensorData, Instance: "1",
			ProjectID: strPtr("P_000002"),
		}, sess)
		assert.Equal(t, wire.ResultFail, resp.Result)
		assert.Equal(t, "You do not have access to any structures. Please contact the administrator.", resp.Msg)
	})
}

func TestQueryDeviceChannel(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing parameters", func(t *testing.T) {
		sess := env.login(t, "admin", "admin")
		resp := env.handle(&wire.Request{
			Command: wire.CommandQueryDeviceChannel, Instance: "1",
			DeviceID: "DEV_ACC_01",
		}, sess)
		assert.Equal(t, "deviceid and channel are required", resp.Msg)
	})

	t.Run("parameter check precedes login check", func(t *testing.T) {
		resp := env.handle(&wire.Request{
			Command: wire.CommandQueryDeviceChannel, Instance: "1",
		}, env.newSession())
		assert.Equal(t, "deviceid and channel are required", resp.Msg)
	})

	t.Run("requires login", func(t *testing.T) {
		resp := env.handle(&wire.Request{
			Command: wire.CommandQueryDeviceChannel, Instance: "1",
			DeviceID: "DEV_ACC_01", Channel: "1",
		}, env.newSession())
		assert.Equal(t, "Login first", resp.Msg)
	})

	t.Run("unknown placement", func(t *testing.T) {
		sess := env.login(t, "admin", "admin")
		resp := env.handle(&wire.Request{
			Command: wire.CommandQueryDeviceChannel, Instance: "1",
			DeviceID: "DEV_NOPE", Channel: "1",
		}, sess)
		assert.Equal(t, "Device/Channel not found", resp.Msg)
	})

	t.Run("denied outside grants", func(t *testing.T) {
		sess := env.login(t, "contractor", "contractor")
		resp := env.handle(&wire.Request{
			Command: wire.CommandQueryDeviceChannel, Instance: "1",
			DeviceID: "DEV_ACC_01", Channel: "1",
		}, sess)
		assert.Equal(t, wire.ResultFail, resp.Result)
		assert.Equal(t, "Access denied for device DEV_ACC_01, channel 1", resp.Msg)
	})

	t.Run("success returns metadata and dbinfo", func(t *testing.T) {
		sess := env.login(t, "manager", "manager")
		resp := env.handle(&wire.Request{
			Command: wire.CommandQueryDeviceChannel, Instance: "1",
			DeviceID: "DEV_ACC_01", Channel: "1",
		}, sess)
		require.True(t, resp.IsSuccess(), resp.Msg)

		table := decodeTable(t, resp.Data)
		assert.Equal(t, "DEV_ACC_01", table["deviceid"]["0"])
		assert.Equal(t, "1", table["channel"]["0"])
		assert.Equal(t, "ACC", table["d_type"]["0"])
		assert.Equal(t, "acceleration", table["data_type"]["0"])
		assert.Equal(t, "Y", table["is3axis"]["0"])
		require.NotNil(t, resp.DBInfo)
		assert.Equal(t, testTSDB, *resp.DBInfo)
	})

	t.Run("numeric channel on the wire", func(t *testing.T) {
		sess := env.login(t, "manager", "manager")

		var req wire.Request
		require.NoError(t, json.Unmarshal([]byte(
			`{"command":"query_device_channel_data","its":"1","deviceid":"DEV_TLT_01","channel":1}`,
		), &req))

		resp := env.handle(&req, sess)
		require.True(t, resp.IsSuccess(), resp.Msg)
		assert.Equal(t, "inclination", decodeTable(t, resp.Data)["data_type"]["0"])
	})
}

// Repeating a command on the same session must not change its outcome or
// the session state.
func TestDispatchIdempotent(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t, "manager", "manager")

	req := &wire.Request{
		Command: wire.CommandGetProjectList, Instance: "1",
	}
	first := env.handle(req, sess)
	require.True(t, first.IsSuccess())

	for i := 0; i < 3; i++ {
		resp := env.handle(req, sess)
		assert.Equal(t, first.Data, resp.Data)
	}
	assert.Equal(t, []string{"P_000001"}, sess.AuthorizedIDs)
}
