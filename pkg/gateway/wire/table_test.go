package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableEncode(t *testing.T) {
	tbl := NewTable("projectid", "projectname")
	require.NoError(t, tbl.Append("P_000001", "Harbor Bridge"))
	require.NoError(t, tbl.Append("P_000002", "Metro Tunnel"))

	out, err := tbl.Encode()
	require.NoError(t, err)

	assert.Equal(t,
		`{"projectid":{"0":"P_000001","1":"P_000002"},"projectname":{"0":"Harbor Bridge","1":"Metro Tunnel"}}`,
		out)
}

func TestTableColumnOrderPreserved(t *testing.T) {
	tbl := NewTable("z", "a", "m")
	require.NoError(t, tbl.Append(1, 2, 3))

	out, err := tbl.Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"z":{"0":1},"a":{"0":2},"m":{"0":3}}`, out)
}

func TestTableTimestamps(t *testing.T) {
	reg := time.Date(2023, 3, 2, 0, 0, 0, 0, time.UTC)
	tbl := NewTable("regdate", "closedate")
	require.NoError(t, tbl.Append(&reg, (*time.Time)(nil)))

	out, err := tbl.Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"regdate":{"0":1677715200000},"closedate":{"0":null}}`, out)
}

func TestTableEmpty(t *testing.T) {
	tbl := NewTable("stid", "stname")
	assert.True(t, tbl.Empty())

	out, err := tbl.Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"stid":{},"stname":{}}`, out)
}

func TestTableArityMismatch(t *testing.T) {
	tbl := NewTable("a", "b")
	assert.Error(t, tbl.Append(1))
}

func TestFlexStringDecoding(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal(
		[]byte(`{"command":"query_device_channel_data","deviceid":"DEV_ACC_01","channel":1}`), &req))
	assert.Equal(t, FlexString("1"), req.Channel)

	require.NoError(t, json.Unmarshal(
		[]byte(`{"command":"query_device_channel_data","deviceid":"DEV_ACC_01","channel":"2"}`), &req))
	assert.Equal(t, FlexString("2"), req.Channel)

	assert.Error(t, json.Unmarshal(
		[]byte(`{"command":"query_device_channel_data","channel":{"bad":true}}`), &req))
}

func TestRequestOptionalScopes(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal(
		[]byte(`{"command":"download_sensordata","projectid":null,"structureid":"S_000003"}`), &req))

	assert.False(t, req.HasProject())
	assert.True(t, req.HasStructure())
	assert.Equal(t, "S_000003", req.Structure())
	assert.Equal(t, "", req.Project())
}

func TestResponseEnvelope(t *testing.T) {
	resp := Fail(CommandGetProjectList, "Login first")
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	assert.JSONEq(t, `{"command":"get_project_list","result":"Fail","msg":"Login first"}`, string(data))
	assert.False(t, resp.IsSuccess())
}
