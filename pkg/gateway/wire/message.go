// Package wire defines the gateway's framed JSON protocol: one request and
// one response per exchange, plus the column-oriented tabular payload format
// the existing clients expect.
package wire

import (
	"encoding/json"
	"fmt"
)

// Command names understood by the gateway. The set is closed; anything else
// yields a Fail response.
const (
	CommandLogin                  = "login"
	CommandGetProjectStructures   = "get_project_structure_list"
	CommandGetProjectList         = "get_project_list"
	CommandGetStructureList       = "get_structure_list"
	CommandGetDeviceList          = "get_device_list"
	CommandDownloadSensorData     = "download_sensordata"
	CommandDownloadSensorDataAsDF = "download_sensordata_as_df"
	CommandQueryDeviceChannel     = "query_device_channel_data"
)

// Result values carried by every response.
const (
	ResultSuccess = "Success"
	ResultFail    = "Fail"
)

// FlexString decodes a JSON string or number into a string. Existing clients
// send the sensor channel both ways.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("channel must be a string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f FlexString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(f))
}

// Request is one inbound command message.
//
// ProjectID and StructureID are pointers because several commands branch on
// whether the field was supplied at all, not on its emptiness.
type Request struct {
	Command     string     `json:"command"`
	User        string     `json:"user,omitempty"`
	Password    string     `json:"password,omitempty"`
	Instance    string     `json:"its,omitempty"`
	ProjectID   *string    `json:"projectid,omitempty"`
	StructureID *string    `json:"structureid,omitempty"`
	DeviceID    string     `json:"deviceid,omitempty"`
	Channel     FlexString `json:"channel,omitempty"`
}

// HasProject reports whether a non-empty project id was supplied.
func (r *Request) HasProject() bool {
	return r.ProjectID != nil && *r.ProjectID != ""
}

// HasStructure reports whether a non-empty structure id was supplied.
func (r *Request) HasStructure() bool {
	return r.StructureID != nil && *r.StructureID != ""
}

// Project returns the supplied project id, or "".
func (r *Request) Project() string {
	if r.ProjectID == nil {
		return ""
	}
	return *r.ProjectID
}

// Structure returns the supplied structure id, or "".
func (r *Request) Structure() string {
	if r.StructureID == nil {
		return ""
	}
	return *r.StructureID
}

// ConnectionInfo carries the downstream time-series store parameters handed
// to authorized clients. The gateway returns these verbatim from its
// configuration and never interprets them.
type ConnectionInfo struct {
	Host   string `json:"host"`
	Port   string `json:"port"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// Response is one outbound message. Data and DeviceInfo hold tabular result
// sets serialized in the column-oriented format (see Table); they are JSON
// strings inside the envelope, matching what the deployed clients parse.
type Response struct {
	Command    string          `json:"command"`
	Result     string          `json:"result"`
	Msg        string          `json:"msg,omitempty"`
	Data       string          `json:"data,omitempty"`
	DeviceInfo string          `json:"device_info,omitempty"`
	DBInfo     *ConnectionInfo `json:"dbinfo,omitempty"`
}

// Success builds a Success response for the given command.
func Success(command string) *Response {
	return &Response{Command: command, Result: ResultSuccess}
}

// Fail builds a Fail response with a human-readable message.
func Fail(command, msg string) *Response {
	return &Response{Command: command, Result: ResultFail, Msg: msg}
}

// Failf builds a Fail response with a formatted message.
func Failf(command, format string, args ...any) *Response {
	return Fail(command, fmt.Sprintf(format, args...))
}

// IsSuccess reports whether the response carries Result == Success.
func (r *Response) IsSuccess() bool {
	return r.Result == ResultSuccess
}
