package metrics

import "time"

// GatewayMetrics provides observability for the protocol gateway.
//
// This interface is optional - pass nil to disable metrics collection with
// zero overhead.
type GatewayMetrics interface {
	// RecordConnectionAccepted increments the total accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed connections counter.
	RecordConnectionClosed()

	// RecordHandshakeFailure increments the TLS handshake failure counter.
	RecordHandshakeFailure()

	// SetActiveSessions updates the current session count.
	SetActiveSessions(count int)

	// RecordCommand records a completed command with its name, result
	// ("Success" or "Fail"), and processing duration.
	RecordCommand(command string, result string, duration time.Duration)

	// RecordAuthFailure increments the authentication/authorization failure
	// counter with a reason label ("unknown_user", "bad_password",
	// "window_expired", "no_grants", "project_scope", "structure_scope",
	// "placement_scope", "unknown_instance").
	RecordAuthFailure(reason string)

	// RecordListenerRestart increments the listener rebuild counter.
	RecordListenerRestart()
}
