package auth

import "errors"

// Role classifies an admitted peer.
type Role string

const (
	// RoleDevice is an unattended agent being monitored and controlled.
	RoleDevice Role = "device"

	// RoleDashboard is an interactive viewer consuming device presence
	// and initiating remote-control sessions.
	RoleDashboard Role = "dashboard"
)

// Valid reports whether r is a recognised role.
func (r Role) Valid() bool {
	return r == RoleDevice || r == RoleDashboard
}

// PermissionViewDashboard is required in a dashboard token's permission
// claims before the transport is admitted.
const PermissionViewDashboard = "view:dashboard"

// Identity describes an authenticated peer. The core trusts it without
// re-verifying credentials.
type Identity struct {
	Role Role   `json:"role"`
	ID   string `json:"id"`

	// SessionID carries an optional prior session identifier supplied by
	// dashboards for session continuity across reconnects.
	SessionID string `json:"sid,omitempty"`
}

// Admission errors. A transport that fails classification is rejected
// before it ever enters the connection registry.
var (
	// ErrAuthenticationFailed is the generic admission rejection.
	ErrAuthenticationFailed = errors.New("auth: authentication failed")

	// ErrMissingCredentials is returned when no usable credential was supplied.
	ErrMissingCredentials = errors.New("auth: missing credentials")

	// ErrUnknownAPIKey is returned when a device API key matches no known device.
	ErrUnknownAPIKey = errors.New("auth: unknown api key")

	// ErrTokenInvalid is returned when a dashboard token fails validation.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrPermissionDenied is returned when a valid token lacks the
	// required permission.
	ErrPermissionDenied = errors.New("auth: permission denied")
)
