package auth

import (
	"fmt"
	"net/http"
	"strings"
)

// Credential sources on the admission request. Peers send either an
// Authorization header ("ApiKey <key>" for devices, "Bearer <token>"
// for dashboards) or the equivalent query parameter ("apiKey",
// "token"). The query parameter names and the role/identity parameters
// ("type", "hostId", "deviceId", "clientId", "sid") are fixed wire
// vocabulary expected by existing agents and dashboards.
const (
	authSchemeAPIKey = "ApiKey"
	authSchemeBearer = "Bearer"

	paramType     = "type"
	paramHostID   = "hostId"
	paramDeviceID = "deviceId"
	paramClientID = "clientId"
	paramAPIKey   = "apiKey"
	paramToken    = "token"
	paramSession  = "sid"
)

// Authenticator classifies new transports at the admission boundary.
type Authenticator struct {
	keyring   *Keyring
	jwtSecret string
}

// NewAuthenticator creates an authenticator over the given device
// keyring and dashboard JWT secret.
func NewAuthenticator(keyring *Keyring, jwtSecret string) *Authenticator {
	return &Authenticator{
		keyring:   keyring,
		jwtSecret: jwtSecret,
	}
}

// Classify inspects an admission request and produces the identity
// descriptor the core will trust for the lifetime of the transport.
//
// The role is taken from the "type" query parameter when present, and
// otherwise inferred: a request naming hostId/deviceId is a device, one
// naming clientId is a dashboard. Requests carrying neither (the REST
// surface) fall back to the Authorization scheme, ApiKey or Bearer.
func (a *Authenticator) Classify(r *http.Request) (Identity, error) {
	q := r.URL.Query()

	role := Role(q.Get(paramType))
	if role == "" {
		switch {
		case q.Get(paramHostID) != "" || q.Get(paramDeviceID) != "":
			role = RoleDevice
		case q.Get(paramClientID) != "":
			role = RoleDashboard
		case credentialFrom(r, authSchemeAPIKey, paramAPIKey) != "":
			role = RoleDevice
		case credentialFrom(r, authSchemeBearer, paramToken) != "":
			role = RoleDashboard
		default:
			return Identity{}, fmt.Errorf("%w: no type and no identity parameter", ErrMissingCredentials)
		}
	}

	switch role {
	case RoleDevice:
		return a.classifyDevice(r)
	case RoleDashboard:
		return a.classifyDashboard(r)
	default:
		return Identity{}, fmt.Errorf("%w: unknown type %q", ErrAuthenticationFailed, string(role))
	}
}

// classifyDevice authenticates a device transport by API key.
//
// The identity is bound to the key: a claimed hostId/deviceId that does
// not match the identity the key authenticates is rejected, so a leaked
// key cannot be replayed under another device's name.
func (a *Authenticator) classifyDevice(r *http.Request) (Identity, error) {
	q := r.URL.Query()

	rawKey := credentialFrom(r, authSchemeAPIKey, paramAPIKey)
	if rawKey == "" {
		return Identity{}, fmt.Errorf("%w: device api key required", ErrMissingCredentials)
	}

	keyedID, err := a.keyring.Verify(rawKey)
	if err != nil {
		return Identity{}, err
	}

	claimed := q.Get(paramHostID)
	if claimed == "" {
		claimed = q.Get(paramDeviceID)
	}
	if claimed != "" && claimed != keyedID {
		return Identity{}, fmt.Errorf("%w: key does not authenticate %q", ErrAuthenticationFailed, claimed)
	}

	return Identity{Role: RoleDevice, ID: keyedID}, nil
}

// classifyDashboard authenticates a dashboard transport by bearer token
// and requires the view:dashboard permission.
func (a *Authenticator) classifyDashboard(r *http.Request) (Identity, error) {
	q := r.URL.Query()

	token := credentialFrom(r, authSchemeBearer, paramToken)
	if token == "" {
		return Identity{}, fmt.Errorf("%w: dashboard bearer token required", ErrMissingCredentials)
	}

	claims, err := ParseToken(token, a.jwtSecret)
	if err != nil {
		return Identity{}, err
	}

	if !claims.HasPermission(PermissionViewDashboard) {
		return Identity{}, fmt.Errorf("%w: %s required", ErrPermissionDenied, PermissionViewDashboard)
	}

	id := q.Get(paramClientID)
	if id == "" {
		id = claims.Subject
	}

	sid := q.Get(paramSession)
	if sid == "" {
		sid = claims.SessionID
	}

	return Identity{Role: RoleDashboard, ID: id, SessionID: sid}, nil
}

// credentialFrom extracts a credential from the Authorization header
// (given scheme) or falls back to the named query parameter.
func credentialFrom(r *http.Request, scheme, param string) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], scheme) {
			return strings.TrimSpace(parts[1])
		}
	}
	return r.URL.Query().Get(param)
}
