// Package api provides the HTTP REST API and WebSocket endpoint for the
// Farlink signaling core.
//
// The WebSocket endpoint is the signaling plane: devices and dashboards
// are classified at upgrade time by the auth package, admitted into the
// connection registry, and their traffic fed through the message router.
// The REST surface covers device registration and inventory, status
// management, connect-request issuance, and health journal reads.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
