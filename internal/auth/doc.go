// Package auth implements the admission boundary for Farlink Core.
//
// Every new transport is classified before it reaches the connection
// registry: unattended agents authenticate with an API key and become
// "device" identities; interactive viewers authenticate with a bearer
// token carrying the view:dashboard permission and become "dashboard"
// identities. The rest of the core trusts the resulting identity
// descriptor without re-verifying credentials.
//
// Device API keys are compared as SHA-256 digests in constant time.
// Dashboard tokens are HS256 JWTs validated by signature and expiry.
package auth
