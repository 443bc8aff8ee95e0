// Package device implements the device registry and the presence state
// machine for Farlink Core.
//
// The Registry is the single owner of durable device records. It keeps a
// write-through in-memory cache over a Store implementation, with one
// hard consistency rule: a record is persisted before the cache is
// updated, so the cache never reflects state that failed to persist.
//
// Presence (online / idle / offline) is derived purely from the time
// since a device was last seen; see DeriveStatus. Transitions committed
// through any mutation path are reported via the registry's StatusHook,
// which the health monitor uses to journal events and broadcast updates.
package device
