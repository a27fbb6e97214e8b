// Package storage holds what the storage adapters share: sentinel errors.
//
// Adapters live in subpackages. memory keeps sessions in process with LRU
// eviction; postgres stores applications and sessions in PostgreSQL and
// serves as a registry.Loader and a session.Store; redis stores sessions
// as JSON values with native key expiry.
package storage
