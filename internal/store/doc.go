// Package store defines the persistence interfaces consumed by the
// review pipeline, along with the sentinel errors shared by all store
// implementations. Concrete implementations live in
// internal/platform/postgres.
package store
