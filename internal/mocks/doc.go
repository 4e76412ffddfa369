// Package mocks provides centralized mock implementations for testing.
//
// Each mock implements one of the store interfaces with a working
// in-memory default, optional per-method function overrides, and error
// injection fields. Test packages share these instead of declaring
// inline fakes.
//
// Usage:
//
//	tasks := mocks.NewMockTaskStore()
//	tasks.CreateError = errors.New("boom")
//
// When adding a new mock, name the file after the interface being
// mocked and keep the Fn-field override pattern.
package mocks
