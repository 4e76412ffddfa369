// Package postgres provides PostgreSQL implementations of the store
// interfaces, accessed through database/sql with the pgx driver.
package postgres
