// Package userstore provides sensorgate.UserStore implementations: a
// Postgres store over database/sql with the pgx driver, and an in-memory
// store for tests and local runs.
package userstore
