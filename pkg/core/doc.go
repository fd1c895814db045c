// Package core holds the shared domain types for schemagen: run and task
// execution records and the state store contract. It depends only on the
// standard library so that any package can import it without cycles.
package core
