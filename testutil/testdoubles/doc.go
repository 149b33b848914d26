// Package testdoubles provides spy implementations of the observability and
// gateway interfaces for tests.
package testdoubles
