// Package harness compares built queries against golden files.
//
// A golden file holds the query text followed by its parameters as
// canonical JSON, so parameter maps compare independently of Go's map
// order. Files live under testdata/golden of the calling package.
//
// To regenerate golden files, run the package tests with -update:
//
//	go test ./querybuilder -update
package harness
