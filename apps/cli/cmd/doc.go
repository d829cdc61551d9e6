// Package cmd implements the httpbridge CLI commands using Cobra.
//
// Available commands:
//   - fetch: Send one request through the sync or async transport
//   - bench: Load a server and report latency and errors by kind
//   - serve: Run the benchmark echo server
//   - history: List, show and delete saved benchmark runs
//   - version: Show version information
//
// Errors are mapped to exit codes by ExitCode, so scripts can tell a
// network failure from a bad request document or a failed threshold.
package cmd
