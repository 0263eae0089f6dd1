package main

// Exit codes. Per-identifier failures (not found, service errors) are
// reported in the run summary and do not affect the exit code; only
// document or bibliography I/O failures are fatal.
const (
	ExitSuccess     = 0 // Success, possibly with reported unresolved entries
	ExitError       = 1 // General error (invalid arguments, unwritable output)
	ExitConfigError = 2 // Configuration error (bad config file or flag value)
	ExitDataError   = 3 // Data error (unreadable or invalid input document)
)
