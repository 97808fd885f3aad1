// Package daemon runs the repository update loop. Each cycle walks the
// configured repositories in order and drives a reporter.Reporter through
// its transitions; between cycles the daemon sleeps and refreshes the
// sleeping status on a heartbeat. Both the cycle and the heartbeat are
// gocron jobs.
package daemon
