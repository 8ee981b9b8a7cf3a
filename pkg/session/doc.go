// Package session implements the gaze calibration session lifecycle. It
// contains:
//
//   - State: the discrete steps of the session state machine
//   - Tag: the status tag exposed to external loggers
//   - Status: a synthesized view model returned by HTTP APIs and used by the console
//   - Manager: the orchestrator reacting to tracker events and the manual trigger
//   - Loop: the single logical thread all session work runs on
//
// The Manager is not safe for concurrent use except for Status and SceneStat;
// every other method must run on the Loop.
package session
