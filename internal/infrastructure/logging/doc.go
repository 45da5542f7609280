// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// Components obtain named sub-loggers via Named so every line carries the
// subsystem that emitted it (ws, session, clone, netcache, browser).
package logging
