// Structured log sink contract
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dwmmc

// Logger is the log sink contract the core requires: five severities,
// each taking a message plus optional structured key/value pairs. A
// missing sink is tolerated — every call site goes through Host.log,
// which substitutes nopLogger when Log is nil.
//
// Grounded on the original driver's use of the `log` crate's five-level
// facade (error!/warn!/info!/debug!/trace!); no logging library appears
// anywhere in the retrieval pack this module was built from, so this is a
// small hand-rolled interface rather than an adopted dependency.
type Logger interface {
	Error(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Info(msg string, kv ...any)
	Debug(msg string, kv ...any)
	Trace(msg string, kv ...any)
}

type nopLogger struct{}

func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Trace(string, ...any) {}

func (h *Host) log() Logger {
	if h.Log == nil {
		return nopLogger{}
	}
	return h.Log
}
