// Package logtail reads the tail of the weatherdash log file for display.
//
// Read returns the last N lines using a ring buffer, so memory stays
// proportional to N rather than to the file size. Blank lines are skipped
// and a missing file reads as empty.
//
// The log file holds one JSON object per line as written by zap:
//
//	{"level":"warn","ts":"2026-05-01T12:00:00Z","logger":"state","msg":"readings subscription error","error":"..."}
//
// Parse splits such a line into level, time, logger and message, keeping
// everything else in Fields. Lines that are not JSON are kept verbatim in
// Entry.Raw.
package logtail
