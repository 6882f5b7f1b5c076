// Package logstore provides a size-bounded, append-only store for
// newline-delimited JSON records.
//
// A Store owns exactly one current file plus a fixed number of rotated
// history files in the same directory. When the next record would push the
// current file past its size bound, the file is demoted into the numbered
// history (slot 1 is the most recent) and a fresh current file is opened.
// History beyond the retention bound is deleted oldest-first.
//
// Records are never split across files: a single record may transiently
// push the current file past the bound by at most its own length. Writers
// are serialized through the store, so each line on disk is one complete
// record. Consumers should read files line by line; there is no enclosing
// structure, and the begin/finish records of one logical request are not
// guaranteed to land in the same file.
package logstore
