// Package wfdb reads WFDB-style waveform records: a text header describing
// signals plus a binary sample file.
//
// Only the subset the conversion pipeline needs is implemented: format 16
// signals (16-bit two's complement, little-endian, sample-major) stored in a
// single data file, per-signal gain/baseline/unit/label attributes, header
// comments, and the optional base date/time fields. A matching writer exists
// so tests can synthesize records without fixture files.
package wfdb
