// Command wavebatch converts batches of physiological waveform records
// into DICOM waveform artifacts. Runs are resumable: progress lives in a
// SQLite ledger with the configured CSV tables as the import and export
// boundary.
package main
