// Package dicom writes and re-reads the waveform artifacts the pipeline
// produces: explicit-VR little-endian files with a 128-byte preamble, group
// 0002 file meta, and a waveform sequence carrying 16-bit signed samples.
//
// The element dictionary covers only the tags this pipeline emits or
// inspects; it is deliberately not a full tag dictionary. The parser is the
// independent re-check side of the writer and backs the structural
// validator, which is the sole arbiter of conversion success.
package dicom
