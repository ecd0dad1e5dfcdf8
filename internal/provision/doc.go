// Package provision extracts the bundled downloader and transcoder
// executables into the binaries directory.
//
// Payloads come from the copies embedded at build time (payload/) or from a
// directory on disk. Ensure rewrites the executable on every call unless
// checksum skipping is enabled; writes are serialized across processes with
// a lock file in the binaries directory.
package provision
