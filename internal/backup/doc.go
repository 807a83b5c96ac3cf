// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

/*
Package backup takes scheduled snapshots of the DuckDB database file.

Detection evidence, case history and enforcement records must survive a
lost disk, so the Manager runs under the supervisor tree and on every
interval:

 1. forces a DuckDB CHECKPOINT so the write-ahead log is folded in
 2. writes a tar archive (gzip when Compress is set) containing
    database/fairplay.duckdb, the .wal file if one remains, and
    backup-metadata.json with SHA-256 checksums of each file
 3. deletes all but the newest Keep archives

Archive names sort chronologically:

	fairplay-backup-20260301T120000Z-<id>.tar.gz

Restore is an operator task: stop the server and extract the archive over
the configured database path.
*/
package backup
