// Package catalog persists scan results in SQLite.
//
// Units of work write to it from pipeline workers; listings read it back so
// repeated runs do not reopen every disc image. The database is a cache: a
// schema mismatch asks the user to delete it and rescan.
package catalog
