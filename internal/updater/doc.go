// Package updater checks for new releases and downloads the GameTDB titles
// database, retrying transient HTTP failures with exponential backoff.
package updater
