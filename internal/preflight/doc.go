// Package preflight provides readiness checks for the drive and the local
// directories tinywii writes to.
//
// Mutating CLI commands run RunAll before touching the drive and stop on the
// first failure; "tinywii drive" prints every result.
package preflight
