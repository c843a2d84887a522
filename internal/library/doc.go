// Package library reads the drive layout: Wii games under wbfs/, GameCube
// games under games/, homebrew under apps/, and the GameTDB titles file at
// the root. It also owns the drive lock and capacity queries.
package library
