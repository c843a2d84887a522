// Package watch triggers rescans when the drive layout changes outside
// tinywii, e.g. when games are copied in with a file manager.
package watch
