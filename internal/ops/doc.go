// Package ops implements the long-running disc operations: checksumming,
// installing images into the drive layout, archiving split games into one
// file, and copying homebrew apps. Each runs synchronously and honours its
// context between chunks.
package ops
