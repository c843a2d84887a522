// Command tinywii manages a USB drive of Wii and GameCube games.
//
// Headless commands run their work through the same scheduler as the
// terminal UI, draining completions until the batch is idle.
package main
