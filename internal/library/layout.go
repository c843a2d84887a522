package library

import (
	"fmt"
	"path/filepath"
	"strings"

	"tinywii/internal/disc"
)

// Top-level directories on a drive.
const (
	WBFSDir  = "wbfs"
	GamesDir = "games"
	AppsDir  = "apps"
)

// RootFor returns the directory holding games for console.
func RootFor(console disc.Console) string {
	if console == disc.ConsoleGameCube {
		return GamesDir
	}
	return WBFSDir
}

// ParseDirName splits a "Title [ID]" directory name. Hidden names and names
// without a valid bracketed ID are rejected.
func ParseDirName(name string) (string, disc.GameID, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, "]") {
		return "", "", false
	}
	open := strings.LastIndex(name, "[")
	if open < 0 {
		return "", "", false
	}
	id, err := disc.ParseGameID(name[open+1 : len(name)-1])
	if err != nil {
		return "", "", false
	}
	title := strings.TrimSpace(name[:open])
	if title == "" {
		title = string(id)
	}
	return title, id, true
}

// DirName formats the directory name for a game.
func DirName(title string, id disc.GameID) string {
	title = SanitizeTitle(title)
	if title == "" {
		return fmt.Sprintf("[%s]", id)
	}
	return fmt.Sprintf("%s [%s]", title, id)
}

// GameDir returns the install directory for a game under mount.
func GameDir(mount string, console disc.Console, title string, id disc.GameID) string {
	return filepath.Join(mount, RootFor(console), DirName(title, id))
}

var titleReplacer = strings.NewReplacer(
	"/", " ", "\\", " ", ":", " -", "*", "", "?", "", "\"", "'", "<", "", ">", "", "|", "",
)

// SanitizeTitle strips characters FAT32 and exFAT reject in file names.
func SanitizeTitle(title string) string {
	cleaned := titleReplacer.Replace(title)
	cleaned = strings.Map(func(r rune) rune {
		if r < 0x20 {
			return -1
		}
		return r
	}, cleaned)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return strings.TrimRight(cleaned, ". ")
}
