package transfer

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"
)

// Kind selects the operation a transfer performs.
type Kind string

const (
	KindInstall  Kind = "install"
	KindArchive  Kind = "archive"
	KindChecksum Kind = "checksum"
	KindCopyApp  Kind = "copy-app"
)

// ID identifies an entry for the life of a queue.
type ID uint64

func (id ID) String() string {
	return "t" + strconv.FormatUint(uint64(id), 10)
}

// Entry describes one pending or running transfer.
type Entry struct {
	ID      ID
	Kind    Kind
	Title   string
	Source  string
	Dest    string
	Created time.Time
}

// Display is the short line shown in transfer lists.
func (e Entry) Display() string {
	name := e.Title
	if name == "" {
		name = filepath.Base(e.Source)
	}
	if e.Dest == "" {
		return fmt.Sprintf("%s %s", e.Kind, name)
	}
	return fmt.Sprintf("%s %s -> %s", e.Kind, name, e.Dest)
}

// Result is the completion value of a transfer job.
type Result struct {
	Entry Entry
	Value any
}
