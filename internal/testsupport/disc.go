package testsupport

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"testing"
)

// Container formats understood by WriteDisc.
const (
	ContainerISO  = "iso"
	ContainerWBFS = "wbfs"
	ContainerCISO = "ciso"
)

// DiscHeader returns a 0x60 byte boot block for id and title. IDs starting
// with G or D get the GameCube magic, everything else the Wii magic.
func DiscHeader(id, title string) []byte {
	buf := make([]byte, 0x60)
	copy(buf[0:6], id)
	if len(id) > 0 && (id[0] == 'G' || id[0] == 'D') {
		binary.BigEndian.PutUint32(buf[0x1C:], 0xC2339F3D)
	} else {
		binary.BigEndian.PutUint32(buf[0x18:], 0x5D1C9EA3)
	}
	copy(buf[0x20:0x60], title)
	return buf
}

// WriteDisc writes a synthetic disc image of at least size bytes to path in
// the given container format.
func WriteDisc(t testing.TB, path, container, id, title string, size int64) {
	t.Helper()

	var prefix []byte
	switch container {
	case ContainerISO, "":
		prefix = DiscHeader(id, title)
	case ContainerWBFS:
		prefix = make([]byte, 0x200+0x60)
		copy(prefix, "WBFS")
		prefix[8] = 9
		copy(prefix[0x200:], DiscHeader(id, title))
	case ContainerCISO:
		prefix = make([]byte, 0x8000+0x60)
		copy(prefix, "CISO")
		binary.LittleEndian.PutUint32(prefix[4:], 0x8000)
		copy(prefix[0x8000:], DiscHeader(id, title))
	default:
		t.Fatalf("unknown container %q", container)
	}

	writePattern(t, path, max(size, int64(len(prefix))), prefix)
}

// MakeGameDir creates "<mount>/<wbfs|games>/Title [ID]/" holding one ISO
// image and returns the directory and the image path.
func MakeGameDir(t testing.TB, mount, id, title string, size int64) (string, string) {
	t.Helper()

	root := "wbfs"
	name := id + ".iso"
	if len(id) > 0 && (id[0] == 'G' || id[0] == 'D') {
		root = "games"
		name = "game.iso"
	}
	dir := filepath.Join(mount, root, fmt.Sprintf("%s [%s]", title, id))
	path := filepath.Join(dir, name)
	WriteDisc(t, path, ContainerISO, id, title, size)
	return dir, path
}
