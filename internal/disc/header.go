package disc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"

	"tinywii/internal/services"
)

const (
	wiiMagic = 0x5D1C9EA3
	gcMagic  = 0xC2339F3D

	// HeaderSize is the prefix of the boot block Parse needs.
	HeaderSize = 0x60

	titleOffset = 0x20
	titleSize   = 0x40
)

// Header is the part of the boot block that identifies a disc.
type Header struct {
	ID         GameID
	DiscNumber uint8
	Version    uint8
	Console    Console
	Title      string
}

// Parse decodes a boot block prefix. The console comes from the magic words
// rather than the ID so unusual IDs still classify correctly.
func Parse(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, services.Wrap(services.ErrFormat, "disc", "parse header", fmt.Sprintf("need %d bytes, have %d", HeaderSize, len(buf)), nil)
	}
	var console Console
	switch {
	case binary.BigEndian.Uint32(buf[0x18:0x1C]) == wiiMagic:
		console = ConsoleWii
	case binary.BigEndian.Uint32(buf[0x1C:0x20]) == gcMagic:
		console = ConsoleGameCube
	default:
		return Header{}, services.Wrap(services.ErrFormat, "disc", "parse header", "no Wii or GameCube magic", nil)
	}
	id, err := ParseGameID(string(bytes.TrimRight(buf[0:6], "\x00 ")))
	if err != nil {
		return Header{}, services.Wrap(services.ErrFormat, "disc", "parse header", "", err)
	}
	return Header{
		ID:         id,
		DiscNumber: buf[6],
		Version:    buf[7],
		Console:    console,
		Title:      decodeTitle(buf[titleOffset:titleOffset+titleSize], id.RegionCode()),
	}, nil
}

// decodeTitle trims the NUL padded title field. Japanese discs store titles in
// Shift JIS; everything else that is not valid UTF-8 is treated as Latin-1.
func decodeTitle(raw []byte, region byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	if utf8.Valid(raw) {
		return strings.TrimSpace(string(raw))
	}
	var enc encoding.Encoding = charmap.ISO8859_1
	if region == 'J' {
		enc = japanese.ShiftJIS
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.TrimSpace(strings.ToValidUTF8(string(raw), "?"))
	}
	return strings.TrimSpace(string(out))
}
