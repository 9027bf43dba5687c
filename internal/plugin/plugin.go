// Package plugin reads the header record of Bethesda plugin files: enough
// to answer "is this a plugin", "is it a master", "is it light" and "what
// does its description say". The reader is total: malformed or non-plugin
// content yields a not-a-plugin record, never a panic.
package plugin

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/solatis/loadkeeper/internal/types"
)

/*
 * Two header families are supported.
 *
 * TES3 (Morrowind, OpenMW): a "TES3" record whose HEDR subrecord carries a
 * 300-byte block: version f32, file type u32, author char[32], description
 * char[256], record count u32. Masters are identified by the .esm
 * extension, not a flag.
 *
 * TES4 (everything else): a "TES4" record whose flags word carries the
 * master bit (0x1) and, on games with light plugins, the light bit
 * (0x200). The description is the SNAM subrecord. Oblivion record headers
 * are 20 bytes; later games use 24.
 */

// Record is the parsed header of a plugin file.
type Record struct {
	IsPlugin    bool
	IsMaster    bool
	IsLight     bool
	Description string
}

// Reader resolves plugin headers for the evaluator. Implementations must
// be total: a malformed file is reported as not-a-plugin via ErrNotPlugin
// or a zero Record, never a panic.
type Reader interface {
	Read(path string, game types.GameCode) (Record, error)
}

// HeaderReader is the default Reader, parsing files directly.
type HeaderReader struct{}

const (
	masterFlag = 0x0000_0001
	lightFlag  = 0x0000_0200

	tes3HeaderSize     = 16
	tes4HeaderSize     = 24
	oblivionHeaderSize = 20

	hedrDescriptionOffset = 40
	hedrDescriptionLength = 256
)

// Read parses the header record of the file at path. Missing files return
// ErrNotPlugin; files that are not plugins of the given game's format
// return a zero Record (IsPlugin false) and no error; I/O failures other
// than "does not exist" surface as errors.
func (HeaderReader) Read(path string, game types.GameCode) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, types.ErrNotPlugin
		}
		return Record{}, &types.IOError{Path: path, Err: err}
	}

	if game.UsesTES3Format() {
		return readTES3(data, path, game), nil
	}
	return readTES4(data, game), nil
}

func readTES3(data []byte, path string, game types.GameCode) Record {
	if len(data) < tes3HeaderSize || string(data[:4]) != "TES3" {
		return Record{}
	}

	rec := Record{IsPlugin: true}
	if game == types.Morrowind {
		name := game.TrimGhostSuffix(filepath.Base(path))
		rec.IsMaster = strings.HasSuffix(strings.ToLower(name), ".esm")
	}

	// Subrecords follow the 16-byte record header; HEDR is normally first.
	body := data[tes3HeaderSize:]
	recordSize := binary.LittleEndian.Uint32(data[4:])
	if int(recordSize) < len(body) {
		body = body[:recordSize]
	}

	for sub := range subrecords(body, 8) {
		if sub.tag == "HEDR" && len(sub.data) >= hedrDescriptionOffset+hedrDescriptionLength {
			rec.Description = cString(sub.data[hedrDescriptionOffset : hedrDescriptionOffset+hedrDescriptionLength])
			break
		}
	}
	return rec
}

func readTES4(data []byte, game types.GameCode) Record {
	headerSize := tes4HeaderSize
	if game == types.Oblivion {
		headerSize = oblivionHeaderSize
	}

	if len(data) < headerSize || string(data[:4]) != "TES4" {
		return Record{}
	}

	flags := binary.LittleEndian.Uint32(data[8:])
	rec := Record{
		IsPlugin: true,
		IsMaster: flags&masterFlag != 0,
	}
	if game.SupportsLightPlugins() {
		rec.IsLight = flags&lightFlag != 0
	}

	body := data[headerSize:]
	recordSize := binary.LittleEndian.Uint32(data[4:])
	if int(recordSize) < len(body) {
		body = body[:recordSize]
	}

	for sub := range subrecords(body, 6) {
		if sub.tag == "SNAM" {
			rec.Description = cString(sub.data)
			break
		}
	}
	return rec
}

type subrecord struct {
	tag  string
	data []byte
}

// subrecords iterates tag/size/data triples until the body is exhausted or
// malformed. TES3 subrecords carry u32 sizes (8-byte header); the TES4
// family carries u16 sizes (6-byte header).
func subrecords(body []byte, headerLen int) func(func(subrecord) bool) {
	return func(yield func(subrecord) bool) {
		for len(body) >= headerLen {
			tag := string(body[:4])
			var size int
			if headerLen == 8 {
				size = int(binary.LittleEndian.Uint32(body[4:]))
			} else {
				size = int(binary.LittleEndian.Uint16(body[4:]))
			}
			if size < 0 || headerLen+size > len(body) {
				return
			}
			if !yield(subrecord{tag: tag, data: body[headerLen : headerLen+size]}) {
				return
			}
			body = body[headerLen+size:]
		}
	}
}

// cString trims a fixed-size or NUL-terminated byte field to a string.
func cString(data []byte) string {
	if i := strings.IndexByte(string(data), 0); i >= 0 {
		data = data[:i]
	}
	return string(data)
}
