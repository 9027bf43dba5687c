// Package pe extracts version information from Windows PE executables
// without OS help: the DOS header is followed to the COFF header, the
// optional header's data directories locate the resource section, and the
// VS_VERSION_INFO resource is walked for its VS_FIXEDFILEINFO block and
// StringFileInfo tables.
package pe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf16"

	"golang.org/x/exp/mmap"

	"github.com/solatis/loadkeeper/internal/types"
	"github.com/solatis/loadkeeper/internal/version"
)

/*
 * Failure model.
 *
 * A file that is not a PE, is truncated, or has no version resource yields
 * a distinguished absence (found == false), not an error. Only failures to
 * open or read the file surface as errors. Callers decide what an absent
 * version means per predicate.
 */

const (
	dosMagic           = "MZ"
	peMagic            = "PE\x00\x00"
	peHeaderOffsetAddr = 0x3c
	pe32Magic          = 0x10b
	resourceTableIndex = 2
	rtVersion          = 16
)

var errNotPE = errors.New("not a PE file")

// FileVersion reads the numeric file version from the VS_FIXEDFILEINFO
// block. found is false when the file is not a PE or carries no version.
func FileVersion(path string) (v version.Version, found bool, err error) {
	return read(path, readFileVersion)
}

// ProductVersion reads the ProductVersion string from the first
// StringFileInfo table, using the first translation block found. Some
// executables only carry a non-English block, so no language is preferred.
func ProductVersion(path string) (v version.Version, found bool, err error) {
	return read(path, readProductVersion)
}

// IsReadablePE reports whether the file opens and carries well-formed PE
// headers. Open and read failures surface as errors; structurally invalid
// content reports false.
func IsReadablePE(path string) (bool, error) {
	_, err := withFileData(path, func(data []byte) ([]byte, error) {
		return resourceData(data)
	})
	if err != nil {
		var ioErr *types.IOError
		if errors.As(err, &ioErr) {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func read(path string, extract func([]byte) (version.Version, bool, error)) (version.Version, bool, error) {
	var v version.Version
	var found bool

	_, err := withFileData(path, func(data []byte) ([]byte, error) {
		resource, err := resourceData(data)
		if err != nil {
			return nil, err
		}
		if resource == nil {
			return nil, nil
		}
		v, found, err = extract(resource)
		return nil, err
	})
	if err != nil {
		var ioErr *types.IOError
		if errors.As(err, &ioErr) {
			// Surface real I/O failures; everything else is "no version".
			return version.Version{}, false, err
		}
		return version.Version{}, false, nil
	}
	return v, found, nil
}

// withFileData memory-maps the file when possible and falls back to
// reading it into memory, then runs fn over the bytes.
func withFileData(path string, fn func([]byte) ([]byte, error)) ([]byte, error) {
	if r, err := mmap.Open(path); err == nil {
		defer r.Close()
		data := make([]byte, r.Len())
		if _, err := r.ReadAt(data, 0); err != nil && err != io.EOF {
			return nil, &types.IOError{Path: path, Err: err}
		}
		return fn(data)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.IOError{Path: path, Err: err}
	}
	return fn(data)
}

func u16at(data []byte, off int) (uint16, bool) {
	if off < 0 || off+2 > len(data) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(data[off:]), true
}

func u32at(data []byte, off int) (uint32, bool) {
	if off < 0 || off+4 > len(data) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(data[off:]), true
}

func slice(data []byte, off, size int) ([]byte, bool) {
	if off < 0 || size < 0 || off+size > len(data) {
		return nil, false
	}
	return data[off : off+size], true
}

// resourceData locates and returns the bytes of the VS_VERSION_INFO
// resource, or nil when the executable has none. errNotPE is returned for
// structurally invalid content.
func resourceData(data []byte) ([]byte, error) {
	if len(data) < 2 || string(data[:2]) != dosMagic {
		return nil, errNotPE
	}

	peOffset16, ok := u16at(data, peHeaderOffsetAddr)
	if !ok {
		return nil, errNotPE
	}
	peOffset := int(peOffset16)

	magic, ok := slice(data, peOffset, 4)
	if !ok || string(magic) != peMagic {
		return nil, errNotPE
	}

	coffOffset := peOffset + 4
	numberOfSections, ok := u16at(data, coffOffset+2)
	if !ok {
		return nil, errNotPE
	}
	optionalHeaderSize, ok := u16at(data, coffOffset+16)
	if !ok || optionalHeaderSize == 0 {
		// The optional header is required for executables.
		return nil, errNotPE
	}

	optOffset := coffOffset + 20
	opt, ok := slice(data, optOffset, int(optionalHeaderSize))
	if !ok {
		return nil, errNotPE
	}

	dirRVA, dirSize, ok := resourceDirectory(opt)
	if !ok {
		return nil, nil
	}

	sectionOffset := optOffset + int(optionalHeaderSize)
	for i := 0; i < int(numberOfSections); i++ {
		entry, ok := slice(data, sectionOffset+i*40, 40)
		if !ok {
			return nil, errNotPE
		}
		virtualSize := binary.LittleEndian.Uint32(entry[8:])
		virtualAddress := binary.LittleEndian.Uint32(entry[12:])
		rawSize := binary.LittleEndian.Uint32(entry[16:])
		rawOffset := binary.LittleEndian.Uint32(entry[20:])

		sectionSize := rawSize
		if virtualSize < sectionSize {
			sectionSize = virtualSize
		}
		if dirRVA < virtualAddress || dirRVA+dirSize > virtualAddress+sectionSize {
			continue
		}

		table, ok := slice(data, int(rawOffset)+int(dirRVA-virtualAddress), int(dirSize))
		if !ok {
			return nil, errNotPE
		}
		return versionResource(table, dirRVA)
	}

	return nil, nil
}

// resourceDirectory reads the resource table entry out of the optional
// header's data directories.
func resourceDirectory(opt []byte) (rva, size uint32, ok bool) {
	magic, ok := u16at(opt, 0)
	if !ok {
		return 0, 0, false
	}

	// The data directory count sits after the standard and Windows-specific
	// fields, whose combined size differs between PE32 and PE32+.
	countOffset := 92
	if magic != pe32Magic {
		countOffset = 108
	}

	count, ok := u32at(opt, countOffset)
	if !ok || uint32(resourceTableIndex) >= count {
		return 0, 0, false
	}

	dirOffset := countOffset + 4 + resourceTableIndex*8
	rva, ok1 := u32at(opt, dirOffset)
	size, ok2 := u32at(opt, dirOffset+4)
	if !ok1 || !ok2 || size == 0 {
		return 0, 0, false
	}
	return rva, size, true
}

// versionResource walks the three-level resource directory (type, name,
// language) for the first RT_VERSION data entry and returns its bytes.
// Offsets inside the resource table are relative to the table start; the
// data entry's RVA is relative to the loaded image.
func versionResource(table []byte, tableRVA uint32) ([]byte, error) {
	dataEntryOffset, ok := findVersionDataEntry(table)
	if !ok {
		return nil, nil
	}

	dataRVA, ok1 := u32at(table, dataEntryOffset)
	dataSize, ok2 := u32at(table, dataEntryOffset+4)
	if !ok1 || !ok2 {
		return nil, errNotPE
	}

	resource, ok := slice(table, int(dataRVA-tableRVA), int(dataSize))
	if !ok {
		return nil, errNotPE
	}
	return resource, nil
}

func findVersionDataEntry(table []byte) (int, bool) {
	for _, typeEntry := range directoryEntries(table, 0) {
		if typeEntry.id != rtVersion || !typeEntry.isTable {
			continue
		}
		for _, nameEntry := range directoryEntries(table, typeEntry.offset) {
			if !nameEntry.isTable {
				continue
			}
			for _, langEntry := range directoryEntries(table, nameEntry.offset) {
				if !langEntry.isTable {
					return langEntry.offset, true
				}
			}
		}
	}
	return 0, false
}

type directoryEntry struct {
	id      uint32
	offset  int
	isTable bool
}

func directoryEntries(table []byte, dirOffset int) []directoryEntry {
	nameCount, ok1 := u16at(table, dirOffset+12)
	idCount, ok2 := u16at(table, dirOffset+14)
	if !ok1 || !ok2 {
		return nil
	}

	count := int(nameCount) + int(idCount)
	entries := make([]directoryEntry, 0, count)
	for i := 0; i < count; i++ {
		off := dirOffset + 16 + i*8
		id, ok1 := u32at(table, off)
		raw, ok2 := u32at(table, off+4)
		if !ok1 || !ok2 {
			return entries
		}
		entries = append(entries, directoryEntry{
			id:      id,
			offset:  int(raw &^ (1 << 31)),
			isTable: raw&(1<<31) != 0,
		})
	}
	return entries
}

/*
 * VS_VERSIONINFO traversal.
 *
 * Every pseudo-struct in the resource starts with wLength and wValueLength
 * words and a UTF-16 key. Children are aligned on 32-bit boundaries.
 */

const (
	keyOffset          = 6
	fixedFileInfoStart = 40
	fixedFileInfoSize  = 0x34
)

var (
	versionInfoKey    = utf16Key("VS_VERSION_INFO")
	stringFileInfoKey = utf16Key("StringFileInfo")
	productVersionKey = utf16Key("ProductVersion")
	fileVersionKey    = utf16Key("FileVersion")
)

func utf16Key(s string) []byte {
	out := make([]byte, 0, 2*len(s)+2)
	for i := 0; i < len(s); i++ {
		out = append(out, s[i], 0)
	}
	return append(out, 0, 0)
}

func hasKeyAt(data []byte, off int, key []byte) bool {
	got, ok := slice(data, off, len(key))
	return ok && string(got) == string(key)
}

func alignedStep(length int) int {
	if length%4 == 0 {
		return length
	}
	return length + 2
}

func versionInfoHeaders(data []byte) (length, valueLength int, err error) {
	l, ok1 := u16at(data, 0)
	vl, ok2 := u16at(data, 2)
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("buffer too small for a VS_VERSIONINFO header")
	}
	if int(l) != len(data) {
		return 0, 0, fmt.Errorf("unexpected VS_VERSIONINFO length %d in a %d byte buffer", l, len(data))
	}
	if !hasKeyAt(data, keyOffset, versionInfoKey) {
		return 0, 0, fmt.Errorf("invalid szKey for a VS_VERSIONINFO struct")
	}
	return int(l), int(vl), nil
}

// readFixedFileVersion decodes the four-part file version from the
// VS_FIXEDFILEINFO value block.
func readFixedFileVersion(data []byte) (version.Version, bool, error) {
	_, valueLength, err := versionInfoHeaders(data)
	if err != nil {
		return version.Version{}, false, err
	}
	if valueLength == 0 {
		return version.Version{}, false, nil
	}

	fixed, ok := slice(data, fixedFileInfoStart, valueLength)
	if !ok || len(fixed) != fixedFileInfoSize {
		return version.Version{}, false, fmt.Errorf("unexpected VS_FIXEDFILEINFO size %d", valueLength)
	}
	if binary.LittleEndian.Uint32(fixed) != 0xfeef04bd {
		return version.Version{}, false, fmt.Errorf("unexpected VS_FIXEDFILEINFO signature")
	}

	// dwFileVersionMS holds major in its high word and minor in its low
	// word; dwFileVersionLS holds patch high and build low.
	ms := binary.LittleEndian.Uint32(fixed[8:])
	ls := binary.LittleEndian.Uint32(fixed[12:])
	v := version.FromParts(ms>>16, ms&0xffff, ls>>16, ls&0xffff)
	return v, true, nil
}

// readFileVersion prefers the fixed block and falls back to the
// FileVersion string entry when the block is absent.
func readFileVersion(data []byte) (version.Version, bool, error) {
	v, found, err := readFixedFileVersion(data)
	if err != nil || found {
		return v, found, err
	}
	return readVersionString(data, fileVersionKey)
}

// readProductVersion walks StringFileInfo children for the first
// ProductVersion string.
func readProductVersion(data []byte) (version.Version, bool, error) {
	return readVersionString(data, productVersionKey)
}

func readVersionString(data []byte, key []byte) (version.Version, bool, error) {
	length, valueLength, err := versionInfoHeaders(data)
	if err != nil {
		return version.Version{}, false, err
	}

	childrenStart := fixedFileInfoStart + valueLength
	children, ok := slice(data, childrenStart, length-childrenStart)
	if !ok {
		return version.Version{}, false, fmt.Errorf("VS_VERSIONINFO children out of bounds")
	}

	for len(children) > 0 {
		childLength, ok := u16at(children, 0)
		if !ok || childLength == 0 {
			return version.Version{}, false, fmt.Errorf("invalid VS_VERSIONINFO child length")
		}

		if hasKeyAt(children, keyOffset, stringFileInfoKey) {
			if s, found, err := stringFromFileInfo(children, int(childLength), key); err != nil || found {
				return s, found, err
			}
		}

		step := alignedStep(int(childLength))
		if step >= len(children) {
			break
		}
		children = children[step:]
	}
	return version.Version{}, false, nil
}

func stringFromFileInfo(child []byte, childLength int, key []byte) (version.Version, bool, error) {
	tablesStart := keyOffset + len(stringFileInfoKey)
	tables, ok := slice(child, tablesStart, childLength-tablesStart)
	if !ok {
		return version.Version{}, false, fmt.Errorf("StringFileInfo header too small")
	}

	for len(tables) > 0 {
		tableLength, ok := u16at(tables, 0)
		if !ok || tableLength == 0 {
			return version.Version{}, false, fmt.Errorf("invalid StringTable length")
		}

		// The first translation block found is used; US English is not
		// preferred because some executables only carry another language.
		const stringsOffset = 24
		strs, ok := slice(tables, stringsOffset, int(tableLength)-stringsOffset)
		if !ok {
			return version.Version{}, false, fmt.Errorf("StringTable header too small")
		}

		for len(strs) > 0 {
			strLength, ok1 := u16at(strs, 0)
			strValueLength, ok2 := u16at(strs, 2)
			if !ok1 || !ok2 || strLength == 0 {
				return version.Version{}, false, fmt.Errorf("invalid String struct")
			}

			if hasKeyAt(strs, keyOffset, key) {
				valueOffset := keyOffset + len(key)
				raw, ok := slice(strs, valueOffset, int(strValueLength)*2)
				if !ok {
					return version.Version{}, false, fmt.Errorf("String value out of bounds")
				}
				return version.Parse(decodeUTF16(raw)), true, nil
			}

			step := alignedStep(int(strLength))
			if step >= len(strs) {
				strs = nil
			} else {
				strs = strs[step:]
			}
		}

		step := alignedStep(int(tableLength))
		if step >= len(tables) {
			break
		}
		tables = tables[step:]
	}
	return version.Version{}, false, nil
}

func decodeUTF16(raw []byte) string {
	u16s := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		u16s = append(u16s, binary.LittleEndian.Uint16(raw[i:]))
	}
	// Drop the trailing NUL.
	if n := len(u16s); n > 0 && u16s[n-1] == 0 {
		u16s = u16s[:n-1]
	}
	return string(utf16.Decode(u16s))
}
