package plugin

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/solatis/loadkeeper/internal/types"
)

// writeTES4 builds a TES4-family plugin with the given flags and optional
// SNAM description.
func writeTES4(t *testing.T, dir, name string, game types.GameCode, flags uint32, description string) string {
	t.Helper()

	headerSize := 24
	if game == types.Oblivion {
		headerSize = 20
	}

	var body []byte
	if description != "" {
		snam := append([]byte(description), 0)
		sub := make([]byte, 6+len(snam))
		copy(sub, "SNAM")
		binary.LittleEndian.PutUint16(sub[4:], uint16(len(snam)))
		copy(sub[6:], snam)
		body = sub
	}

	data := make([]byte, headerSize+len(body))
	copy(data, "TES4")
	binary.LittleEndian.PutUint32(data[4:], uint32(len(body)))
	binary.LittleEndian.PutUint32(data[8:], flags)
	copy(data[headerSize:], body)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

// writeTES3 builds a Morrowind-format plugin with a HEDR subrecord.
func writeTES3(t *testing.T, dir, name, description string) string {
	t.Helper()

	hedr := make([]byte, 300)
	copy(hedr[hedrDescriptionOffset:], description)

	body := make([]byte, 8+len(hedr))
	copy(body, "HEDR")
	binary.LittleEndian.PutUint32(body[4:], uint32(len(hedr)))
	copy(body[8:], hedr)

	data := make([]byte, 16+len(body))
	copy(data, "TES3")
	binary.LittleEndian.PutUint32(data[4:], uint32(len(body)))
	copy(data[16:], body)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestRead_TES4MasterFlag(t *testing.T) {
	dir := t.TempDir()
	master := writeTES4(t, dir, "master.esm", types.Skyrim, masterFlag, "")
	nonMaster := writeTES4(t, dir, "plugin.esp", types.Skyrim, 0, "")

	var r HeaderReader

	rec, err := r.Read(master, types.Skyrim)
	if err != nil {
		t.Fatalf("Read() error = %v, want nil", err)
	}
	if !rec.IsPlugin || !rec.IsMaster {
		t.Errorf("Read(master) = %+v, want plugin and master", rec)
	}

	rec, err = r.Read(nonMaster, types.Skyrim)
	if err != nil {
		t.Fatalf("Read() error = %v, want nil", err)
	}
	if !rec.IsPlugin || rec.IsMaster {
		t.Errorf("Read(plugin) = %+v, want plugin, not master", rec)
	}
}

func TestRead_TES4LightFlag(t *testing.T) {
	dir := t.TempDir()
	light := writeTES4(t, dir, "light.esp", types.SkyrimSE, lightFlag, "")

	var r HeaderReader

	rec, err := r.Read(light, types.SkyrimSE)
	if err != nil {
		t.Fatalf("Read() error = %v, want nil", err)
	}
	if !rec.IsLight {
		t.Errorf("Read() IsLight = false, want true for flag 0x200 on Skyrim SE")
	}

	// The light bit means nothing to games without light plugin support.
	rec, err = r.Read(light, types.Skyrim)
	if err != nil {
		t.Fatalf("Read() error = %v, want nil", err)
	}
	if rec.IsLight {
		t.Errorf("Read() IsLight = true, want false for Skyrim")
	}
}

func TestRead_TES4Description(t *testing.T) {
	dir := t.TempDir()
	path := writeTES4(t, dir, "desc.esp", types.Skyrim, 0, "A test plugin.")

	var r HeaderReader
	rec, err := r.Read(path, types.Skyrim)
	if err != nil {
		t.Fatalf("Read() error = %v, want nil", err)
	}
	if rec.Description != "A test plugin." {
		t.Errorf("Description = %q, want %q", rec.Description, "A test plugin.")
	}
}

func TestRead_OblivionHeaderIsTwentyBytes(t *testing.T) {
	dir := t.TempDir()
	path := writeTES4(t, dir, "ob.esp", types.Oblivion, 0, "Oblivion description")

	var r HeaderReader
	rec, err := r.Read(path, types.Oblivion)
	if err != nil {
		t.Fatalf("Read() error = %v, want nil", err)
	}
	if rec.Description != "Oblivion description" {
		t.Errorf("Description = %q, want %q", rec.Description, "Oblivion description")
	}
}

func TestRead_TES3(t *testing.T) {
	dir := t.TempDir()
	esm := writeTES3(t, dir, "Master.esm", "morrowind master")
	esp := writeTES3(t, dir, "Plugin.esp", "morrowind plugin")

	var r HeaderReader

	rec, err := r.Read(esm, types.Morrowind)
	if err != nil {
		t.Fatalf("Read() error = %v, want nil", err)
	}
	if !rec.IsPlugin || !rec.IsMaster {
		t.Errorf("Read(esm) = %+v, want plugin and master", rec)
	}
	if rec.Description != "morrowind master" {
		t.Errorf("Description = %q, want %q", rec.Description, "morrowind master")
	}

	rec, err = r.Read(esp, types.Morrowind)
	if err != nil {
		t.Fatalf("Read() error = %v, want nil", err)
	}
	if rec.IsMaster {
		t.Errorf("Read(esp) IsMaster = true, want false")
	}
}

func TestRead_OpenMWNeverMaster(t *testing.T) {
	dir := t.TempDir()
	path := writeTES3(t, dir, "game.omwgame", "openmw game file")

	var r HeaderReader
	rec, err := r.Read(path, types.OpenMW)
	if err != nil {
		t.Fatalf("Read() error = %v, want nil", err)
	}
	if !rec.IsPlugin || rec.IsMaster {
		t.Errorf("Read() = %+v, want plugin, never master for OpenMW", rec)
	}
}

func TestRead_MalformedIsNotPlugin(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "short", data: []byte("TES")},
		{name: "wrong magic", data: []byte("ABCD00000000000000000000")},
		{name: "text", data: []byte("this is not a plugin at all")},
	}

	var r HeaderReader
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			rec, err := r.Read(path, types.Skyrim)
			if err != nil {
				t.Fatalf("Read() error = %v, want nil", err)
			}
			if rec.IsPlugin {
				t.Errorf("Read(%s) IsPlugin = true, want false", tt.name)
			}
		})
	}
}

func TestRead_MissingFileIsErrNotPlugin(t *testing.T) {
	var r HeaderReader
	_, err := r.Read(filepath.Join(t.TempDir(), "missing.esp"), types.Skyrim)
	if !errors.Is(err, types.ErrNotPlugin) {
		t.Fatalf("Read() error = %v, want ErrNotPlugin", err)
	}
}
