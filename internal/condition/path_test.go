package condition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/solatis/loadkeeper/internal/types"
)

func TestResolvePath_AdditionalPathsTakePrecedence(t *testing.T) {
	root := t.TempDir()
	overlay1 := filepath.Join(root, "Overlay1")
	overlay2 := filepath.Join(root, "Overlay2")
	data := filepath.Join(root, "Data")
	for _, d := range []string{overlay1, overlay2, data} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatalf("Mkdir() error = %v", err)
		}
	}
	for _, d := range []string{overlay2, data} {
		if err := os.WriteFile(filepath.Join(d, "shared.esp"), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	s := NewState(types.Skyrim, data)
	s.SetAdditionalDataPaths([]string{overlay1, overlay2})

	got, ok := resolvePath(s, "shared.esp")
	if !ok {
		t.Fatalf("resolvePath() ok = false, want true")
	}
	if want := filepath.Join(overlay2, "shared.esp"); got != want {
		t.Errorf("resolvePath() = %q, want the overlay copy %q", got, want)
	}
}

func TestResolvePath_OpenMWReversesCandidateOrder(t *testing.T) {
	root := t.TempDir()
	overlay1 := filepath.Join(root, "Overlay1")
	overlay2 := filepath.Join(root, "Overlay2")
	data := filepath.Join(root, "Data")
	for _, d := range []string{overlay1, overlay2, data} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatalf("Mkdir() error = %v", err)
		}
	}
	for _, d := range []string{overlay1, overlay2} {
		if err := os.WriteFile(filepath.Join(d, "shared.omwaddon"), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	s := NewState(types.OpenMW, data)
	s.SetAdditionalDataPaths([]string{overlay1, overlay2})

	// Reversed order checks the main data path first, then the overlays
	// from last to first.
	got, ok := resolvePath(s, "shared.omwaddon")
	if !ok {
		t.Fatalf("resolvePath() ok = false, want true")
	}
	if want := filepath.Join(overlay2, "shared.omwaddon"); got != want {
		t.Errorf("resolvePath() = %q, want %q", got, want)
	}
}

func TestResolvePath_FallsBackToDataJoinedPath(t *testing.T) {
	s, dir := newTestState(t, types.Skyrim)

	got, ok := resolvePath(s, "missing.esp")
	if ok {
		t.Fatalf("resolvePath() ok = true, want false")
	}
	if want := filepath.Join(dir, "missing.esp"); got != want {
		t.Errorf("resolvePath() = %q, want %q", got, want)
	}
}

func TestResolvePath_GhostFallbackOnlyForPluginExtensions(t *testing.T) {
	s, dir := newTestState(t, types.Skyrim)
	writeFile(t, dir, "plugin.esp.ghost", []byte("x"))
	writeFile(t, dir, "readme.txt.ghost", []byte("x"))

	if _, ok := resolvePath(s, "plugin.esp"); !ok {
		t.Errorf("resolvePath(plugin.esp) ok = false, want true via ghost fallback")
	}
	if _, ok := resolvePath(s, "readme.txt"); ok {
		t.Errorf("resolvePath(readme.txt) ok = true, want false: only plugins ghost")
	}
	// Already-ghosted paths do not gain a second suffix.
	writeFile(t, dir, "double.esp.ghost.ghost", []byte("x"))
	if _, ok := resolvePath(s, "double.esp.ghost"); ok {
		t.Errorf("resolvePath(double ghost) ok = true, want false")
	}
}

func TestResolvePath_GhostLookupIsCaseInsensitive(t *testing.T) {
	s, dir := newTestState(t, types.Skyrim)
	writeFile(t, dir, "Plugin.ESp.GHoST", []byte("x"))

	got, ok := resolvePath(s, "plugin.esp")
	if !ok {
		t.Fatalf("resolvePath() ok = false, want true")
	}
	if want := filepath.Join(dir, "Plugin.ESp.GHoST"); got != want {
		t.Errorf("resolvePath() = %q, want the on-disk name %q", got, want)
	}
}

func TestLocate_CaseInsensitiveComponents(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "Meshes", "Armor"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Meshes", "Armor", "Helm.nif"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, ok := locate(dir, "meshes/armor/helm.NIF")
	if !ok {
		t.Fatalf("locate() ok = false, want true")
	}
	if want := filepath.Join(dir, "Meshes", "Armor", "Helm.nif"); got != want {
		t.Errorf("locate() = %q, want %q", got, want)
	}
}

func TestResolveDir_DotIsTheDataPath(t *testing.T) {
	s, dir := newTestState(t, types.Skyrim)

	got, ok := resolveDir(s, ".")
	if !ok || got != dir {
		t.Errorf("resolveDir(.) = %q, %v, want %q, true", got, ok, dir)
	}
}
