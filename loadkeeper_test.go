package loadkeeper_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/solatis/loadkeeper"
)

func TestParseAndEval(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Blank.esm"), []byte("TES4"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	s := loadkeeper.NewState(loadkeeper.Skyrim, dir)
	s.SetActivePlugins([]string{"Blank.esm"})
	s.SetCRCCache([]loadkeeper.PluginCRC{{Name: "Blank.esm", CRC: 0xDEADBEEF}})
	s.SetPluginVersions([]loadkeeper.PluginVersion{{Name: "Blank.esm", Version: "5"}})

	tests := []struct {
		input string
		want  bool
	}{
		{input: `file("Blank.esm")`, want: true},
		{input: `file("missing.esm")`, want: false},
		{input: `active("Blank.esm")`, want: true},
		{input: `checksum("Blank.esm", DEADBEEF)`, want: true},
		{input: `version("Blank.esm", "5", ==)`, want: true},
		{input: `file("Blank.esm") and active("Blank.esm")`, want: true},
		{input: `not ( file("Blank.esm") )`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := loadkeeper.Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v, want nil", tt.input, err)
			}
			got, err := expr.Eval(s)
			if err != nil {
				t.Fatalf("Eval(%q) error = %v, want nil", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseError(t *testing.T) {
	if _, err := loadkeeper.Parse(`file("Blank.`); err == nil {
		t.Fatalf("Parse() error = nil, want a parse error")
	}
}
