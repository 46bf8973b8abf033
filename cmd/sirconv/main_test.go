package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dbehnke/sir-codec/internal/testhelpers"
)

const necSir3 = "sir,3,74,1,1,62500,1,1,562,281,35,35,35,105,AAzzAAzz,35,2500"

// sirconv runs the CLI with a config path that does not exist, so the
// built-in defaults apply.
func sirconv(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	all := append([]string{"-config", filepath.Join(t.TempDir(), "none.yaml")}, args...)
	code := run(all, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"compress"}},
		{"bad flag", []string{"convert", "-nope"}},
		{"two commands", []string{"decode", necSir3, necSir3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := sirconv(t, "", tt.args...)
			if code != 2 {
				t.Errorf("Expected exit code 2, got %d (%s)", code, stderr)
			}
		})
	}
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := sirconv(t, "", "version")
	if code != 0 || !strings.HasPrefix(stdout, "sirconv ") {
		t.Errorf("Unexpected version output %d %q", code, stdout)
	}
}

func TestRun_Preprocess(t *testing.T) {
	capture := testhelpers.Sir2Command(testhelpers.CapturePer,
		testhelpers.Frames(testhelpers.NECPulses(testhelpers.NECBits), 3, testhelpers.FinalOff))

	code, stdout, stderr := sirconv(t, capture+"\r\n", "preprocess")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d (%s)", code, stderr)
	}
	if strings.TrimSpace(stdout) != testhelpers.NECCommand() {
		t.Errorf("Unexpected output %q", stdout)
	}
	if !strings.Contains(stderr, "3 received, 3 equal, 1 returned") {
		t.Errorf("Unexpected summary %q", stderr)
	}

	code, stdout, _ = sirconv(t, "", "preprocess", "-json", capture)
	if code != 0 || !strings.Contains(stdout, `"equal_frames_detected": 3`) {
		t.Errorf("Unexpected JSON output %d %q", code, stdout)
	}
}

func TestRun_Convert(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"default short", []string{"convert", testhelpers.NECCommand()}, necSir3},
		{"long", []string{"convert", "-type", "long", necSir3}, testhelpers.NECCommand()},
		{"full type name", []string{"convert", "-type", "Iluflex Long", necSir3}, testhelpers.NECCommand()},
		{"repeat", []string{"convert", "-repeat", "3", necSir3}, strings.Replace(necSir3, "62500,1,", "62500,3,", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := sirconv(t, "", tt.args...)
			if code != 0 {
				t.Fatalf("Expected exit code 0, got %d (%s)", code, stderr)
			}
			if strings.TrimSpace(stdout) != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, stdout)
			}
		})
	}
}

func TestRun_ConvertErrors(t *testing.T) {
	code, _, stderr := sirconv(t, "", "convert", "-type", "medium", necSir3)
	if code != 1 || !strings.Contains(stderr, "unknown code type") {
		t.Errorf("Unexpected result %d %q", code, stderr)
	}

	code, _, stderr = sirconv(t, "", "convert", "sir,7,1")
	if code != 1 || !strings.Contains(stderr, "unknown format") {
		t.Errorf("Unexpected result %d %q", code, stderr)
	}

	code, _, stderr = sirconv(t, "  \n", "convert")
	if code != 1 || !strings.Contains(stderr, "no sir command") {
		t.Errorf("Unexpected result %d %q", code, stderr)
	}
}

func TestRun_Decode(t *testing.T) {
	code, stdout, stderr := sirconv(t, necSir3, "decode")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d (%s)", code, stderr)
	}
	if strings.TrimSpace(stdout) != testhelpers.NECCommand() {
		t.Errorf("Unexpected output %q", stdout)
	}

	code, _, _ = sirconv(t, "", "decode", testhelpers.NECCommand())
	if code != 1 {
		t.Errorf("Decoding sir,2 should fail, got exit code %d", code)
	}
}

func TestRun_ExportImport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.db")
	dst := filepath.Join(dir, "dst.db")
	file := filepath.Join(dir, "library.yaml")

	doc := `version: 1
commands:
  - tag: tv/power
    command: ` + necSir3 + `
  - tag: tv/mute
    command: ` + testhelpers.NECCommand() + `
    repeat: 2
`
	code, _, stderr := sirconv(t, doc, "import", "-db", src)
	if code != 0 || !strings.Contains(stderr, "imported 2 commands") {
		t.Fatalf("Import failed %d %q", code, stderr)
	}

	code, _, stderr = sirconv(t, "", "export", "-db", src, "-o", file)
	if code != 0 || !strings.Contains(stderr, "exported 2 commands") {
		t.Fatalf("Export failed %d %q", code, stderr)
	}

	code, _, stderr = sirconv(t, "", "import", "-db", dst, "-i", file)
	if code != 0 {
		t.Fatalf("Re-import failed %d %q", code, stderr)
	}

	code, stdout, _ := sirconv(t, "", "export", "-db", dst, "-format", "sir,2")
	if code != 0 {
		t.Fatalf("Export failed with code %d", code)
	}
	if !strings.Contains(stdout, "tag: tv/mute") || strings.Contains(stdout, "tv/power") {
		t.Errorf("Unexpected sir,2 export:\n%s", stdout)
	}
	if !strings.Contains(stdout, "repeat: 2") {
		t.Errorf("Repeat lost in round trip:\n%s", stdout)
	}
}

func TestRun_ImportRejectsInvalid(t *testing.T) {
	db := filepath.Join(t.TempDir(), "lib.db")
	doc := "version: 1\ncommands:\n  - tag: bad\n    command: sir,3,74,1\n"

	code, _, stderr := sirconv(t, doc, "import", "-db", db)
	if code != 1 || !strings.Contains(stderr, "bad") {
		t.Errorf("Expected import to fail, got %d %q", code, stderr)
	}
}
