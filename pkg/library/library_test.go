package library

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dbehnke/sir-codec/internal/testhelpers"
	"github.com/dbehnke/sir-codec/pkg/database"
	"github.com/dbehnke/sir-codec/pkg/logger"
	"github.com/dbehnke/sir-codec/pkg/sir"
)

const (
	necSir3 = "sir,3,74,1,1,62500,1,1,562,281,35,35,35,105,AAzzAAzz,35,2500"
	necSir4 = "sir,4,74,1,1,62500,1,1,562,281,aaaakkkkaaaakkkk,35,2500,35,105"
)

func sampleEntries() []Entry {
	return []Entry{
		{Tag: "power", Format: "sir,3", Command: necSir3, CodeType: "Iluflex Short", Repeat: 1, Channel: 1},
		{Tag: "power_alt", Format: "sir,4", Command: necSir4, CodeType: "Iluflex Short", Repeat: 2, Channel: 1},
		{Tag: "power_long", Format: "sir,2", Command: testhelpers.NECCommand(), CodeType: "Iluflex Long", Repeat: 1, Channel: 3},
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, sampleEntries()); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	out := buf.String()
	for _, s := range []string{"version: 1", "tag: power", "format: sir,3", "code_type: Iluflex Short"} {
		if !strings.Contains(out, s) {
			t.Errorf("expected export to contain %q, got:\n%s", s, out)
		}
	}

	got, err := Import(&buf)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if !reflect.DeepEqual(got, sampleEntries()) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, sampleEntries())
	}
}

func TestImport_FillsFormat(t *testing.T) {
	doc := "version: 1\ncommands:\n  - tag: power\n    command: " + necSir3 + "\n"
	got, err := Import(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(got) != 1 || got[0].Format != "sir,3" {
		t.Errorf("expected format filled from command, got %+v", got)
	}
}

func TestImport_Empty(t *testing.T) {
	got, err := Import(strings.NewReader(""))
	if err != nil || got != nil {
		t.Errorf("expected nil entries and no error, got %v, %v", got, err)
	}
}

func TestImport_Errors(t *testing.T) {
	entry := func(tag, format, cmd string) string {
		return "  - tag: \"" + tag + "\"\n    format: \"" + format + "\"\n    command: \"" + cmd + "\"\n"
	}

	tests := []struct {
		name   string
		doc    string
		target error
	}{
		{"future version", "version: 2\ncommands: []\n", ErrVersion},
		{"missing version", "commands: []\n", ErrVersion},
		{"empty tag", "version: 1\ncommands:\n" + entry("", "sir,3", necSir3), ErrEmptyTag},
		{"duplicate tag", "version: 1\ncommands:\n" + entry("a", "sir,3", necSir3) + entry("a", "sir,4", necSir4), ErrDuplicate},
		{"unsupported format", "version: 1\ncommands:\n" + entry("a", "sir,5", "sir,5,1,1,1,1,1,1,1"), sir.ErrUnsupportedFormat},
		{"unparsable sir,2", "version: 1\ncommands:\n" + entry("a", "sir,2", "sir,2,abc"), sir.ErrMalformed},
		{"bad sir,4 letters", "version: 1\ncommands:\n" + entry("a", "sir,4", strings.Replace(necSir4, "aaaa", "Daaa", 1)), sir.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(strings.NewReader(tt.doc))
			if !errors.Is(err, tt.target) {
				t.Fatalf("expected %v, got %v", tt.target, err)
			}
		})
	}

	t.Run("format mismatch", func(t *testing.T) {
		_, err := Import(strings.NewReader("version: 1\ncommands:\n" + entry("a", "sir,4", necSir3)))
		var ee *EntryError
		if !errors.As(err, &ee) || ee.Index != 0 || ee.Tag != "a" {
			t.Fatalf("expected entry error for index 0, got %v", err)
		}
	})

	t.Run("odd sir,3 payload", func(t *testing.T) {
		bad := strings.Replace(necSir3, "AAzzAAzz", "AAzzAAz", 1)
		_, err := Import(strings.NewReader("version: 1\ncommands:\n" + entry("b", "sir,3", bad)))
		var pe *sir.PayloadParityError
		if !errors.As(err, &pe) {
			t.Fatalf("expected payload parity error, got %v", err)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Import(strings.NewReader("version: 1\nbuttons: []\n"))
		if err == nil {
			t.Fatal("expected error for unknown field")
		}
	})
}

func TestExportImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.yaml")

	if err := ExportFile(path, sampleEntries()); err != nil {
		t.Fatalf("ExportFile failed: %v", err)
	}
	got, err := ImportFile(path)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 entries, got %d", len(got))
	}

	if _, err := ImportFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCommandsRoundTrip(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	db, err := database.NewDB(database.Config{Path: filepath.Join(t.TempDir(), "sir.db")}, log)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := db.Commands()
	if err := repo.UpsertBatch(ToCommands(sampleEntries()), 10); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	cmds, err := repo.List(10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if got := FromCommands(cmds); !reflect.DeepEqual(got, sampleEntries()) {
		t.Errorf("stored entries mismatch:\n got %+v\nwant %+v", got, sampleEntries())
	}
}
