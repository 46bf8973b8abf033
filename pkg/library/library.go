// Package library moves a tagged command set between installations as a
// YAML document.
package library

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dbehnke/sir-codec/pkg/database"
	"github.com/dbehnke/sir-codec/pkg/sir"
)

// Version is the document version written by Export.
const Version = 1

// Document is the YAML layout of an exported library.
type Document struct {
	Version  int       `yaml:"version"`
	Exported time.Time `yaml:"exported"`
	Commands []Entry   `yaml:"commands"`
}

// Entry is one tagged command.
type Entry struct {
	Tag      string `yaml:"tag"`
	Format   string `yaml:"format"`
	Command  string `yaml:"command"`
	CodeType string `yaml:"code_type,omitempty"`
	Repeat   int    `yaml:"repeat,omitempty"`
	Channel  int    `yaml:"channel,omitempty"`
}

var (
	ErrVersion   = errors.New("unsupported library version")
	ErrEmptyTag  = errors.New("empty tag")
	ErrDuplicate = errors.New("duplicate tag")
)

// EntryError reports which entry failed validation on import.
type EntryError struct {
	Index int
	Tag   string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %d (%q): %v", e.Index, e.Tag, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// Export writes entries as a YAML document.
func Export(w io.Writer, entries []Entry) error {
	doc := Document{
		Version:  Version,
		Exported: time.Now().UTC().Truncate(time.Second),
		Commands: entries,
	}
	if doc.Commands == nil {
		doc.Commands = []Entry{}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode library: %w", err)
	}
	return enc.Close()
}

// Import reads a YAML document written by Export. Every entry must carry a
// unique tag and a command that parses in its own format; a missing format
// is filled from the command text.
func Import(r io.Reader) ([]Entry, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode library: %w", err)
	}
	if doc.Version < 1 || doc.Version > Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, doc.Version)
	}

	seen := make(map[string]bool, len(doc.Commands))
	for i := range doc.Commands {
		e := &doc.Commands[i]
		if err := Validate(e); err != nil {
			return nil, &EntryError{Index: i, Tag: e.Tag, Err: err}
		}
		if seen[e.Tag] {
			return nil, &EntryError{Index: i, Tag: e.Tag, Err: ErrDuplicate}
		}
		seen[e.Tag] = true
	}
	return doc.Commands, nil
}

// Validate checks that e has a tag and a command that parses in its own
// format. An empty Format is filled from the command text. Commands stored
// through any path must pass it, or the library no longer imports.
func Validate(e *Entry) error {
	if e.Tag == "" {
		return ErrEmptyTag
	}

	f := sir.FormatOf(e.Command)
	format := sir.Prefix + f
	if e.Format == "" {
		e.Format = format
	}
	if e.Format != format {
		return fmt.Errorf("format %q does not match command %q", e.Format, format)
	}

	switch f {
	case "2":
		if _, ok := sir.Parse(e.Command + "\r"); !ok {
			return fmt.Errorf("%w: sir,2 command does not parse", sir.ErrMalformed)
		}
	case "3", "4":
		if _, err := sir.DecodeToSir2(e.Command); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", sir.ErrUnsupportedFormat, e.Format)
	}
	return nil
}

// ExportFile writes entries to path.
func ExportFile(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Export(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ImportFile reads entries from path.
func ImportFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Import(f)
}

// FromCommands converts stored commands to entries.
func FromCommands(cmds []database.Command) []Entry {
	entries := make([]Entry, 0, len(cmds))
	for _, c := range cmds {
		entries = append(entries, Entry{
			Tag:      c.Tag,
			Format:   c.Format,
			Command:  c.Command,
			CodeType: c.CodeType,
			Repeat:   c.Repeat,
			Channel:  c.Channel,
		})
	}
	return entries
}

// ToCommands converts entries to commands ready to be stored.
func ToCommands(entries []Entry) []database.Command {
	cmds := make([]database.Command, 0, len(entries))
	for _, e := range entries {
		cmds = append(cmds, database.Command{
			Tag:      e.Tag,
			Format:   e.Format,
			Command:  e.Command,
			CodeType: e.CodeType,
			Repeat:   e.Repeat,
			Channel:  e.Channel,
		})
	}
	return cmds
}
