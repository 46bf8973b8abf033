// Command sirconv pre-processes, converts and decodes sir commands from the
// command line and moves the command library between sqlite and YAML.
//
//	sirconv [-config file] [-log-level level] <command> [flags] [sir command]
//
// Commands read the sir command from the last argument or, when absent,
// from stdin.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dbehnke/sir-codec/pkg/config"
	"github.com/dbehnke/sir-codec/pkg/database"
	"github.com/dbehnke/sir-codec/pkg/ircode"
	"github.com/dbehnke/sir-codec/pkg/library"
	"github.com/dbehnke/sir-codec/pkg/logger"
	"github.com/dbehnke/sir-codec/pkg/sir"
)

var version = "dev"

const usage = `usage: sirconv [-config file] [-log-level level] <command> [flags] [sir command]

commands:
  preprocess  clean up a raw sir,2 capture
  convert     convert to the short (sir,3/sir,4) or long (sir,2) form
  decode      expand a sir,3/sir,4 command to sir,2
  export      write the command library as YAML
  import      load a YAML library into the command library
  version     print the version
`

// errUsage is returned for bad invocations; the usage text is already printed.
var errUsage = errors.New("invalid usage")

type app struct {
	cfg    *config.Config
	log    *logger.Logger
	codec  *ircode.Codec
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("sirconv", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configFile := global.String("config", "", "Path to configuration file")
	logLevel := global.String("log-level", "warn", "Log level (debug, info, warn, error)")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	if cmd == "version" {
		fmt.Fprintf(stdout, "sirconv %s\n", version)
		return 0
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "sirconv: %v\n", err)
		return 1
	}

	log := logger.New(logger.Config{Level: *logLevel, Format: "text", Output: stderr})
	a := &app{
		cfg:    cfg,
		log:    log,
		codec:  ircode.New(ircode.WithLogger(log)),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	commands := map[string]func([]string) error{
		"preprocess": a.preprocess,
		"convert":    a.convert,
		"decode":     a.decode,
		"export":     a.export,
		"import":     a.importLibrary,
	}
	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(stderr, "sirconv: unknown command %q\n", cmd)
		fmt.Fprint(stderr, usage)
		return 2
	}

	if err := fn(rest); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintf(stderr, "sirconv %s: %v\n", cmd, err)
		return 1
	}
	return 0
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

// input returns the sir command given as argument, or read from stdin.
func (a *app) input(fs *flag.FlagSet) (string, error) {
	if fs.NArg() > 1 {
		fmt.Fprintf(a.stderr, "%s: expected at most one sir command\n", fs.Name())
		return "", errUsage
	}
	if fs.NArg() == 1 {
		return strings.TrimSpace(fs.Arg(0)), nil
	}
	data, err := io.ReadAll(a.stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	cmd := strings.TrimSpace(string(data))
	if cmd == "" {
		return "", errors.New("no sir command given")
	}
	return cmd, nil
}

func (a *app) preprocess(args []string) error {
	fs := a.flags("preprocess")
	threshold := fs.Int("threshold", a.cfg.Codec.PauseThreshold, "Pause threshold in ticks")
	maxFrames := fs.Int("max-frames", a.cfg.Codec.MaxFrames, "Frames compared when detecting repetitions")
	normalize := fs.Bool("normalize", a.cfg.Codec.Normalize, "Average frames and normalize bit pulses")
	asJSON := fs.Bool("json", false, "Print the full result as JSON")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	cmd, err := a.input(fs)
	if err != nil {
		return err
	}

	r, err := a.codec.PreProcess(cmd, *threshold, *maxFrames, *normalize)
	if err != nil {
		return err
	}
	if *asJSON {
		return a.printJSON(r)
	}

	fmt.Fprintln(a.stdout, r.NewSir2)
	fmt.Fprintf(a.stderr, "frames: %d received, %d equal, %d returned; pairs: %d; duration: %d us; normalized: %t\n",
		r.TotalFramesReceived, r.EqualFramesDetected, r.ReturnedFrames, r.PairsPreserved, r.DurationMicros, r.PulsesNormalized)
	return nil
}

func (a *app) convert(args []string) error {
	fs := a.flags("convert")
	codeType := fs.String("type", a.cfg.Codec.CodeType, `"short", "long" or a full code type name`)
	repeat := fs.Int("repeat", a.cfg.Codec.Repeat, "Header repeat count (1..3)")
	channel := fs.Int("channel", a.cfg.Codec.Channel, "Header channel (1..126)")
	plot := fs.Bool("plot", false, "Also print the sir,2 plot data")
	asJSON := fs.Bool("json", false, "Print the full result as JSON")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	code, err := parseCodeType(*codeType)
	if err != nil {
		return err
	}
	cmd, err := a.input(fs)
	if err != nil {
		return err
	}

	conv, err := a.codec.Convert(cmd, code, *repeat, *channel)
	if err != nil {
		return err
	}
	if *asJSON {
		return a.printJSON(conv)
	}

	fmt.Fprintln(a.stdout, conv.Converted)
	if *plot && conv.PlotData != "" {
		fmt.Fprintln(a.stdout, conv.PlotData)
	}
	return nil
}

func (a *app) decode(args []string) error {
	fs := a.flags("decode")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	cmd, err := a.input(fs)
	if err != nil {
		return err
	}

	out, err := sir.DecodeToSir2(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, strings.TrimSpace(out))
	return nil
}

func (a *app) export(args []string) error {
	fs := a.flags("export")
	dbPath := fs.String("db", a.cfg.Database.Path, "Command library database")
	output := fs.String("o", "", "Output file (default stdout)")
	format := fs.String("format", "", `Only export one format, e.g. "sir,3"`)
	if err := a.parse(fs, args); err != nil {
		return err
	}

	db, err := a.openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	var cmds []database.Command
	if *format != "" {
		cmds, err = db.Commands().ListByFormat(*format, -1)
	} else {
		cmds, err = db.Commands().List(-1)
	}
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}

	entries := library.FromCommands(cmds)
	if *output != "" {
		err = library.ExportFile(*output, entries)
	} else {
		err = library.Export(a.stdout, entries)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "exported %d commands\n", len(entries))
	return nil
}

func (a *app) importLibrary(args []string) error {
	fs := a.flags("import")
	dbPath := fs.String("db", a.cfg.Database.Path, "Command library database")
	input := fs.String("i", "", "Input file (default stdin)")
	batch := fs.Int("batch", 100, "Commands per insert")
	if err := a.parse(fs, args); err != nil {
		return err
	}

	var entries []library.Entry
	var err error
	if *input != "" {
		entries, err = library.ImportFile(*input)
	} else {
		entries, err = library.Import(a.stdin)
	}
	if err != nil {
		return err
	}

	db, err := a.openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Commands().UpsertBatch(library.ToCommands(entries), *batch); err != nil {
		return fmt.Errorf("store commands: %w", err)
	}
	fmt.Fprintf(a.stderr, "imported %d commands\n", len(entries))
	return nil
}

func (a *app) openDB(path string) (*database.DB, error) {
	db, err := database.NewDB(database.Config{Path: path}, a.log.WithComponent("database"))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return db, nil
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseCodeType(s string) (ircode.CodeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short", strings.ToLower(string(ircode.CodeShort)):
		return ircode.CodeShort, nil
	case "long", strings.ToLower(string(ircode.CodeLong)):
		return ircode.CodeLong, nil
	}
	return "", fmt.Errorf("unknown code type %q", s)
}
