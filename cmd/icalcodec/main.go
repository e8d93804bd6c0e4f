package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"icalcodec/internal/config"
	"icalcodec/internal/document"
	"icalcodec/internal/ics"
	appLog "icalcodec/internal/log"
	"icalcodec/internal/tz"
)

// flagConfig holds global flag values.
type flagConfig struct {
	configPath string
	logLevel   string
}

// ioFlags are the per-command input/output paths; "" or "-" means stdio.
type ioFlags struct {
	in  string
	out string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, stdin io.Reader, stdout io.Writer) int {
	defer appLog.Sync()

	global := flag.NewFlagSet("icalcodec", flag.ContinueOnError)
	var flags flagConfig
	global.StringVar(&flags.configPath, "config", "", "Path to config file (defaults are used when empty)")
	global.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, error (overrides config if set)")
	global.Usage = func() {
		fmt.Fprintln(global.Output(), "usage: icalcodec [-config path] [-log-level level] <encode|decode|check> [-in file] [-out file]")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return 2
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return 1
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Debug("effective config",
		"product_id", conf.ProductID,
		"version", conf.Version,
		"tzid_prefix", conf.TZIDPrefix,
		"auto_include_timezones", conf.AutoIncludeTimezones,
		"log_level", conf.LogLevel,
	)

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}

	cmd, cmdArgs := rest[0], rest[1:]
	sub := flag.NewFlagSet(cmd, flag.ContinueOnError)
	var files ioFlags
	sub.StringVar(&files.in, "in", "", "Input file (stdin when empty)")
	sub.StringVar(&files.out, "out", "", "Output file (stdout when empty)")
	if err := sub.Parse(cmdArgs); err != nil {
		return 2
	}

	db := tz.NewDatabase(tz.WithPrefix(conf.TZIDPrefix))
	codec := ics.NewCodec(db)
	appLog.Debug("timezone database ready", "tzid_prefix", db.Prefix())

	switch cmd {
	case "encode":
		err = runEncode(codec, db, conf, files, stdin, stdout)
	case "decode":
		err = runDecode(codec, files, stdin, stdout)
	case "check":
		err = runCheck(codec, files, stdin, stdout)
	default:
		appLog.Error("unknown command", errors.Errorf("unknown command %q", cmd))
		global.Usage()
		return 2
	}
	if err != nil {
		appLog.Error(cmd+" failed", err)
		return 1
	}
	return 0
}

func runEncode(codec *ics.Codec, db *tz.Database, conf *config.Config, f ioFlags, stdin io.Reader, stdout io.Writer) error {
	in, closeIn, err := openInput(f.in, stdin)
	if err != nil {
		return err
	}
	defer closeIn()

	doc, err := document.Read(in)
	if err != nil {
		return err
	}
	if doc.ProductID == "" {
		doc.ProductID = conf.ProductID
	}
	if doc.Version == "" {
		doc.Version = conf.Version
	}
	if doc.AutoIncludeTimezones == nil {
		auto := conf.AutoIncludeTimezones
		doc.AutoIncludeTimezones = &auto
	}

	cal, err := document.ToModel(doc, db)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := codec.EncodeTo(&buf, cal); err != nil {
		return err
	}
	if err := writeOutput(f.out, stdout, buf.Bytes()); err != nil {
		return err
	}
	appLog.Info("encoded calendar", "event_count", len(cal.Events), "bytes", buf.Len())
	return nil
}

func runDecode(codec *ics.Codec, f ioFlags, stdin io.Reader, stdout io.Writer) error {
	in, closeIn, err := openInput(f.in, stdin)
	if err != nil {
		return err
	}
	defer closeIn()

	cal, err := codec.DecodeFrom(in)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := document.Write(&buf, document.FromModel(cal)); err != nil {
		return err
	}
	if err := writeOutput(f.out, stdout, buf.Bytes()); err != nil {
		return err
	}
	appLog.Info("decoded calendar", "event_count", len(cal.Events))
	return nil
}

func runCheck(codec *ics.Codec, f ioFlags, stdin io.Reader, stdout io.Writer) error {
	in, closeIn, err := openInput(f.in, stdin)
	if err != nil {
		return err
	}
	defer closeIn()

	raw, err := io.ReadAll(in)
	if err != nil {
		return errors.Wrap(err, "read input")
	}
	cal, err := codec.Decode(string(raw))
	if err != nil {
		return err
	}
	if err := ics.CrossCheck(string(raw), cal); err != nil {
		return err
	}

	msg := fmt.Sprintf("ok: %d events\n", len(cal.Events))
	return writeOutput(f.out, stdout, []byte(msg))
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open input")
	}
	return fh, func() { fh.Close() }, nil
}

func writeOutput(path string, stdout io.Writer, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "write output")
	}
	return nil
}
