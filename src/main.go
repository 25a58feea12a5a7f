package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ajpfahnl/Twoface/src/client"
	"github.com/ajpfahnl/Twoface/src/helpers"
	"github.com/ajpfahnl/Twoface/src/logger"
	"github.com/ajpfahnl/Twoface/src/server"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

var (
	flagListen    = pflag.BoolP("listen", "l", false, "listen mode (server)")
	flagPort      = pflag.IntP("port", "p", 0, "port to listen on or connect to (required)")
	flagHost      = pflag.String("host", "localhost", "host to connect to")
	flagBind      = pflag.String("bind", "", "address to listen on (default all interfaces)")
	flagLog       = pflag.String("log", "", "append a transcript of network traffic to this file (connect mode)")
	flagShell     = pflag.String("shell", "", "run this program for the client instead of echoing (listen mode)")
	flagCompress  = pflag.Bool("compress", false, "compress traffic; both ends must agree")
	flagCodec     = pflag.String("codec", "zlib", "compression codec: zlib, zstd or lz4")
	flagLogLevel  = pflag.String("log-level", "warn", "diagnostic log level: debug, info, warn, error")
	flagLogFormat = pflag.String("log-format", "text", "diagnostic log format: text or json")
	flagNoColor   = pflag.Bool("no-color", false, "disable colored diagnostics")
	flagHelp      = pflag.BoolP("help", "h", false, "show help")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  Connect mode: %s --port=<n> [--host=<h>] [--log=<file>] [--compress]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  Listen mode:  %s -l --port=<n> [--shell=<program>] [--compress]\n", os.Args[0])
	pflag.PrintDefaults()
}

// errUsage marks errors that should be followed by the usage text.
var errUsage = errors.New("usage")

func main() {
	pflag.CommandLine.Init(os.Args[0], pflag.ContinueOnError)
	pflag.CommandLine.SetOutput(io.Discard)
	pflag.Usage = usage
	if err := pflag.CommandLine.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		usage()
		os.Exit(1)
	}
	if *flagHelp {
		usage()
		return
	}

	if err := run(); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			usage()
			os.Exit(1)
		}
		fatal(err)
	}
}

func run() error {
	if err := checkFlags(); err != nil {
		return err
	}
	if err := setupLogging(); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if *flagListen {
		return server.RunServer(server.Config{
			Bind:     *flagBind,
			Port:     *flagPort,
			Shell:    *flagShell,
			Compress: *flagCompress,
			Codec:    *flagCodec,
		}, os.Stderr)
	}
	return client.RunClient(client.Config{
		Host:     *flagHost,
		Port:     *flagPort,
		LogPath:  *flagLog,
		Compress: *flagCompress,
		Codec:    *flagCodec,
	}, os.Stdin, os.Stdout)
}

func checkFlags() error {
	if pflag.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", errUsage, pflag.Arg(0))
	}
	if !pflag.CommandLine.Changed("port") {
		return fmt.Errorf("%w: --port is required", errUsage)
	}
	if *flagPort < 1 || *flagPort > 65535 {
		return fmt.Errorf("%w: --port %d out of range 1-65535", errUsage, *flagPort)
	}
	if *flagListen && pflag.CommandLine.Changed("log") {
		return fmt.Errorf("%w: --log is only valid in connect mode", errUsage)
	}
	if !*flagListen && pflag.CommandLine.Changed("shell") {
		return fmt.Errorf("%w: --shell requires --listen", errUsage)
	}
	if *flagListen && pflag.CommandLine.Changed("host") {
		return fmt.Errorf("%w: --host is only valid in connect mode", errUsage)
	}
	if !*flagListen && pflag.CommandLine.Changed("bind") {
		return fmt.Errorf("%w: --bind requires --listen", errUsage)
	}
	return nil
}

// setupLogging sends diagnostics to stderr. In connect mode stdin may be a
// raw terminal, so every line feed in a diagnostic is written as CR LF.
func setupLogging() error {
	level, err := logger.ParseLevel(*flagLogLevel)
	if err != nil {
		return err
	}
	color := logger.ColorEnabled(os.Stderr, *flagNoColor)
	var w io.Writer = os.Stderr
	if color {
		w = logger.Colorable(os.Stderr)
	}
	if !*flagListen && term.IsTerminal(int(os.Stdin.Fd())) {
		w = helpers.NewDisplayWriter(w)
	}
	return logger.Init(w, level, *flagLogFormat, color)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
