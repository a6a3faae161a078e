package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"aquila/internal/interp"
	"aquila/internal/program"
	"aquila/internal/sink"
	"aquila/internal/util"
	"aquila/internal/value"
)

const (
	DefaultRootPath = "."
)

var (
	// Version is the current version of the aquila binary, stamped at build time.
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "unknown"
	help      bool
	version   bool
	// logging
	logLevel string
	logFile  string
	// config vars
	rootPath   string
	configPath string
	evalExpr   string
	sinkDriver string
	sinkDSN    string
	seed       uint64
)

func init() {
	flag.BoolVar(&help, "help", false, "Display help information and exit")
	flag.BoolVar(&help, "h", false, "Display help information and exit")
	flag.BoolVar(&version, "version", false, "Display version information and exit")
	flag.BoolVar(&version, "v", false, "Display version information and exit")
	// interpreter config
	flag.StringVar(&rootPath, "root", DefaultRootPath, "Set the root context for the program")
	flag.StringVar(&configPath, "config", "", "Path to a TOML configuration file")
	flag.StringVar(&evalExpr, "e", "", "Evaluate a single expression and print the result")
	flag.Uint64Var(&seed, "seed", 0, "Seed for the random built-in (0 picks a fresh seed)")
	// alteration sink config
	flag.StringVar(&sinkDriver, "sink-driver", "", "Database driver for the alteration sink: sqlite3, mysql, postgres")
	flag.StringVar(&sinkDSN, "sink-dsn", "", "Data source name for the alteration sink")
	// log config
	flag.StringVar(&logLevel, "log-level", "error", "Log level: debug, info, warn, error")
	flag.StringVar(&logFile, "log-file", "", "Log file path (if not set, logs to stderr)")
}

func main() {

	flag.Parse()

	// Creates a new Logger that uses a JSONHandler to write to standard output
	loggerOptions := &slog.HandlerOptions{
		AddSource: false,
		Level:     logLevelFromString(logLevel),
	}
	logWriter := configureLogWriter()
	defaultLogger := slog.New(slog.NewJSONHandler(logWriter, loggerOptions))
	slog.SetDefault(defaultLogger)

	if version {
		printVersion()
		return
	}

	if help {
		printHelp()
		return
	}

	config := util.Configuration{
		Version:   Version,
		BuildDate: BuildDate,
		Commit:    Commit,
		RootPath:  rootPath,
		LogLevel:  logLevel,
		LogFile:   logFile,
	}
	if configPath != "" {
		if err := util.LoadFile(configPath, &config); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	// Flags beat file values when given explicitly.
	if seed != 0 {
		config.Seed = seed
	}
	if sinkDriver != "" {
		config.SinkDriver = sinkDriver
	}
	if sinkDSN != "" {
		config.SinkDSN = sinkDSN
	}

	session := interp.NewSession(config)

	if config.SinkDriver != "" {
		s, err := sink.Open(config.SinkDriver, config.SinkDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "alteration sink: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()
		session.SetObserver(s.Observer())
	}

	if evalExpr != "" {
		result, err := session.EvalExpr(evalExpr)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(result.Inspect())
		return
	}

	fileName := flag.Arg(0)
	if fileName == "" {
		printHelp()
		os.Exit(2)
	}
	if rootPath != DefaultRootPath && !filepath.IsAbs(fileName) {
		fileName = filepath.Join(config.RootPath, fileName)
	}

	prog, err := program.Load(fileName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := program.Validate(prog); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	result, err := session.Execute(prog)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if result.Kind != value.Null {
		fmt.Println(result.Inspect())
	}
}

func configureLogWriter() *os.File {
	var logWriter *os.File
	var err error
	if logFile != "" {
		// Create parent directories if they don't exist
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory for '%s': %v; falling back to stderr\n", logFile, err)
			return os.Stderr
		}
		logWriter, err = os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file '%s': %v; falling back to stderr\n", logFile, err)
			logWriter = os.Stderr
		}
	} else {
		logWriter = os.Stderr
	}
	return logWriter
}

func printVersion() {

	fmt.Printf("aquila version 'v%s' %s %s\n", Version, BuildDate, Commit)
}

func printHelp() {
	fmt.Printf(`Usage: aquila [options] [filename]

Options:
  -root <path>        Set the root context for the program. Default is '.'
  -config <path>      Load settings from a TOML configuration file.
  -e <expr>           Evaluate a single expression and print the result.
  -seed <n>           Seed the random built-in (0 picks a fresh seed).
  -sink-driver <name> Record variable alterations to a database: sqlite3, mysql, postgres.
  -sink-dsn <dsn>     Data source name for the alteration sink.
  -help               Display this help information and exit.
  -version            Display version information and exit.
  -log-level <level>  Set the log level: debug, info, warn, error. Default is 'error'.
  -log-file <path>    Specify a log file to write logs. Default is stderr.

Details:
This is the Aquila pseudo-code interpreter.

Examples:
  aquila -log-level=debug       Start with debug logging enabled
  aquila program.yaml           Execute the provided statement tree
  aquila -e '(2 + 3) * 4'       Evaluate an expression and print it

Version Information:
  Version:    %s
  Build Date: %s
  Commit:     %s
`, Version, BuildDate, Commit)
}

func logLevelFromString(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelError
	}
}
