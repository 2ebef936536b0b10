package cli

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/specdriven/specd/internal/config"
	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/logging"
)

var (
	// activeLogFile is the open rotating log file, closed on shutdown.
	activeLogFile io.WriteCloser //nolint:gochecknoglobals // closed by CloseLogFile
	zerologMu     sync.Mutex     //nolint:gochecknoglobals // guards the zerolog global
)

// InitLogger builds the CLI logger. Verbose selects debug, quiet warn,
// neither info. Console output goes to stderr, human-formatted on a TTY
// unless NO_COLOR is set. A rotating redacted copy also lands in
// ~/.specd/logs; when that file cannot be opened the CLI logs to the
// console alone rather than failing.
func InitLogger(verbose, quiet bool) zerolog.Logger {
	var out io.Writer = consoleWriter()
	if logFile, err := openLogFile(); err == nil {
		activeLogFile = logFile
		out = zerolog.MultiLevelWriter(out, logFile)
	}

	logger := zerolog.New(out).
		Level(verbosityLevel(verbose, quiet)).
		Hook(logging.NewSensitiveDataHook()).
		With().Timestamp().Logger()

	// Align the zerolog package-global so stray log.X calls format the
	// same way.
	zerologMu.Lock()
	log.Logger = logger
	zerologMu.Unlock()

	return logger
}

// CloseLogFile flushes and closes the rotating log file on shutdown.
func CloseLogFile() {
	if activeLogFile != nil {
		_ = activeLogFile.Close()
		activeLogFile = nil
	}
}

func verbosityLevel(verbose, quiet bool) zerolog.Level {
	switch {
	case verbose:
		return zerolog.DebugLevel
	case quiet:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

func consoleWriter() io.Writer {
	if term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return os.Stderr
}

// redactingLogFile pairs the credential filter with the rotating file
// it writes through, so closing one closes the other.
type redactingLogFile struct {
	*logging.FilteringWriter
	file *lumberjack.Logger
}

func (r *redactingLogFile) Close() error {
	return r.file.Close()
}

// openLogFile opens the rotating CLI log under the configured logs
// directory, wrapped so credentials are redacted before reaching disk.
func openLogFile() (io.WriteCloser, error) {
	dir, err := config.LogsDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(dir, constants.CLILogFileName),
		MaxSize:    constants.LogMaxSizeMB,
		MaxBackups: constants.LogMaxBackups,
		MaxAge:     constants.LogMaxAgeDays,
		Compress:   constants.LogCompress,
	}
	return &redactingLogFile{
		FilteringWriter: logging.NewFilteringWriter(rotating),
		file:            rotating,
	}, nil
}
