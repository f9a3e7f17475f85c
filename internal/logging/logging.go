// Package logging configures the process-wide zerolog logger: level
// and format selection, optional rolling file output with gzip
// rotation, and a broadcaster so the websocket layer can tail live
// logs.
package logging

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

const defaultTimeFmt = time.RFC3339

// Config controls Init.
type Config struct {
	Format    string // "json", "console", or "auto" (console on a TTY)
	Level     string // debug, info, warn, error
	Component string

	FilePath   string // when set, logs also roll to this file
	MaxSizeMB  int
	MaxAgeDays int
	Compress   bool
}

var (
	mu            sync.RWMutex
	baseWriter    io.Writer = os.Stderr
	baseComponent string
	baseLogger    = zerolog.New(baseWriter).With().Timestamp().Logger()

	broadcaster = NewLogBroadcaster()

	nowFn        = time.Now
	isTerminalFn = term.IsTerminal
	mkdirAllFn   = os.MkdirAll
	openFileFn   = os.OpenFile
	openFn       = os.Open
	statFn       = os.Stat
	readDirFn    = os.ReadDir
	renameFn     = os.Rename
	removeFn     = os.Remove
	copyFn       = io.Copy

	gzipNewWriterFn = gzip.NewWriter
	statFileFn      = defaultStatFileFn
	closeFileFn     = defaultCloseFileFn
	compressFn      = compressAndRemove
)

type requestIDKey struct{}

// Init (re)configures the global zerolog logger. Safe to call
// concurrently and more than once.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	zerolog.TimeFieldFormat = defaultTimeFmt
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	writers := []io.Writer{selectWriter(cfg.Format), broadcaster}

	fileWriter, err := newRollingFileWriter(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: failed to open log file %q: %v\n", cfg.FilePath, err)
	} else if fileWriter != nil {
		writers = append(writers, fileWriter)
	}

	baseWriter = io.MultiWriter(writers...)
	baseComponent = cfg.Component

	logCtx := zerolog.New(baseWriter).With().Timestamp()
	if cfg.Component != "" {
		logCtx = logCtx.Str("component", cfg.Component)
	}
	baseLogger = logCtx.Logger()
	log.Logger = baseLogger
}

// Broadcaster returns the shared log broadcaster so callers (the
// websocket layer) can subscribe to live log output.
func Broadcaster() *LogBroadcaster {
	return broadcaster
}

// WithRequestID attaches a request ID to ctx, generating one if id is
// blank. ctx may be nil, in which case context.Background() is used.
func WithRequestID(ctx context.Context, id string) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, requestIDKey{}, id), id
}

// RequestIDFromContext returns the request ID stored on ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// IsLevelEnabled reports whether level would be logged at the current
// global level.
func IsLevelEnabled(level zerolog.Level) bool {
	return level >= zerolog.GlobalLevel()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func selectWriter(format string) io.Writer {
	switch strings.ToLower(format) {
	case "json":
		return os.Stderr
	case "console":
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	case "auto":
		if isTerminal(os.Stderr) {
			return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		}
		return os.Stderr
	default:
		return os.Stderr
	}
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isTerminalFn(int(f.Fd()))
}

// rollingFileWriter is a size-triggered, age-pruned rotating file
// writer: Write rotates the current file once it crosses MaxSizeMB,
// renaming it with a timestamp suffix and (optionally) gzip-compressing
// it, then prunes rotated files older than MaxAgeDays.
type rollingFileWriter struct {
	mu       sync.Mutex
	path     string
	maxSize  int64
	maxAge   time.Duration
	compress bool
	file     *os.File
	size     int64
}

func newRollingFileWriter(cfg Config) (io.Writer, error) {
	if strings.TrimSpace(cfg.FilePath) == "" {
		return nil, nil
	}

	dir := filepath.Dir(cfg.FilePath)
	if dir != "." {
		if err := mkdirAllFn(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	maxSizeMB := cfg.MaxSizeMB
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	maxAgeDays := cfg.MaxAgeDays
	if maxAgeDays <= 0 {
		maxAgeDays = 14
	}

	w := &rollingFileWriter{
		path:     cfg.FilePath,
		maxSize:  int64(maxSizeMB) * 1024 * 1024,
		maxAge:   time.Duration(maxAgeDays) * 24 * time.Hour,
		compress: cfg.Compress,
	}
	if err := w.openCurrent(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rollingFileWriter) openCurrent() error {
	f, err := openFileFn(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	size, err := statFileFn(f)
	if err != nil {
		closeFileFn(f)
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file = f
	w.size = size
	return nil
}

func (w *rollingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "logging: rotation failed: %v\n", err)
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rollingFileWriter) rotate() error {
	closeFileFn(w.file)

	rotated := fmt.Sprintf("%s.%s", w.path, nowFn().UTC().Format("20060102T150405"))
	if err := renameFn(w.path, rotated); err != nil {
		return fmt.Errorf("rename rotated log: %w", err)
	}

	if w.compress {
		if err := compressFn(rotated); err != nil {
			fmt.Fprintf(os.Stderr, "logging: compress rotated log: %v\n", err)
		}
	}

	w.pruneOld()
	return w.openCurrent()
}

func (w *rollingFileWriter) pruneOld() {
	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)
	entries, err := readDirFn(dir)
	if err != nil {
		return
	}

	cutoff := nowFn().Add(-w.maxAge)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if name == base || !strings.HasPrefix(name, base+".") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		full := filepath.Join(dir, name)
		info, err := statFn(full)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = removeFn(full)
		}
	}
}

func defaultStatFileFn(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func defaultCloseFileFn(f *os.File) error {
	if f == nil {
		return nil
	}
	return f.Close()
}

// compressAndRemove gzips path to path+".gz" and removes the original.
func compressAndRemove(path string) error {
	src, err := openFn(path)
	if err != nil {
		return fmt.Errorf("open for compression: %w", err)
	}
	defer src.Close()

	dst, err := openFileFn(path+".gz", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create compressed log: %w", err)
	}

	gz := gzipNewWriterFn(dst)
	if _, err := copyFn(gz, src); err != nil {
		gz.Close()
		dst.Close()
		return fmt.Errorf("write compressed log: %w", err)
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		return fmt.Errorf("finalize compressed log: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close compressed log: %w", err)
	}

	return removeFn(path)
}
