package log

import (
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	WarningLog = log.New(io.Discard, "", 0)
	InfoLog    = log.New(io.Discard, "", 0)
	ErrorLog   = log.New(io.Discard, "", 0)
	DebugLog   = log.New(io.Discard, "", 0)
)

var debugEnabled = os.Getenv("DEBUG") == "true" || os.Getenv("DEBUG") == "1"

var logFileName = filepath.Join(os.TempDir(), "survivalpong.log")

var globalLogFile *os.File

// Initialize should be called once at the beginning of the program to set up logging.
// defer Close() after calling this function. Output goes to survivalpong.log in the
// os temp directory; component, when set, tags every line (e.g. "monitor").
func Initialize(component string) {
	fmtS := "%s"
	if component != "" {
		fmtS = "[" + strings.ToUpper(component) + "] %s"
	}

	var out io.Writer
	f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: using stderr for logging: %v\n", err)
		out = os.Stderr
	} else {
		globalLogFile = f
		out = f
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	flags := log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile
	InfoLog = log.New(out, fmt.Sprintf(fmtS, "INFO:"), flags)
	WarningLog = log.New(out, fmt.Sprintf(fmtS, "WARNING:"), flags)
	ErrorLog = log.New(out, fmt.Sprintf(fmtS, "ERROR:"), flags)
	if debugEnabled {
		DebugLog = log.New(out, fmt.Sprintf(fmtS, "DEBUG:"), flags)
	} else {
		DebugLog = log.New(io.Discard, "", 0)
	}
}

// Close flushes the log file. quiet suppresses the "wrote logs" notice,
// which would otherwise land on top of a TUI.
func Close(quiet bool) {
	if globalLogFile == nil {
		return
	}
	_ = globalLogFile.Close()
	globalLogFile = nil
	if !quiet {
		fmt.Println("wrote logs to " + logFileName)
	}
}

// FileName returns the path of the log file.
func FileName() string {
	return logFileName
}

// Every is used to log at most once every timeout duration.
type Every struct {
	mu      sync.Mutex
	timeout time.Duration
	timer   *time.Timer
}

func NewEvery(timeout time.Duration) *Every {
	return &Every{timeout: timeout}
}

// ShouldLog returns true if the timeout has passed since the last log.
func (e *Every) ShouldLog() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timer == nil {
		e.timer = time.NewTimer(e.timeout)
		return true
	}

	select {
	case <-e.timer.C:
		e.timer.Reset(e.timeout)
		return true
	default:
		return false
	}
}

// IsDebugEnabled returns true if debug logging is enabled.
func IsDebugEnabled() bool {
	return debugEnabled
}

// SanitizeURL removes credentials from a URL string for safe logging.
// It replaces username/password with "***".
func SanitizeURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "[INVALID_URL]"
	}

	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword("***", "***")
		} else {
			u.User = url.User("***")
		}
	}

	return u.String()
}
