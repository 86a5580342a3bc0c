package logging

import (
	"io"
	"log"
	"os"
)

var (
	// DevMode indicates if development logging is enabled
	DevMode = os.Getenv("CHATCTX_DEV") == "1"
	// Logger is the shared logger instance
	Logger *log.Logger
)

func init() {
	Logger = log.Default()
}

// SetOutput points the shared logger at w, typically a rotating log file.
func SetOutput(w io.Writer) {
	Logger = log.New(w, "chatctx ", log.LstdFlags|log.Lmicroseconds)
}

// DevLog logs only when CHATCTX_DEV=1
func DevLog(format string, args ...interface{}) {
	if DevMode {
		Logger.Printf("[DEV] "+format, args...)
	}
}

// UserLog logs important user-facing information (always visible)
func UserLog(format string, args ...interface{}) {
	Logger.Printf("[USER] "+format, args...)
}

// ErrorLog logs errors (always visible)
func ErrorLog(format string, args ...interface{}) {
	Logger.Printf("[ERROR] "+format, args...)
}
