package testutil

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/masomopay/core"
	"github.com/trezcool/masomopay/storage/database"
)

// NewConfig returns the default configuration with fast timings, an in-memory ledger
// and an in-memory sqlite database.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.AppName = "Masomo"
	conf.FrontendBaseURL = "http://masomo.test"
	conf.RollbarToken = ""
	conf.Server.DisableReqLogs = true
	conf.Payments.BaseURL = "http://payments.test/api"
	conf.Payments.Deadline = 600 * time.Millisecond
	conf.Payments.PollInterval = 200 * time.Millisecond
	conf.Payments.CheckTimeout = 100 * time.Millisecond
	conf.Payments.NotifyTimeout = 100 * time.Millisecond
	conf.Ledger.Driver = "memory"
	conf.Database.Engine = database.EngineSQLite
	conf.Database.SQLitePath = ":memory:"
	return conf
}

// OpenDB opens a migrated in-memory sqlite database, closed when t ends.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conf := NewConfig()
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	return db
}

// LogEntry is one message captured by Logger.
type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger is a core.Logger keeping every message in memory.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger { return &Logger{} }

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("FATAL", msg, args) }

func (l *Logger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry(nil), l.entries...)
}

// Count returns the number of messages logged at level.
func (l *Logger) Count(level string) int {
	n := 0
	for _, e := range l.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Contains reports whether a message containing substr was logged at level.
func (l *Logger) Contains(level, substr string) bool {
	for _, e := range l.Entries() {
		if e.Level == level && strings.Contains(e.Msg, substr) {
			return true
		}
	}
	return false
}

func (l *Logger) String() string {
	b := new(strings.Builder)
	for _, e := range l.Entries() {
		_, _ = fmt.Fprintf(b, "%s %s\n", e.Level, e.Msg)
	}
	return b.String()
}

// Diff returns a unified diff of want and got, "" when they are equal.
func Diff(want, got string) string {
	if want == got {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
	if err != nil {
		return fmt.Sprintf("want:\n%s\ngot:\n%s", want, got)
	}
	return diff
}
