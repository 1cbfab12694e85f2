package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wavebatch/internal/task"
)

// ErrorLog appends per-run failure records to a plain text file. Each run
// writes a header line followed by one tab separated line per failed task,
// so the file accumulates a history across resumed runs.
type ErrorLog struct {
	path string
}

// NewErrorLog prepares an append-only error log at path.
func NewErrorLog(path string) (*ErrorLog, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure error log directory: %w", err)
		}
	}
	return &ErrorLog{path: path}, nil
}

// Path returns the log file location.
func (l *ErrorLog) Path() string { return l.path }

// RunHeader marks the start of a run with its session id and how many
// tasks it will attempt.
func (l *ErrorLog) RunHeader(session string, todo int) error {
	header := fmt.Sprintf("=== RUN %s | session=%s | todo=%d ===\n",
		time.Now().UTC().Format(time.RFC3339), session, todo)
	return l.append(header)
}

// Append records failed results, one line per task.
func (l *ErrorLog) Append(results []task.Result) error {
	var buf strings.Builder
	for _, result := range results {
		if !result.Failed() {
			continue
		}
		buf.WriteString(result.TaskID)
		buf.WriteByte('\t')
		buf.WriteString(result.Error)
		buf.WriteByte('\n')
	}
	if buf.Len() == 0 {
		return nil
	}
	return l.append(buf.String())
}

func (l *ErrorLog) append(text string) error {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open error log: %w", err)
	}
	defer file.Close()
	if _, err := file.WriteString(text); err != nil {
		return fmt.Errorf("append error log: %w", err)
	}
	return nil
}
