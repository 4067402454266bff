package logger

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// ConsoleHook mirrors entries to a terminal stream while the logger itself
// writes to the log file.
type ConsoleHook struct {
	mu     sync.Mutex
	out    io.Writer
	levels []logrus.Level
}

func NewConsoleHook(out io.Writer, minLevel logrus.Level) *ConsoleHook {
	var levels []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= minLevel {
			levels = append(levels, l)
		}
	}
	return &ConsoleHook{out: out, levels: levels}
}

func (h *ConsoleHook) Fire(entry *logrus.Entry) error {
	line, err := entry.Logger.Formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.out.Write(line)
	return err
}

func (h *ConsoleHook) Levels() []logrus.Level {
	return h.levels
}
