package logger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

const flushInterval = 2 * time.Second

// AsyncFileWriter buffers log lines on a channel and writes them from a single
// goroutine. Lines are dropped, not blocked on, when the queue is full.
type AsyncFileWriter struct {
	writer  *bufio.Writer
	file    *os.File
	mu      sync.Mutex
	logChan chan []byte
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

func NewAsyncFileWriter(logFile string, bufferSize, queueSize int) (*AsyncFileWriter, error) {
	safeLogFile := filepath.Clean(logFile)
	file, err := os.OpenFile(safeLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}
	if queueSize <= 0 {
		queueSize = 1000
	}

	aw := &AsyncFileWriter{
		writer:  bufio.NewWriterSize(file, bufferSize),
		file:    file,
		logChan: make(chan []byte, queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go aw.processLogs()
	return aw, nil
}

func (aw *AsyncFileWriter) Write(p []byte) (n int, err error) {
	select {
	case aw.logChan <- append([]byte{}, p...):
	default:
		aw.dropped.Add(1)
	}
	return len(p), nil
}

// Dropped is the number of lines discarded because the queue was full.
func (aw *AsyncFileWriter) Dropped() int64 {
	return aw.dropped.Load()
}

func (aw *AsyncFileWriter) write(data []byte) {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	if _, err := aw.writer.Write(data); err != nil {
		fmt.Fprintln(os.Stderr, "error writing log data to file", err)
	}
}

func (aw *AsyncFileWriter) flush() {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	_ = aw.writer.Flush()
}

func (aw *AsyncFileWriter) processLogs() {
	defer close(aw.stopped)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case logData := <-aw.logChan:
			aw.write(logData)
		case <-ticker.C:
			aw.flush()
		case <-aw.done:
			for {
				select {
				case logData := <-aw.logChan:
					aw.write(logData)
				default:
					aw.flush()
					return
				}
			}
		}
	}
}

// Close drains queued lines, flushes and closes the file.
func (aw *AsyncFileWriter) Close() {
	aw.once.Do(func() {
		close(aw.done)
		<-aw.stopped
		_ = aw.file.Close()
	})
}
