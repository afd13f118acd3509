// Package utils provides logging helpers shared by the DocBox binaries.
package utils

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// maxLineSize caps a single buffered log line
const maxLineSize = 1024 * 1024 // 1MB

// LogInterceptor is an io.Writer that stamps each complete line with a
// sequence number and timestamp before handing it to the target. The
// CLI wraps its log file with it so interleaved streams stay ordered.
type LogInterceptor struct {
	target io.Writer
	seq    atomic.Uint64
	buf    bytes.Buffer
}

func NewLogInterceptor(target io.Writer) *LogInterceptor {
	return &LogInterceptor{target: target}
}

// Write buffers the input and forwards every complete line, stamped,
// to the target. Handles both \n and \r\n line endings.
func (i *LogInterceptor) Write(p []byte) (int, error) {
	if _, err := i.buf.Write(p); err != nil {
		return 0, err
	}

	written := 0
	scanner := bufio.NewScanner(&i.buf)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		n, err := i.stamp(scanner.Bytes())
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (i *LogInterceptor) stamp(line []byte) (int, error) {
	prefix := slog.Uint64("line", i.seq.Add(1)).String() + " " +
		slog.String("time", time.Now().Format(time.RFC3339)).String() + " "

	written, err := io.WriteString(i.target, prefix)
	if err != nil {
		return written, err
	}
	n, err := i.target.Write(append(line, '\n'))
	return written + n, err
}

// Close flushes whatever is still buffered as one final line.
func (i *LogInterceptor) Close() error {
	if i.buf.Len() == 0 {
		return nil
	}
	_, err := i.stamp(bytes.TrimRight(i.buf.Bytes(), "\r\n"))
	i.buf.Reset()
	return err
}
