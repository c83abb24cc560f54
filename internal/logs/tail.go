package logs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	backwardChunk  = 16 * 1024
	followInterval = 250 * time.Millisecond
	readBufferSize = 64 * 1024
)

// TailOptions selects which part of the file to return.
type TailOptions struct {
	// Offset is the byte position to resume from. Negative means "the last
	// Limit lines".
	Offset int64
	// Limit caps the number of lines returned. Zero means unlimited when
	// resuming from an offset and 50 when reading from the end.
	Limit int
	// Follow blocks until new lines arrive or Wait expires.
	Follow bool
	Wait   time.Duration
}

// TailResult holds the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads complete lines from path. A partially written trailing line is
// left for the next call.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return TailResult{}, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return TailResult{}, fmt.Errorf("stat log: %w", err)
	}
	size := info.Size()

	if opts.Offset < 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = 50
		}
		lines, err := lastLines(file, size, limit)
		if err != nil {
			return TailResult{}, err
		}
		return TailResult{Lines: lines, Offset: size}, nil
	}

	offset := opts.Offset
	if offset > size {
		// Rotated or truncated underneath us.
		offset = 0
	}
	result, err := readFrom(file, offset, opts.Limit)
	if err != nil || len(result.Lines) > 0 || !opts.Follow {
		return result, err
	}
	return waitForLines(ctx, file, offset, opts)
}

func lastLines(file *os.File, size int64, limit int) ([]string, error) {
	var buf []byte
	pos := size
	for pos > 0 && bytes.Count(buf, []byte{'\n'}) <= limit {
		step := int64(backwardChunk)
		if step > pos {
			step = pos
		}
		pos -= step
		chunk := make([]byte, step)
		if _, err := file.ReadAt(chunk, pos); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read log: %w", err)
		}
		buf = append(chunk, buf...)
	}
	lines := splitLines(buf)
	if pos > 0 && len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, nil
}

func readFrom(file *os.File, offset int64, limit int) (TailResult, error) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return TailResult{}, fmt.Errorf("seek log: %w", err)
	}
	reader := bufio.NewReaderSize(file, readBufferSize)
	result := TailResult{Offset: offset}
	for limit <= 0 || len(result.Lines) < limit {
		line, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			// Oversized line: consume it without buffering everything.
			consumed := int64(len(line))
			for errors.Is(err, bufio.ErrBufferFull) {
				line, err = reader.ReadSlice('\n')
				consumed += int64(len(line))
			}
			if err != nil {
				break
			}
			result.Offset += consumed
			result.Lines = append(result.Lines, "[line truncated]")
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return result, fmt.Errorf("read log: %w", err)
		}
		result.Offset += int64(len(line))
		result.Lines = append(result.Lines, string(bytes.TrimRight(line, "\r\n")))
	}
	return result, nil
}

func waitForLines(ctx context.Context, file *os.File, offset int64, opts TailOptions) (TailResult, error) {
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()
	var deadline <-chan time.Time
	if opts.Wait > 0 {
		timer := time.NewTimer(opts.Wait)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-deadline:
			return TailResult{Offset: offset}, nil
		case <-ticker.C:
			result, err := readFrom(file, offset, opts.Limit)
			if err != nil || len(result.Lines) > 0 {
				return result, err
			}
		}
	}
}

func splitLines(buf []byte) []string {
	trimmed := bytes.TrimRight(buf, "\n")
	if len(trimmed) == 0 {
		return nil
	}
	parts := bytes.Split(trimmed, []byte{'\n'})
	lines := make([]string, len(parts))
	for i, part := range parts {
		lines[i] = string(bytes.TrimRight(part, "\r"))
	}
	return lines
}
