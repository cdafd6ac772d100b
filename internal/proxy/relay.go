package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// relayLines copies src to dst one line at a time until src reaches EOF,
// so the client starts receiving before the origin finishes.
//
// Bytes are appended to capture while the running total stays within limit.
// Once a line would push the total past limit, capture stops growing but
// relaying continues. The returned total counts every byte relayed;
// total > limit means capture is incomplete.
func relayLines(dst io.Writer, src *bufio.Reader, capture []byte, limit int) ([]byte, int, error) {
	total := 0
	for {
		line, rerr := src.ReadSlice('\n')
		if len(line) > 0 {
			if _, err := dst.Write(line); err != nil {
				return capture, total, fmt.Errorf("write client: %w", err)
			}
			if total+len(line) <= limit {
				capture = append(capture, line...)
			}
			total += len(line)
		}

		switch {
		case rerr == nil, errors.Is(rerr, bufio.ErrBufferFull):
			// Lines longer than the buffer are relayed in pieces.
		case errors.Is(rerr, io.EOF):
			return capture, total, nil
		default:
			return capture, total, fmt.Errorf("read origin: %w", rerr)
		}
	}
}
