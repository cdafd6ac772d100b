package proxy

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestRelayLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		limit       int
		wantCapture string
	}{
		{
			name:        "fits",
			input:       "HTTP/1.0 200 OK\r\n\r\nhello\nworld",
			limit:       1024,
			wantCapture: "HTTP/1.0 200 OK\r\n\r\nhello\nworld",
		},
		{
			name:        "exactly at limit",
			input:       "abc\ndef\n",
			limit:       8,
			wantCapture: "abc\ndef\n",
		},
		{
			name:        "over limit stops capture",
			input:       "abc\ndef\ng\n",
			limit:       8,
			wantCapture: "abc\ndef\n",
		},
		{
			name:        "empty",
			input:       "",
			limit:       8,
			wantCapture: "",
		},
		{
			name:        "line longer than buffer",
			input:       strings.Repeat("x", 100) + "\nend\n",
			limit:       1024,
			wantCapture: strings.Repeat("x", 100) + "\nend\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var client bytes.Buffer
			src := bufio.NewReaderSize(strings.NewReader(tt.input), 16)
			capture, total, err := relayLines(&client, src, nil, tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			if client.String() != tt.input {
				t.Fatalf("relayed %q want %q", client.String(), tt.input)
			}
			if total != len(tt.input) {
				t.Fatalf("total=%d want %d", total, len(tt.input))
			}
			if string(capture) != tt.wantCapture {
				t.Fatalf("captured %q want %q", capture, tt.wantCapture)
			}
		})
	}
}

func TestRelayLinesReadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	src := bufio.NewReader(io.MultiReader(strings.NewReader("partial\n"), iotest.ErrReader(boom)))

	var client bytes.Buffer
	_, total, err := relayLines(&client, src, nil, 1024)
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
	if total != len("partial\n") || client.String() != "partial\n" {
		t.Fatalf("relayed %q (%d bytes)", client.String(), total)
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestRelayLinesWriteError(t *testing.T) {
	t.Parallel()

	src := bufio.NewReader(strings.NewReader("line\n"))
	if _, _, err := relayLines(failWriter{}, src, nil, 1024); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("err=%v want ErrClosedPipe", err)
	}
}
