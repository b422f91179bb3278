package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadMessage returns the first line of the text at r without its line
// terminator. Only single-line messages are supported.
func ReadMessage(r io.Reader) (string, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read message: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// ReadMessageFile reads the single-line message stored at path.
func ReadMessageFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open message file: %w", err)
	}
	defer f.Close()
	return ReadMessage(f)
}
