package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadTextFile returns the trimmed contents of path.
func ReadTextFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return strings.TrimSpace(string(content)), nil
}

// ReadPipedStdin returns the trimmed contents of stdin when it is a pipe or a
// file, and "" when it is a terminal.
func ReadPipedStdin(stdin *os.File) (string, error) {
	stat, err := stdin.Stat()
	if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	content, err := io.ReadAll(bufio.NewReader(stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(string(content)), nil
}
