package listfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Parse reads line-delimited entries, dropping blank lines and lines
// starting with '#'. Entries are trimmed of surrounding whitespace.
func Parse(r io.Reader) []string {
	entries := make([]string, 0)
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}

	return entries
}

// ParseString parses an in-memory blob of newline-delimited entries.
func ParseString(s string) []string {
	if s == "" {
		return nil
	}
	return Parse(strings.NewReader(s))
}

// Load reads a list file from disk.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list file: %w", err)
	}
	defer f.Close()

	return Parse(f), nil
}
