package semgraph

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadText loads raw text from path, or from stdin when path is "-".
// A leading byte order mark and Windows line endings are normalized away.
func ReadText(path string) (string, error) {
	if path == "-" {
		return readTextFrom(os.Stdin, "stdin")
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open text file: %w", err)
	}
	defer f.Close()
	return readTextFrom(f, path)
}

func readTextFrom(r io.Reader, name string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}
