package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const maxFileSize = 512 * 1024 * 1024 // 512MB

// readAssignment reads a file of the form
//
//	window.YTD.tweets.part0 = [ ... ]
//
// and decodes the right-hand side into v. It returns the assigned name
// without the "window." prefix.
func readAssignment(path string, v any) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > maxFileSize {
		return "", fmt.Errorf("%s is too large (%d bytes)", path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return decodeAssignment(data, v)
}

func decodeAssignment(data []byte, v any) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	eq := bytes.IndexByte(data, '=')
	if eq < 0 {
		return "", fmt.Errorf("no assignment found")
	}

	name := strings.TrimSpace(string(data[:eq]))
	name = strings.TrimPrefix(name, "window.")
	if name == "" {
		return "", fmt.Errorf("empty assignment target")
	}

	body := bytes.TrimSpace(data[eq+1:])
	body = bytes.TrimSuffix(body, []byte(";"))

	if err := json.Unmarshal(body, v); err != nil {
		return name, fmt.Errorf("decode %s: %w", name, err)
	}
	return name, nil
}
