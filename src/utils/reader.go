package utils

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// OpenText opens a text file and strips a leading UTF-8 or UTF-16 byte
// order mark, decoding UTF-16 input to UTF-8.
func OpenText(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	return &textReader{
		Reader: transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder())),
		file:   f,
	}, nil
}

type textReader struct {
	io.Reader
	file *os.File
}

func (r *textReader) Close() error {
	return r.file.Close()
}
