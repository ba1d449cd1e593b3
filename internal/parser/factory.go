package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ForFile picks a parser by file extension, falling back to content
// sniffing when the extension is missing or unrecognized.
func ForFile(filename string, data []byte) (Parser, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".gpx":
		return &GPXParser{}, nil
	case ".fit":
		return &FITParser{}, nil
	}

	switch DetectFileTypeFromData(data) {
	case FileTypeGPX:
		return &GPXParser{}, nil
	case FileTypeFIT:
		return &FITParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(filename))
	}
}
