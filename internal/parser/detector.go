package parser

import "bytes"

type FileType string

const (
	FileTypeFIT     FileType = "fit"
	FileTypeGPX     FileType = "gpx"
	FileTypeUnknown FileType = "unknown"
)

// DetectFileTypeFromData sniffs the leading bytes of a file. FIT files
// carry a ".FIT" signature at offset 8; GPX files are XML with a <gpx>
// root in the topografix namespace.
func DetectFileTypeFromData(data []byte) FileType {
	if len(data) >= 12 && bytes.Equal(data[8:12], []byte(".FIT")) {
		return FileTypeFIT
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if bytes.Contains(head, []byte("<gpx")) || bytes.Contains(head, []byte("topografix.com/GPX")) {
		return FileTypeGPX
	}

	return FileTypeUnknown
}
