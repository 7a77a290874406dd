package core

// encoding.go normalizes CSV bytes to UTF-8 before parsing.
//
// Rosters arrive from Excel on Windows more often than not:
//   - UTF-8 with a BOM ("CSV UTF-8" export)
//   - UTF-16 with a BOM ("Unicode Text" export)
//   - Windows-1252 (plain "CSV" export on Western locales)

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Encoding names reported on a parsed file.
const (
	EncodingUTF8        = "utf-8"
	EncodingUTF8BOM     = "utf-8-bom"
	EncodingUTF16       = "utf-16"
	EncodingWindows1252 = "windows-1252"
)

// decodeText returns data as UTF-8 along with the detected source encoding.
func decodeText(data []byte) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return data[len(bomUTF8):], EncodingUTF8BOM, nil

	case bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		out, err := dec.Bytes(data)
		if err != nil {
			return nil, "", fmt.Errorf("encoding error: utf-16 decode: %w", err)
		}
		return out, EncodingUTF16, nil

	case utf8.Valid(data):
		return data, EncodingUTF8, nil

	default:
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, "", fmt.Errorf("encoding error: windows-1252 decode: %w", err)
		}
		return out, EncodingWindows1252, nil
	}
}

// looksBinary reports NUL bytes, which never appear in a text roster.
func looksBinary(data []byte) bool {
	n := len(data)
	if n > 8192 {
		n = 8192
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}
