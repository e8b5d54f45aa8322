package parser

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode turns raw bytes of unknown encoding into text.
//
// Decoders are tried in order: strict UTF-8, UTF-16 (only when a byte order
// mark is present), Latin-1. Latin-1 maps every byte, so the lossy UTF-8
// fallback is only reached if the Latin-1 decoder itself errors.
func Decode(raw []byte) (string, Encoding) {
	if utf8.Valid(raw) {
		return string(bytes.TrimPrefix(raw, utf8BOM)), EncodingUTF8
	}
	if hasUTF16BOM(raw) {
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		if out, err := dec.Bytes(raw); err == nil {
			return string(out), EncodingUTF16
		}
	}
	if out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw); err == nil {
		return string(out), EncodingLatin1
	}
	return DecodeLossy(raw), EncodingUTF8Lossy
}

// DecodeLossy decodes raw as UTF-8, replacing each run of invalid bytes with U+FFFD.
func DecodeLossy(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "\uFFFD")
}

func hasUTF16BOM(raw []byte) bool {
	if len(raw) < 2 {
		return false
	}
	return (raw[0] == 0xFF && raw[1] == 0xFE) || (raw[0] == 0xFE && raw[1] == 0xFF)
}
