package parser

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	amerrors "github.com/appenmapper/appenmapper/pkg/errors"
)

// Encoding is a detected character encoding.
type Encoding uint8

const (
	EncodingUnknown Encoding = iota
	EncodingASCII
	EncodingUTF8
	EncodingUTF8BOM
	EncodingUTF16LE
	EncodingUTF16BE
	EncodingLatin1
)

// String returns the encoding name.
func (e Encoding) String() string {
	switch e {
	case EncodingASCII:
		return "ascii"
	case EncodingUTF8:
		return "utf-8"
	case EncodingUTF8BOM:
		return "utf-8-sig"
	case EncodingUTF16LE:
		return "utf-16le"
	case EncodingUTF16BE:
		return "utf-16be"
	case EncodingLatin1:
		return "latin-1"
	default:
		return "unknown"
	}
}

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// detectEncoding identifies character encoding.
func detectEncoding(sample []byte) Encoding {
	if len(sample) == 0 {
		return EncodingUnknown
	}

	// Check BOM
	if bytes.HasPrefix(sample, bomUTF8) {
		return EncodingUTF8BOM
	}
	if len(sample) >= 2 {
		if sample[0] == 0xFF && sample[1] == 0xFE {
			return EncodingUTF16LE
		}
		if sample[0] == 0xFE && sample[1] == 0xFF {
			return EncodingUTF16BE
		}
	}

	if utf8.Valid(sample) {
		for _, b := range sample {
			if b > 127 {
				return EncodingUTF8
			}
		}
		return EncodingASCII
	}

	return EncodingLatin1
}

// decodeText converts raw file bytes to UTF-8 text: UTF-8 first, then
// Latin-1, which accepts any byte sequence.
func decodeText(data []byte) (string, Encoding, error) {
	enc := detectEncoding(data)
	switch enc {
	case EncodingUTF8BOM:
		return string(data[len(bomUTF8):]), enc, nil
	case EncodingUTF16LE, EncodingUTF16BE:
		// UseBOM reads and drops the byte order mark.
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", enc, amerrors.Wrap(err, amerrors.CodeEncodingError, "invalid UTF-16 input").
				WithContext("encoding", enc.String())
		}
		return string(out), enc, nil
	case EncodingLatin1:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return "", enc, amerrors.Wrap(err, amerrors.CodeEncodingError, "invalid Latin-1 input")
		}
		return string(out), enc, nil
	default:
		return string(data), enc, nil
	}
}
