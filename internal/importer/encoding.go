package importer

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"mcq-paper/internal/logger"
)

// Payload encodings recognized by DetectEncoding.
const (
	EncodingUTF8    = "UTF-8"
	EncodingUTF8BOM = "UTF-8-BOM"
	EncodingUTF16LE = "UTF-16LE"
	EncodingUTF16BE = "UTF-16BE"
	EncodingGBK     = "GBK"
	EncodingUnknown = "UNKNOWN"
)

// DetectEncoding guesses the encoding of a quiz payload from its BOM, then
// by validity as UTF-8, then as GBK.
func DetectEncoding(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return EncodingUTF8BOM
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return EncodingUTF16LE
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return EncodingUTF16BE
	case utf8.Valid(data):
		return EncodingUTF8
	case isValidGBK(data):
		return EncodingGBK
	}
	return EncodingUnknown
}

func isValidGBK(data []byte) bool {
	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
	if err != nil {
		return false
	}
	return utf8.Valid(decoded)
}

// decodePayload returns data as UTF-8 without a BOM. Unknown encodings are
// passed through with invalid bytes replaced by U+FFFD.
func decodePayload(data []byte) ([]byte, string, error) {
	enc := DetectEncoding(data)

	var t transform.Transformer
	switch enc {
	case EncodingUTF8:
		return data, enc, nil
	case EncodingGBK:
		t = simplifiedchinese.GBK.NewDecoder()
	default:
		// BOMOverride switches to UTF-16 when it sees a UTF-16 BOM and
		// strips a UTF-8 one.
		t = unicode.BOMOverride(unicode.UTF8.NewDecoder())
	}

	out, _, err := transform.Bytes(t, data)
	if err != nil {
		return nil, enc, fmt.Errorf("failed to decode %s payload: %w", enc, err)
	}
	if enc != EncodingUTF8BOM {
		logger.Debug("decoded quiz payload", logger.String("encoding", enc))
	}
	return out, enc, nil
}
