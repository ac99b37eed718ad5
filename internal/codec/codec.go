// Package codec compresses chunk text into the compact form stored as
// vector-record metadata: gzip followed by base64.
package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"io"
	"log"
)

// Compress deflates text and encodes it as base64. It returns an empty
// string on any internal failure; callers must treat "" as compression
// unavailable, never as valid compressed empty text.
func Compress(text string) string {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(text)); err != nil {
		log.Printf("codec: compression error: %v", err)
		return ""
	}
	if err := zw.Close(); err != nil {
		log.Printf("codec: compression error: %v", err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// Decompress is the inverse of Compress. Decoding errors are returned to
// the caller so the offending chunk can be skipped without aborting the
// surrounding batch.
func Decompress(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	defer zr.Close()

	text, err := io.ReadAll(zr)
	if err != nil {
		return "", err
	}
	return string(text), nil
}
