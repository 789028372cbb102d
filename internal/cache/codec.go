// File: internal/cache/codec.go
package cache

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// CompressedPrefix marks a stored value as base64-encoded gzip of its JSON.
const CompressedPrefix = "gzip:"

// DeserializationError reports a cached payload that could not be decoded.
// It is returned instead of a miss so that corrupt entries stay visible.
type DeserializationError struct {
	Key string
	Err error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("cache: cannot deserialize value for key %q: %v", e.Key, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// encodeValue serializes value to JSON and, when compress is set and the JSON
// is longer than threshold bytes, gzips and base64-encodes it behind CompressedPrefix.
func encodeValue(value interface{}, compress bool, threshold int) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("cache: marshal: %w", err)
	}
	if !compress || len(raw) <= threshold {
		return string(raw), nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("cache: gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("cache: gzip: %w", err)
	}
	return CompressedPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decodePayload reverses encodeValue, returning the JSON bytes.
func decodePayload(stored string) ([]byte, error) {
	if !strings.HasPrefix(stored, CompressedPrefix) {
		return []byte(stored), nil
	}
	compressed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, CompressedPrefix))
	if err != nil {
		return nil, fmt.Errorf("base64: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return out, nil
}

func decodeInto(key, stored string, dest interface{}) error {
	payload, err := decodePayload(stored)
	if err != nil {
		return &DeserializationError{Key: key, Err: err}
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return &DeserializationError{Key: key, Err: err}
	}
	return nil
}
