package cache

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Encode serialises an entry, gzip-compressing it when the JSON form is
// larger than compressAbove bytes. A non-positive threshold disables compression.
func Encode(entry *Entry, compressAbove int) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if compressAbove <= 0 || len(data) <= compressAbove {
		return data, nil
	}

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress cache entry: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress cache entry: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode. Entries from another schema version yield ErrCacheMiss.
func Decode(data []byte) (*Entry, error) {
	if bytes.HasPrefix(data, gzipMagic) {
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed cache entry: %w", err)
		}
		defer r.Close()
		if data, err = io.ReadAll(r); err != nil {
			return nil, fmt.Errorf("failed to decompress cache entry: %w", err)
		}
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	if entry.SchemaVersion != SchemaVersion {
		return nil, ErrCacheMiss
	}
	return &entry, nil
}
