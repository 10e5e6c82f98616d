package storage

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// compressChunk and decompressChunk adapt the teacher's internal/crypto
// helpers directly: chunk bytes are zstd-compressed before they touch disk
// and decompressed on read. A fresh encoder/decoder per call keeps this
// package free of shared mutable state; zstd's stateless EncodeAll/DecodeAll
// API is designed for exactly that.
func compressChunk(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("storage: create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompressChunk(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("storage: create zstd decoder: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: zstd decode: %w", err)
	}
	return out, nil
}
