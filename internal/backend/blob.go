package backend

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Blob header bytes.
const (
	blobRaw  byte = 0
	blobZstd byte = 1
)

// CompressionOptions configures how snapshot blobs are stored.
type CompressionOptions struct {
	// Minimum size in bytes before compressing
	MinSize int
	// Compression level (1=fastest, 4=best)
	Level int
}

func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 512,
		Level:   2,
	}
}

// codec frames blobs with a one-byte header naming their encoding.
type codec struct {
	opts CompressionOptions
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

func newCodec(opts CompressionOptions) (*codec, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.Level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	return &codec{opts: opts, enc: enc, dec: dec}, nil
}

func (c *codec) encode(content []byte) []byte {
	if len(content) < c.opts.MinSize {
		return append([]byte{blobRaw}, content...)
	}
	out := make([]byte, 1, len(content)/2+1)
	out[0] = blobZstd
	return c.enc.EncodeAll(content, out)
}

func (c *codec) decode(blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty blob")
	}
	switch blob[0] {
	case blobRaw:
		return append([]byte(nil), blob[1:]...), nil
	case blobZstd:
		return c.dec.DecodeAll(blob[1:], nil)
	default:
		return nil, fmt.Errorf("unknown blob encoding %d", blob[0])
	}
}

func (c *codec) close() {
	c.enc.Close()
	c.dec.Close()
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
