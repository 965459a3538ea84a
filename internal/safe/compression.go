// internal/safe/compression.go
package safe

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const (
	CodecNone = "none"
	CodecZstd = "zstd"
	CodecLZ4  = "lz4"
)

// Codec is a stream transform applied to object bytes at rest.
// Objects stored through a codec can no longer be hardlinked into the
// working tree, so Materialize decodes them into independent files.
type Codec interface {
	Name() string
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// NewCodec returns the codec registered under name. "none" and "" yield nil.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", CodecNone:
		return nil, nil
	case CodecZstd:
		return newZstdCodec(zstd.SpeedDefault), nil
	case CodecLZ4:
		return lz4Codec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

func codecName(c Codec) string {
	if c == nil {
		return CodecNone
	}
	return c.Name()
}

// zstdCodec pools encoders and decoders; both are expensive to build.
type zstdCodec struct {
	level    zstd.EncoderLevel
	encoders sync.Pool
	decoders sync.Pool
}

func newZstdCodec(level zstd.EncoderLevel) *zstdCodec {
	return &zstdCodec{level: level}
}

func (c *zstdCodec) Name() string { return CodecZstd }

func (c *zstdCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	if enc, ok := c.encoders.Get().(*zstd.Encoder); ok {
		enc.Reset(w)
		return &pooledEncoder{Encoder: enc, pool: &c.encoders}, nil
	}

	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(c.level),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return &pooledEncoder{Encoder: enc, pool: &c.encoders}, nil
}

func (c *zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	if dec, ok := c.decoders.Get().(*zstd.Decoder); ok {
		if err := dec.Reset(r); err != nil {
			dec.Close()
			return nil, fmt.Errorf("resetting zstd decoder: %w", err)
		}
		return &pooledDecoder{Decoder: dec, pool: &c.decoders}, nil
	}

	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &pooledDecoder{Decoder: dec, pool: &c.decoders}, nil
}

type pooledEncoder struct {
	*zstd.Encoder
	pool *sync.Pool
}

// Close flushes the frame and hands the encoder back for reuse.
func (e *pooledEncoder) Close() error {
	err := e.Encoder.Close()
	e.pool.Put(e.Encoder)
	return err
}

type pooledDecoder struct {
	*zstd.Decoder
	pool *sync.Pool
}

func (d *pooledDecoder) Close() error {
	// Drop the reference to the source before pooling.
	if err := d.Decoder.Reset(nil); err != nil {
		d.Decoder.Close()
		return nil
	}
	d.pool.Put(d.Decoder)
	return nil
}

type lz4Codec struct{}

func (lz4Codec) Name() string { return CodecLZ4 }

func (lz4Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

func (lz4Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}
