package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Zlib wraps every chunk in its own zlib stream, finished with Close, so the
// receiver sees a complete header, deflate body and checksum per write.
type Zlib struct {
	w   *zlib.Writer
	r   io.ReadCloser
	out bytes.Buffer
	in  bytes.Reader
}

func NewZlib() *Zlib {
	return &Zlib{}
}

func (z *Zlib) Name() string { return "zlib" }

func (z *Zlib) Compress(dst, src []byte) ([]byte, error) {
	z.out.Reset()
	if z.w == nil {
		w, err := zlib.NewWriterLevel(&z.out, zlib.DefaultCompression)
		if err != nil {
			return dst, fmt.Errorf("zlib writer: %w", err)
		}
		z.w = w
	} else {
		z.w.Reset(&z.out)
	}
	if _, err := z.w.Write(src); err != nil {
		return dst, fmt.Errorf("zlib compress: %w", err)
	}
	if err := z.w.Close(); err != nil {
		return dst, fmt.Errorf("zlib compress: %w", err)
	}
	return append(dst, z.out.Bytes()...), nil
}

func (z *Zlib) Decompress(dst, src []byte, limit int) ([]byte, error) {
	z.in.Reset(src)
	if z.r == nil {
		r, err := zlib.NewReader(&z.in)
		if err != nil {
			return dst, fmt.Errorf("%w: zlib header: %v", ErrCorrupt, err)
		}
		z.r = r
	} else if err := z.r.(zlib.Resetter).Reset(&z.in, nil); err != nil {
		return dst, fmt.Errorf("%w: zlib header: %v", ErrCorrupt, err)
	}
	start := len(dst)
	out, err := readBounded(dst, z.r, limit)
	if err != nil {
		return out, err
	}
	if z.in.Len() > 0 {
		return out[:start], fmt.Errorf("%w: %d bytes after zlib stream", ErrCorrupt, z.in.Len())
	}
	return out, nil
}

func (z *Zlib) Close() error {
	if z.r != nil {
		return z.r.Close()
	}
	return nil
}
