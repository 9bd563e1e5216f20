package hash

import (
	"compress/zlib"
	"io"
)

// countingReader tracks exactly how many bytes have been pulled from the
// underlying reader, which is how Inflater knows where the next pack entry
// begins once a zlib stream ends mid-buffer.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// ReadByte makes countingReader satisfy io.ByteReader, passing the
// interface through to the wrapped reader when it already provides one.
// This matters: compress/flate wraps any reader lacking ReadByte in its
// own internal bufio.Reader, which over-reads past the zlib stream's true
// end. A pack scanner walking several objects back to back needs the
// underlying source left positioned exactly at the next object's header,
// so the wrapped reader's ReadByte (if any) must be used directly instead
// of being hidden behind a non-ByteReader Read.
func (c *countingReader) ReadByte() (byte, error) {
	if br, ok := c.r.(io.ByteReader); ok {
		b, err := br.ReadByte()
		if err == nil {
			c.n++
		}
		return b, err
	}
	var b [1]byte
	n, err := c.r.Read(b[:])
	c.n += int64(n)
	if n == 0 && err == nil {
		err = io.ErrNoProgress
	}
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Inflater wraps compress/zlib with exact consumed-byte tracking, so a pack
// scanner can know precisely where the next object header starts after
// inflating one entry's payload.
type Inflater struct {
	counting *countingReader
	zr       io.ReadCloser
}

// NewInflater starts a new zlib decompression stream over r.
func NewInflater(r io.Reader) (*Inflater, error) {
	cr := &countingReader{r: r}
	zr, err := zlib.NewReader(cr)
	if err != nil {
		return nil, err
	}
	return &Inflater{counting: cr, zr: zr}, nil
}

// Read implements io.Reader.
func (in *Inflater) Read(p []byte) (int, error) {
	return in.zr.Read(p)
}

// ConsumedBytes returns the number of compressed bytes read from the
// underlying reader so far, including zlib's own header/trailer framing.
func (in *Inflater) ConsumedBytes() int64 {
	return in.counting.n
}

// Close releases the zlib decompressor. It does not close the underlying
// reader.
func (in *Inflater) Close() error {
	return in.zr.Close()
}

// Deflater wraps compress/zlib for writing pack object payloads.
type Deflater struct {
	zw *zlib.Writer
}

// NewDeflater starts a new zlib compression stream over w at the given
// compression level (zlib.DefaultCompression if level is 0).
func NewDeflater(w io.Writer, level int) (*Deflater, error) {
	if level == 0 {
		level = zlib.DefaultCompression
	}
	zw, err := zlib.NewWriterLevel(w, level)
	if err != nil {
		return nil, err
	}
	return &Deflater{zw: zw}, nil
}

// Write implements io.Writer.
func (d *Deflater) Write(p []byte) (int, error) {
	return d.zw.Write(p)
}

// Close flushes and closes the zlib stream.
func (d *Deflater) Close() error {
	return d.zw.Close()
}
