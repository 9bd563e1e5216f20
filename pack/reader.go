package pack

import (
	"bufio"
	"io"

	githash "github.com/statewalker/gitcore/hash"
)

// countingReader wraps a buffered input stream, tracking how many bytes
// have been consumed from it and optionally teeing every byte read into a
// sink (the running pack-wide SHA-1 and a per-entry CRC-32). It implements
// io.ByteReader so that when handed to zlib it is used directly rather
// than being wrapped in flate's own internal buffer, which would read
// ahead past each object's compressed stream and desynchronize the
// scanner's offset tracking — the same reason go-git's scanner reader
// exists.
type countingReader struct {
	br     *bufio.Reader
	offset int64
	sink   io.Writer // may be nil
}

func newCountingReader(r io.Reader) *countingReader {
	return &countingReader{br: bufio.NewReaderSize(r, 32*1024)}
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.br.Read(p)
	c.offset += int64(n)
	if c.sink != nil && n > 0 {
		c.sink.Write(p[:n])
	}
	return n, err
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.br.ReadByte()
	if err != nil {
		return 0, err
	}
	c.offset++
	if c.sink != nil {
		c.sink.Write([]byte{b})
	}
	return b, nil
}

// readFull reads exactly len(buf) bytes, counting and teeing as it goes.
func (c *countingReader) readFull(buf []byte) error {
	_, err := io.ReadFull(c, buf)
	return err
}

// newInflater starts a zlib stream over c. The inflater pulls the
// compressed bytes through c one at a time (see ReadByte), so c.offset
// already points at the next entry header when the stream ends; the
// inflater's ConsumedBytes is not needed for that.
func (c *countingReader) newInflater() (*githash.Inflater, error) {
	return githash.NewInflater(c)
}
