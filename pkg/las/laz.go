package las

// LazReader decodes a compressed point stream with per index random
// access. The reader owns a cursor; Seek positions it and ReadNext
// decodes the record under it, advancing by one. Implementations are
// external, typically wrapping a laszip build.
type LazReader interface {
	// Seek positions the cursor on the given point index.
	Seek(index int) error
	// ReadNext decodes the record under the cursor and advances it.
	ReadNext() (PointRecord, error)
	Close() error
}

// LazWriter encodes points into a compressed stream in write order.
type LazWriter interface {
	Write(record PointRecord) error
	Close() error
}

// LazCodec creates compressed readers and writers. The writer receives
// the full header so the compression layer can emit the container and
// its laszip VLR itself. The library never compresses or decompresses
// internally; pass an implementation through ReadOptions/WriteOptions to
// handle LAZ content.
type LazCodec interface {
	OpenReader(path string, format PointFormat) (LazReader, error)
	OpenWriter(path string, header Header) (LazWriter, error)
}
