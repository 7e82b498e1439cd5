package container

// Packet is one captured record as handed from the container reader to the
// frame decoder. Data holds the bytes after the record header.
type Packet struct {
	Number        uint64
	Timestamp     float64
	PayloadLength int64
	Data          []byte
}
