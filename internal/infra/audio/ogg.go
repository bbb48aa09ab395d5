package audio

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/jonas747/ogg"
)

// opusPacketReader yields the Opus packets of the encoder's Ogg output,
// skipping the OpusHead and OpusTags header packets.
type opusPacketReader struct {
	dec *ogg.PacketDecoder
}

func newOpusPacketReader(r io.Reader) *opusPacketReader {
	return &opusPacketReader{dec: ogg.NewPacketDecoder(ogg.NewDecoder(r))}
}

// Next returns the next audio packet, or io.EOF at the end of the stream.
// A stream cut off mid-page also ends with io.EOF.
func (o *opusPacketReader) Next() ([]byte, error) {
	for {
		pkt, _, err := o.dec.Decode()
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, io.EOF
			}
			return nil, err
		}
		if len(pkt) == 0 || isOpusHeader(pkt) {
			continue
		}
		return pkt, nil
	}
}

func isOpusHeader(pkt []byte) bool {
	return bytes.HasPrefix(pkt, []byte("OpusHead")) || bytes.HasPrefix(pkt, []byte("OpusTags"))
}
