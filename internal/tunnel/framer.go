// Package tunnel implements the console/debug multiplexer: it shuttles bytes
// between the remote serial-over-TCP session, the local terminal, and an
// optional local debugger, extracting an in-band debug subprotocol from an
// otherwise transparent byte stream.
package tunnel

import "io"

const (
	stx       byte = 0x02
	stxMarker byte = 'G'
	etx       byte = 0x04
)

type frameState int

const (
	stateNormal frameState = iota
	stateSawSTX
	stateInFrame
)

// Framer implements the byte-stream state machine that separates console
// output from in-band debug frames. A debug frame is bounded by 0x02 'G' ...
// 0x04; a literal 0x02 not followed by 'G' is passed through verbatim along
// with the byte that follows it.
type Framer struct {
	state    frameState
	frameBuf []byte
}

// Feed processes data byte by byte, writing console-destined bytes to
// console and invoking onFrame once per complete debug frame with a copy of
// the frame payload (excluding the delimiters). Feed may be called multiple
// times on successive chunks of a stream; the state machine carries across
// calls so a delimiter split across two reads is still recognized correctly.
func (f *Framer) Feed(data []byte, console io.Writer, onFrame func([]byte)) error {
	for _, b := range data {
		switch f.state {
		case stateNormal:
			if b == stx {
				f.state = stateSawSTX
				continue
			}
			if err := writeByte(console, b); err != nil {
				return err
			}
		case stateSawSTX:
			if b == stxMarker {
				f.state = stateInFrame
				f.frameBuf = f.frameBuf[:0]
				continue
			}
			if err := writeByte(console, stx); err != nil {
				return err
			}
			if err := writeByte(console, b); err != nil {
				return err
			}
			f.state = stateNormal
		case stateInFrame:
			if b == etx {
				frame := append([]byte(nil), f.frameBuf...)
				f.frameBuf = f.frameBuf[:0]
				f.state = stateNormal
				onFrame(frame)
				continue
			}
			f.frameBuf = append(f.frameBuf, b)
		}
	}
	return nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}
