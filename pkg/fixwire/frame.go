package fixwire

import (
	"bytes"
)

var checksumPrefix = []byte("10=")

// ExtractFrames splits buf into complete messages. A frame ends at the
// delimiter that terminates the CheckSum field. Bytes after the last
// complete frame are returned as rest for the next read.
func ExtractFrames(buf []byte, d byte) (frames [][]byte, rest []byte) {
	if d == 0 {
		d = SOH
	}
	start := 0
	pos := 0
	for pos < len(buf) {
		end := bytes.IndexByte(buf[pos:], d)
		if end < 0 {
			break
		}
		end += pos
		if bytes.HasPrefix(buf[pos:], checksumPrefix) {
			frames = append(frames, buf[start:end+1])
			start = end + 1
		}
		pos = end + 1
	}
	return frames, buf[start:]
}
