package fixwire

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
)

// Codec encodes and decodes tag=value messages. The zero delimiter means SOH;
// TestDelimiter, when set, is accepted on decode for hand-written input.
type Codec struct {
	Delimiter        byte
	TestDelimiter    byte
	AcceptedVersions map[string]bool
}

// DefaultVersions is the BeginString allow-list used when none is configured.
var DefaultVersions = []string{"FIX.4.2", "FIX.4.4"}

func NewCodec(versions ...string) *Codec {
	if len(versions) == 0 {
		versions = DefaultVersions
	}
	accepted := make(map[string]bool, len(versions))
	for _, v := range versions {
		accepted[v] = true
	}
	return &Codec{
		Delimiter:        SOH,
		AcceptedVersions: accepted,
	}
}

func (c *Codec) delim() byte {
	if c.Delimiter == 0 {
		return SOH
	}
	return c.Delimiter
}

// Encode serializes msg with the envelope in wire order: BeginString,
// computed BodyLength, MsgType, body tags ascending, computed CheckSum.
func (c *Codec) Encode(msg *Message) ([]byte, error) {
	begin := msg.Get(tag.BeginString)
	msgType := msg.MsgType()
	if begin == "" || msgType == "" {
		return nil, fmt.Errorf("encode: %w", ErrMissingRequiredField)
	}

	d := c.delim()

	var body bytes.Buffer
	writeField(&body, tag.MsgType, msgType, d)
	for _, t := range msg.BodyTags() {
		writeField(&body, t, msg.Get(t), d)
	}

	var out bytes.Buffer
	writeField(&out, tag.BeginString, begin, d)
	writeField(&out, tag.BodyLength, strconv.Itoa(body.Len()), d)
	out.Write(body.Bytes())

	sum := 0
	for _, b := range out.Bytes() {
		sum += int(b)
	}
	writeField(&out, tag.CheckSum, fmt.Sprintf("%03d", sum%256), d)

	return out.Bytes(), nil
}

// Decode parses and fully validates a message, checksum included.
func (c *Codec) Decode(data []byte) (*Message, error) {
	return c.decode(data, true)
}

// DecodeLenient parses and validates the envelope but skips the checksum
// comparison. Used by replay and fuzz harnesses.
func (c *Codec) DecodeLenient(data []byte) (*Message, error) {
	return c.decode(data, false)
}

func (c *Codec) decode(data []byte, strict bool) (*Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	d := c.delim()
	if bytes.IndexByte(data, d) < 0 && c.TestDelimiter != 0 &&
		bytes.IndexByte(data, c.TestDelimiter) >= 0 {
		d = c.TestDelimiter
	}

	msg := newEmptyMessage()
	checksumStart := -1

	pos := 0
	for pos < len(data) {
		eq := bytes.IndexByte(data[pos:], '=')
		if eq < 0 {
			break
		}
		eq += pos
		end := bytes.IndexByte(data[eq:], d)
		if end < 0 {
			end = len(data)
		} else {
			end += eq
		}

		tagNum, err := strconv.Atoi(string(data[pos:eq]))
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", data[pos:eq], ErrBadTag)
		}
		if quickfix.Tag(tagNum) == tag.CheckSum && checksumStart < 0 {
			checksumStart = pos
		}
		msg.Set(quickfix.Tag(tagNum), string(data[eq+1:end]))

		pos = end + 1
	}

	if !msg.Has(tag.BeginString) || !msg.Has(tag.BodyLength) ||
		!msg.Has(tag.MsgType) || !msg.Has(tag.CheckSum) {
		return nil, ErrBadEnvelope
	}

	if !c.AcceptedVersions[msg.Get(tag.BeginString)] {
		return nil, fmt.Errorf("%q: %w", msg.Get(tag.BeginString), ErrBadVersion)
	}

	if _, err := strconv.Atoi(msg.Get(tag.BodyLength)); err != nil {
		return nil, fmt.Errorf("%q: %w", msg.Get(tag.BodyLength), ErrBadLength)
	}

	if strict {
		declared, err := strconv.Atoi(msg.Get(tag.CheckSum))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", msg.Get(tag.CheckSum), ErrBadChecksum)
		}
		sum := 0
		for _, b := range data[:checksumStart] {
			sum += int(b)
		}
		if sum%256 != declared {
			return nil, fmt.Errorf("computed %03d declared %03d: %w",
				sum%256, declared, ErrBadChecksum)
		}
	}

	return msg, nil
}

func writeField(buf *bytes.Buffer, t quickfix.Tag, value string, d byte) {
	buf.WriteString(strconv.Itoa(int(t)))
	buf.WriteByte('=')
	buf.WriteString(value)
	buf.WriteByte(d)
}
