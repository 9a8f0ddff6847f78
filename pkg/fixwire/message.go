package fixwire

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
	"github.com/shopspring/decimal"
)

// SOH is the standard FIX field delimiter.
const SOH byte = 0x01

// Message is a flat tag=value record set. Header, body and trailer tags all
// live in the same map; Encode puts the envelope back in wire order.
type Message struct {
	fields map[quickfix.Tag]string
}

func NewMessage(msgType string) *Message {
	m := &Message{fields: make(map[quickfix.Tag]string)}
	m.fields[tag.MsgType] = msgType
	return m
}

func newEmptyMessage() *Message {
	return &Message{fields: make(map[quickfix.Tag]string)}
}

func (m *Message) Set(t quickfix.Tag, value string) *Message {
	m.fields[t] = value
	return m
}

func (m *Message) SetInt(t quickfix.Tag, value int) *Message {
	return m.Set(t, strconv.Itoa(value))
}

func (m *Message) SetUint64(t quickfix.Tag, value uint64) *Message {
	return m.Set(t, strconv.FormatUint(value, 10))
}

func (m *Message) SetDecimal(t quickfix.Tag, value decimal.Decimal) *Message {
	return m.Set(t, value.String())
}

func (m *Message) SetUTCTimestamp(t quickfix.Tag, value time.Time) *Message {
	return m.Set(t, value.UTC().Format("20060102-15:04:05.000"))
}

func (m *Message) Get(t quickfix.Tag) string {
	return m.fields[t]
}

func (m *Message) Has(t quickfix.Tag) bool {
	_, ok := m.fields[t]
	return ok
}

func (m *Message) GetInt(t quickfix.Tag) (int, error) {
	v, ok := m.fields[t]
	if !ok {
		return 0, fmt.Errorf("tag %d: %w", t, ErrMissingRequiredField)
	}
	return strconv.Atoi(v)
}

func (m *Message) GetUint64(t quickfix.Tag) (uint64, error) {
	v, ok := m.fields[t]
	if !ok {
		return 0, fmt.Errorf("tag %d: %w", t, ErrMissingRequiredField)
	}
	return strconv.ParseUint(v, 10, 64)
}

func (m *Message) GetDecimal(t quickfix.Tag) (decimal.Decimal, error) {
	v, ok := m.fields[t]
	if !ok {
		return decimal.Zero, fmt.Errorf("tag %d: %w", t, ErrMissingRequiredField)
	}
	return decimal.NewFromString(v)
}

func (m *Message) MsgType() string {
	return m.fields[tag.MsgType]
}

func (m *Message) MsgSeqNum() (int, error) {
	return m.GetInt(tag.MsgSeqNum)
}

// IsAdmin reports whether the message is session-level: Heartbeat,
// TestRequest, ResendRequest, SequenceReset, Logout or Logon.
func (m *Message) IsAdmin() bool {
	switch m.MsgType() {
	case MsgTypeHeartbeat, MsgTypeTestRequest, MsgTypeResendRequest,
		MsgTypeSequenceReset, MsgTypeLogout, MsgTypeLogon:
		return true
	}
	return false
}

// Tags returns all tags in ascending numeric order.
func (m *Message) Tags() []quickfix.Tag {
	tags := make([]quickfix.Tag, 0, len(m.fields))
	for t := range m.fields {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// BodyTags returns the non-envelope tags in ascending order.
func (m *Message) BodyTags() []quickfix.Tag {
	tags := make([]quickfix.Tag, 0, len(m.fields))
	for t := range m.fields {
		switch t {
		case tag.BeginString, tag.BodyLength, tag.MsgType, tag.CheckSum:
			continue
		}
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

func (m *Message) String() string {
	var sb strings.Builder
	sb.WriteString("Message[")
	for i, t := range m.Tags() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d=%s", t, m.fields[t])
	}
	sb.WriteByte(']')
	return sb.String()
}
