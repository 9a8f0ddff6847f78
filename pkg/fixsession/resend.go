package fixsession

import (
	"github.com/gammazero/deque"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"

	"github.com/joripage/fixmatch/pkg/fixwire"
)

const defaultResendCapacity = 1024

type sentMessage struct {
	seq    int64
	fields map[quickfix.Tag]string
}

func (m *sentMessage) clone() *fixwire.Message {
	msg := fixwire.NewMessage(m.fields[tag.MsgType])
	for t, v := range m.fields {
		msg.Set(t, v)
	}
	return msg
}

// resendRing keeps the most recent sent application messages so a
// ResendRequest can be served. Oldest entries fall off when full.
type resendRing struct {
	capacity int
	entries  deque.Deque[*sentMessage]
}

func newResendRing(capacity int) *resendRing {
	return &resendRing{capacity: capacity}
}

func (r *resendRing) add(seq int64, msg *fixwire.Message) {
	fields := make(map[quickfix.Tag]string)
	for _, t := range msg.Tags() {
		fields[t] = msg.Get(t)
	}
	r.entries.PushBack(&sentMessage{seq: seq, fields: fields})
	for r.entries.Len() > r.capacity {
		r.entries.PopFront()
	}
}

func (r *resendRing) rangeSeq(begin, end int64) []*sentMessage {
	var out []*sentMessage
	for i := 0; i < r.entries.Len(); i++ {
		e := r.entries.At(i)
		if e.seq >= begin && e.seq <= end {
			out = append(out, e)
		}
	}
	return out
}
