package fixsession

import (
	"testing"
	"time"

	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"

	"github.com/joripage/fixmatch/pkg/fixwire"
)

func newAcceptor() (*Session, *fixwire.Codec) {
	codec := fixwire.NewCodec()
	s := NewSession(Config{
		SenderCompID:      "VENUE",
		HeartbeatInterval: 5 * time.Second,
		Codec:             codec,
	})
	return s, codec
}

func clientRaw(t *testing.T, codec *fixwire.Codec, msgType string, seq int, extra map[quickfix.Tag]string) []byte {
	t.Helper()
	msg := fixwire.NewMessage(msgType)
	msg.Set(tag.BeginString, "FIX.4.2")
	msg.Set(tag.SenderCompID, "CLIENT")
	msg.Set(tag.TargetCompID, "VENUE")
	msg.SetInt(tag.MsgSeqNum, seq)
	for k, v := range extra {
		msg.Set(k, v)
	}
	raw, err := codec.Encode(msg)
	if err != nil {
		t.Fatalf("encode client msg: %v", err)
	}
	return raw
}

func drainOutbound(t *testing.T, s *Session, codec *fixwire.Codec) []*fixwire.Message {
	t.Helper()
	var out []*fixwire.Message
	for {
		select {
		case raw := <-s.Outbound():
			msg, err := codec.Decode(raw)
			if err != nil {
				t.Fatalf("decode outbound: %v", err)
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func logon(t *testing.T, s *Session, codec *fixwire.Codec) {
	t.Helper()
	raw := clientRaw(t, codec, fixwire.MsgTypeLogon, 1, map[quickfix.Tag]string{
		tag.EncryptMethod: "0",
		tag.HeartBtInt:    "5",
	})
	if err := s.ProcessIncoming(raw); err != nil {
		t.Fatalf("logon: %v", err)
	}
	drainOutbound(t, s, codec)
}

func TestAcceptLogon(t *testing.T) {
	s, codec := newAcceptor()

	raw := clientRaw(t, codec, fixwire.MsgTypeLogon, 1, map[quickfix.Tag]string{
		tag.EncryptMethod: "0",
		tag.HeartBtInt:    "5",
	})
	if err := s.ProcessIncoming(raw); err != nil {
		t.Fatalf("process logon: %v", err)
	}

	if s.State() != StateLoggedIn {
		t.Fatalf("state = %s, want %s", s.State(), StateLoggedIn)
	}
	if s.RemoteCompID() != "CLIENT" {
		t.Errorf("remote comp id = %q, want CLIENT", s.RemoteCompID())
	}

	out := drainOutbound(t, s, codec)
	if len(out) != 1 || out[0].MsgType() != fixwire.MsgTypeLogon {
		t.Fatalf("expected one Logon response, got %v", out)
	}
	if out[0].Get(tag.HeartBtInt) != "5" {
		t.Errorf("response HeartBtInt = %q, want 5", out[0].Get(tag.HeartBtInt))
	}
	if out[0].Get(tag.SenderCompID) != "VENUE" || out[0].Get(tag.TargetCompID) != "CLIENT" {
		t.Errorf("response comp ids wrong: %v", out[0])
	}
}

func TestSequenceGapEmitsResendRequest(t *testing.T) {
	s, codec := newAcceptor()
	logon(t, s, codec)

	// advance to expected=5
	for seq := 2; seq <= 4; seq++ {
		raw := clientRaw(t, codec, fixwire.MsgTypeNewOrderSingle, seq, map[quickfix.Tag]string{
			tag.ClOrdID: "X", tag.Symbol: "AAPL", tag.Side: "1",
			tag.OrderQty: "1", tag.OrdType: "1",
		})
		if err := s.ProcessIncoming(raw); err != nil {
			t.Fatalf("seq %d: %v", seq, err)
		}
		<-s.AppMessages()
	}
	drainOutbound(t, s, codec)
	if got := s.ExpectedInSeq(); got != 5 {
		t.Fatalf("expected in seq = %d, want 5", got)
	}

	raw := clientRaw(t, codec, fixwire.MsgTypeNewOrderSingle, 7, map[quickfix.Tag]string{
		tag.ClOrdID: "GAP", tag.Symbol: "AAPL", tag.Side: "1",
		tag.OrderQty: "1", tag.OrdType: "1",
	})
	if err := s.ProcessIncoming(raw); err != nil {
		t.Fatalf("gap message: %v", err)
	}

	// the message itself is still delivered
	app := <-s.AppMessages()
	if app.Get(tag.ClOrdID) != "GAP" {
		t.Errorf("app message not forwarded: %v", app)
	}

	out := drainOutbound(t, s, codec)
	if len(out) != 1 || out[0].MsgType() != fixwire.MsgTypeResendRequest {
		t.Fatalf("expected ResendRequest, got %v", out)
	}
	if out[0].Get(tag.BeginSeqNo) != "5" || out[0].Get(tag.EndSeqNo) != "6" {
		t.Errorf("resend range = [%s,%s], want [5,6]",
			out[0].Get(tag.BeginSeqNo), out[0].Get(tag.EndSeqNo))
	}
	if got := s.ExpectedInSeq(); got != 8 {
		t.Errorf("expected in seq = %d, want 8", got)
	}
}

func TestDuplicateDroppedSilently(t *testing.T) {
	s, codec := newAcceptor()
	logon(t, s, codec)

	raw := clientRaw(t, codec, fixwire.MsgTypeNewOrderSingle, 2, map[quickfix.Tag]string{
		tag.ClOrdID: "D1", tag.Symbol: "AAPL", tag.Side: "1",
		tag.OrderQty: "1", tag.OrdType: "1",
	})
	if err := s.ProcessIncoming(raw); err != nil {
		t.Fatalf("first: %v", err)
	}
	<-s.AppMessages()
	drainOutbound(t, s, codec)

	if err := s.ProcessIncoming(raw); err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	select {
	case m := <-s.AppMessages():
		t.Fatalf("duplicate forwarded: %v", m)
	default:
	}
	if out := drainOutbound(t, s, codec); len(out) != 0 {
		t.Fatalf("duplicate triggered output: %v", out)
	}
	if got := s.ExpectedInSeq(); got != 3 {
		t.Errorf("expected in seq = %d, want 3", got)
	}
}

func TestTestRequestEcho(t *testing.T) {
	s, codec := newAcceptor()
	logon(t, s, codec)

	raw := clientRaw(t, codec, fixwire.MsgTypeTestRequest, 2, map[quickfix.Tag]string{
		tag.TestReqID: "PING-1",
	})
	if err := s.ProcessIncoming(raw); err != nil {
		t.Fatalf("test request: %v", err)
	}

	out := drainOutbound(t, s, codec)
	if len(out) != 1 || out[0].MsgType() != fixwire.MsgTypeHeartbeat {
		t.Fatalf("expected Heartbeat, got %v", out)
	}
	if out[0].Get(tag.TestReqID) != "PING-1" {
		t.Errorf("TestReqID not echoed: %v", out[0])
	}
}

func TestHeartbeatTimeout(t *testing.T) {
	now := time.Unix(1000, 0)
	codec := fixwire.NewCodec()
	s := NewSession(Config{
		SenderCompID:      "VENUE",
		HeartbeatInterval: 5 * time.Second,
		Codec:             codec,
		Clock:             func() time.Time { return now },
	})
	logon(t, s, codec)

	// just past the interval: TestRequest, still alive
	if alive := s.CheckTimers(now.Add(6 * time.Second)); !alive {
		t.Fatal("session died before grace expired")
	}
	out := drainOutbound(t, s, codec)
	sawTestRequest := false
	for _, m := range out {
		if m.MsgType() == fixwire.MsgTypeTestRequest {
			sawTestRequest = true
		}
	}
	if !sawTestRequest {
		t.Fatalf("expected TestRequest near interval, got %v", out)
	}

	// beyond 1.2x interval: dead
	if alive := s.CheckTimers(now.Add(7 * time.Second)); alive {
		t.Fatal("session survived past heartbeat grace")
	}
	if s.State() != StateError {
		t.Errorf("state = %s, want %s", s.State(), StateError)
	}
}

func TestPeriodicHeartbeatSent(t *testing.T) {
	now := time.Unix(1000, 0)
	codec := fixwire.NewCodec()
	s := NewSession(Config{
		SenderCompID:      "VENUE",
		HeartbeatInterval: 5 * time.Second,
		Codec:             codec,
		Clock:             func() time.Time { return now },
	})
	logon(t, s, codec)

	// keep inbound fresh, make outbound stale
	raw := clientRaw(t, codec, fixwire.MsgTypeHeartbeat, 2, nil)
	now = now.Add(4 * time.Second)
	if err := s.ProcessIncoming(raw); err != nil {
		t.Fatalf("heartbeat in: %v", err)
	}

	s.CheckTimers(now.Add(2 * time.Second))
	out := drainOutbound(t, s, codec)
	found := false
	for _, m := range out {
		if m.MsgType() == fixwire.MsgTypeHeartbeat {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected periodic Heartbeat, got %v", out)
	}
}

func TestResendReplayWithPossDup(t *testing.T) {
	s, codec := newAcceptor()
	logon(t, s, codec)

	for _, id := range []string{"E1", "E2"} {
		msg := fixwire.NewMessage(fixwire.MsgTypeExecutionReport)
		msg.Set(tag.ClOrdID, id)
		if err := s.SendApp(msg); err != nil {
			t.Fatalf("send %s: %v", id, err)
		}
	}
	sent := drainOutbound(t, s, codec)
	if len(sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sent))
	}
	firstSeq, _ := sent[0].MsgSeqNum()

	raw := clientRaw(t, codec, fixwire.MsgTypeResendRequest, 2, map[quickfix.Tag]string{
		tag.BeginSeqNo: "2",
		tag.EndSeqNo:   "3",
	})
	if err := s.ProcessIncoming(raw); err != nil {
		t.Fatalf("resend request: %v", err)
	}

	replayed := drainOutbound(t, s, codec)
	if len(replayed) != 2 {
		t.Fatalf("expected 2 replayed messages, got %d", len(replayed))
	}
	for i, m := range replayed {
		if m.Get(tag.PossDupFlag) != "Y" {
			t.Errorf("replay %d missing PossDupFlag: %v", i, m)
		}
		seq, _ := m.MsgSeqNum()
		if seq != firstSeq+i {
			t.Errorf("replay %d seq = %d, want %d", i, seq, firstSeq+i)
		}
	}
}

func TestResendGapFillsUnheldSequences(t *testing.T) {
	s, codec := newAcceptor()
	logon(t, s, codec)

	msg := fixwire.NewMessage(fixwire.MsgTypeExecutionReport)
	msg.Set(tag.ClOrdID, "E1")
	if err := s.SendApp(msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	drainOutbound(t, s, codec)

	// seq 1 was the Logon reply, which the ring never holds
	raw := clientRaw(t, codec, fixwire.MsgTypeResendRequest, 2, map[quickfix.Tag]string{
		tag.BeginSeqNo: "1",
		tag.EndSeqNo:   "0",
	})
	if err := s.ProcessIncoming(raw); err != nil {
		t.Fatalf("resend request: %v", err)
	}

	out := drainOutbound(t, s, codec)
	if len(out) != 2 {
		t.Fatalf("expected gap fill plus one replay, got %d messages", len(out))
	}

	gf := out[0]
	if gf.MsgType() != fixwire.MsgTypeSequenceReset || gf.Get(tag.GapFillFlag) != "Y" {
		t.Fatalf("first message = %v, want SequenceReset gap fill", gf)
	}
	if seq, _ := gf.MsgSeqNum(); seq != 1 {
		t.Errorf("gap fill seq = %d, want 1", seq)
	}
	if gf.Get(tag.NewSeqNo) != "2" {
		t.Errorf("NewSeqNo = %q, want 2", gf.Get(tag.NewSeqNo))
	}
	if gf.Get(tag.PossDupFlag) != "Y" {
		t.Errorf("gap fill missing PossDupFlag: %v", gf)
	}

	if out[1].Get(tag.ClOrdID) != "E1" || out[1].Get(tag.PossDupFlag) != "Y" {
		t.Errorf("replay = %v, want PossDup replay of E1", out[1])
	}
}

func TestCodecFailuresDisconnect(t *testing.T) {
	s, _ := newAcceptor()

	for i := 0; i < 2; i++ {
		if err := s.ProcessIncoming([]byte("garbage")); err == nil {
			t.Fatal("expected codec error")
		}
		if s.State() == StateError {
			t.Fatalf("session died after %d failures", i+1)
		}
	}
	if err := s.ProcessIncoming([]byte("garbage")); err == nil {
		t.Fatal("expected codec error")
	}
	if s.State() != StateError {
		t.Errorf("state = %s, want %s after repeated codec failures", s.State(), StateError)
	}
}

func TestSequenceResetAdjustsExpected(t *testing.T) {
	s, codec := newAcceptor()
	logon(t, s, codec)

	raw := clientRaw(t, codec, fixwire.MsgTypeSequenceReset, 2, map[quickfix.Tag]string{
		tag.NewSeqNo: "10",
	})
	if err := s.ProcessIncoming(raw); err != nil {
		t.Fatalf("sequence reset: %v", err)
	}
	if got := s.ExpectedInSeq(); got != 10 {
		t.Errorf("expected in seq = %d, want 10", got)
	}
}

func TestApplicationBeforeLogonIsFatal(t *testing.T) {
	s, codec := newAcceptor()

	raw := clientRaw(t, codec, fixwire.MsgTypeNewOrderSingle, 1, map[quickfix.Tag]string{
		tag.ClOrdID: "X", tag.Symbol: "AAPL", tag.Side: "1",
		tag.OrderQty: "1", tag.OrdType: "1",
	})
	if err := s.ProcessIncoming(raw); err == nil {
		t.Fatal("expected error for application message before logon")
	}
	if s.State() != StateError {
		t.Errorf("state = %s, want %s", s.State(), StateError)
	}
}

func TestLogoutHandshake(t *testing.T) {
	s, codec := newAcceptor()
	logon(t, s, codec)

	raw := clientRaw(t, codec, fixwire.MsgTypeLogout, 2, nil)
	if err := s.ProcessIncoming(raw); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if s.State() != StateLoggedOut {
		t.Errorf("state = %s, want %s", s.State(), StateLoggedOut)
	}
	out := drainOutbound(t, s, codec)
	if len(out) != 1 || out[0].MsgType() != fixwire.MsgTypeLogout {
		t.Fatalf("expected Logout ack, got %v", out)
	}
}

func TestCompIDMismatchRejected(t *testing.T) {
	s, codec := newAcceptor()
	logon(t, s, codec) // binds CLIENT

	msg := fixwire.NewMessage(fixwire.MsgTypeHeartbeat)
	msg.Set(tag.BeginString, "FIX.4.2")
	msg.Set(tag.SenderCompID, "INTRUDER")
	msg.Set(tag.TargetCompID, "VENUE")
	msg.SetInt(tag.MsgSeqNum, 2)
	raw, _ := codec.Encode(msg)

	if err := s.ProcessIncoming(raw); err == nil {
		t.Fatal("expected comp id mismatch error")
	}
	// mismatch is local: the session itself stays up
	if s.State() != StateLoggedIn {
		t.Errorf("state = %s, want %s", s.State(), StateLoggedIn)
	}
}
