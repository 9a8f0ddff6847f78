package fixsession

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quickfixgo/tag"
	"go.uber.org/zap"

	"github.com/joripage/fixmatch/pkg/fixwire"
)

type State string

const (
	StateDisconnected  State = "Disconnected"
	StatePendingLogon  State = "PendingLogon"
	StateLoggedIn      State = "LoggedIn"
	StatePendingLogout State = "PendingLogout"
	StateLoggedOut     State = "LoggedOut"
	StateError         State = "Error"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultOutboundBuffer    = 64
	defaultAppBuffer         = 256

	// consecutive codec failures tolerated before the session gives up
	maxCodecFailures = 3

	// inbound silence beyond this fraction of the interval is fatal
	heartbeatGrace = 1.2
)

type Config struct {
	SenderCompID      string
	TargetCompID      string // empty on accepted sessions until first Logon
	BeginString       string
	HeartbeatInterval time.Duration
	Codec             *fixwire.Codec
	Logger            *zap.Logger
	Clock             func() time.Time
}

// Session is the transport-level authority on message validity. It owns the
// sequence numbers and liveness timers for one conversation and carries no
// business semantics. Outbound bytes and inbound application messages are
// exchanged over channels so no callback ever runs under a peer's lock.
type Session struct {
	cfg   Config
	codec *fixwire.Codec
	log   *zap.Logger
	clock func() time.Time

	mu            sync.Mutex
	state         State
	senderCompID  string
	targetCompID  string
	beginString   string
	hbInterval    time.Duration
	lastSent      time.Time
	lastReceived  time.Time
	testReqInAir  bool
	codecFailures int
	sent          *resendRing

	outSeq        atomic.Int64
	expectedInSeq atomic.Int64

	outbound chan []byte
	appIn    chan *fixwire.Message

	onError func(err error)
}

func NewSession(cfg Config) *Session {
	if cfg.Codec == nil {
		cfg.Codec = fixwire.NewCodec()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.BeginString == "" {
		cfg.BeginString = "FIX.4.2"
	}

	s := &Session{
		cfg:          cfg,
		codec:        cfg.Codec,
		log:          cfg.Logger,
		clock:        cfg.Clock,
		state:        StateDisconnected,
		senderCompID: cfg.SenderCompID,
		targetCompID: cfg.TargetCompID,
		beginString:  cfg.BeginString,
		hbInterval:   cfg.HeartbeatInterval,
		sent:         newResendRing(defaultResendCapacity),
		outbound:     make(chan []byte, defaultOutboundBuffer),
		appIn:        make(chan *fixwire.Message, defaultAppBuffer),
	}
	s.outSeq.Store(1)
	s.expectedInSeq.Store(1)
	now := s.clock()
	s.lastSent = now
	s.lastReceived = now
	return s
}

// Outbound is the byte stream the transport writer drains.
func (s *Session) Outbound() <-chan []byte { return s.outbound }

// AppMessages carries validated inbound application messages upstream.
func (s *Session) AppMessages() <-chan *fixwire.Message { return s.appIn }

func (s *Session) SetErrorHandler(fn func(err error)) { s.onError = fn }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RemoteCompID is the counterparty identity, empty until the first Logon.
func (s *Session) RemoteCompID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetCompID
}

func (s *Session) OutSeq() int64        { return s.outSeq.Load() }
func (s *Session) ExpectedInSeq() int64 { return s.expectedInSeq.Load() }

// Initiate starts a logon handshake from the connecting side.
func (s *Session) Initiate(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateDisconnected {
		return fmt.Errorf("initiate from %s: %w", s.state, ErrBadState)
	}
	s.state = StatePendingLogon

	logon := fixwire.NewMessage(fixwire.MsgTypeLogon)
	logon.SetInt(tag.EncryptMethod, 0)
	logon.SetInt(tag.HeartBtInt, int(s.hbInterval/time.Second))
	if username != "" {
		logon.Set(tag.Username, username)
		logon.Set(tag.Password, password)
	}
	return s.sendLocked(logon)
}

// Logout starts a logout handshake.
func (s *Session) Logout(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLoggedIn {
		return fmt.Errorf("logout from %s: %w", s.state, ErrBadState)
	}
	s.state = StatePendingLogout

	logout := fixwire.NewMessage(fixwire.MsgTypeLogout)
	if reason != "" {
		logout.Set(tag.Text, reason)
	}
	return s.sendLocked(logout)
}

// SendApp stamps, sequences and sends an application message, retaining it
// for resend requests.
func (s *Session) SendApp(msg *fixwire.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLoggedIn {
		return fmt.Errorf("send application message from %s: %w", s.state, ErrNotLoggedIn)
	}
	seq := s.outSeq.Load()
	if err := s.sendLocked(msg); err != nil {
		return err
	}
	s.sent.add(seq, msg)
	return nil
}

// ProcessIncoming decodes one framed message and drives the state machine.
func (s *Session) ProcessIncoming(raw []byte) error {
	msg, err := s.codec.Decode(raw)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.codecFailures++
		if s.codecFailures >= maxCodecFailures {
			s.failLocked(fmt.Errorf("repeated codec failures: %w", err))
			return fmt.Errorf("%w: %w", ErrSessionDead, err)
		}
		s.report(fmt.Errorf("codec failure %d/%d: %w", s.codecFailures, maxCodecFailures, err))
		return err
	}
	s.codecFailures = 0
	s.lastReceived = s.clock()
	s.testReqInAir = false

	if v := msg.Get(tag.BeginString); v != "" {
		s.beginString = v
	}

	if err := s.checkCompIDsLocked(msg); err != nil {
		s.report(err)
		return err
	}

	if cont, err := s.checkSeqNumLocked(msg); !cont {
		return err
	}

	if msg.IsAdmin() {
		return s.handleAdminLocked(msg)
	}
	return s.handleAppLocked(msg)
}

// CheckTimers enforces the heartbeat schedule. The transport's maintenance
// loop calls it periodically; a false return means the session is dead and
// the connection should be closed.
func (s *Session) CheckTimers(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLoggedIn {
		return s.state != StateError
	}

	silence := now.Sub(s.lastReceived)
	if float64(silence) > heartbeatGrace*float64(s.hbInterval) {
		s.failLocked(ErrHeartbeatTimeout)
		return false
	}
	if silence > s.hbInterval && !s.testReqInAir {
		tr := fixwire.NewMessage(fixwire.MsgTypeTestRequest)
		tr.Set(tag.TestReqID, fmt.Sprintf("TR%d", now.UnixMilli()))
		_ = s.sendLocked(tr)
		s.testReqInAir = true
	}
	if now.Sub(s.lastSent) > s.hbInterval {
		_ = s.sendLocked(fixwire.NewMessage(fixwire.MsgTypeHeartbeat))
	}
	return true
}

// ===== inbound handling =====

func (s *Session) checkCompIDsLocked(msg *fixwire.Message) error {
	sender := msg.Get(tag.SenderCompID)
	target := msg.Get(tag.TargetCompID)

	// accepted sessions adopt the counterparty identity on first contact
	if s.targetCompID == "" && sender != "" {
		s.targetCompID = sender
	}

	if sender != s.targetCompID || (target != "" && target != s.senderCompID) {
		return fmt.Errorf("expected %s->%s got %s->%s: %w",
			s.targetCompID, s.senderCompID, sender, target, ErrCompIDMismatch)
	}
	return nil
}

// checkSeqNumLocked applies the inbound sequence discipline. It returns
// cont=false when the message must not be processed further.
func (s *Session) checkSeqNumLocked(msg *fixwire.Message) (cont bool, err error) {
	if msg.MsgType() == fixwire.MsgTypeSequenceReset {
		if newSeq, err := msg.GetInt(tag.NewSeqNo); err == nil {
			s.expectedInSeq.Store(int64(newSeq))
		}
		return false, nil
	}

	seq, err := msg.MsgSeqNum()
	if err != nil {
		s.report(fmt.Errorf("message without MsgSeqNum: %w", ErrBadSeqNum))
		return false, ErrBadSeqNum
	}

	expected := s.expectedInSeq.Load()
	switch {
	case int64(seq) == expected:
		s.expectedInSeq.Store(expected + 1)
	case int64(seq) < expected:
		// duplicate, drop silently
		s.log.Debug("dropping duplicate",
			zap.Int("seq", seq), zap.Int64("expected", expected))
		return false, nil
	default:
		// gap: accept the message but ask for the missing range;
		// never lower the expectation
		rr := fixwire.NewMessage(fixwire.MsgTypeResendRequest)
		rr.SetInt(tag.BeginSeqNo, int(expected))
		rr.SetInt(tag.EndSeqNo, seq-1)
		_ = s.sendLocked(rr)
		s.expectedInSeq.Store(int64(seq) + 1)
	}
	return true, nil
}

func (s *Session) handleAdminLocked(msg *fixwire.Message) error {
	switch msg.MsgType() {
	case fixwire.MsgTypeLogon:
		return s.handleLogonLocked(msg)
	case fixwire.MsgTypeLogout:
		return s.handleLogoutLocked()
	case fixwire.MsgTypeHeartbeat:
		// liveness timer already refreshed
		return nil
	case fixwire.MsgTypeTestRequest:
		hb := fixwire.NewMessage(fixwire.MsgTypeHeartbeat)
		if id := msg.Get(tag.TestReqID); id != "" {
			hb.Set(tag.TestReqID, id)
		}
		return s.sendLocked(hb)
	case fixwire.MsgTypeResendRequest:
		return s.handleResendRequestLocked(msg)
	}
	s.log.Debug("unhandled admin message", zap.String("msg_type", msg.MsgType()))
	return nil
}

func (s *Session) handleLogonLocked(msg *fixwire.Message) error {
	switch s.state {
	case StatePendingLogon:
		s.state = StateLoggedIn
	case StateDisconnected:
		if hb, err := msg.GetInt(tag.HeartBtInt); err == nil && hb > 0 {
			s.hbInterval = time.Duration(hb) * time.Second
		}
		s.state = StateLoggedIn
		resp := fixwire.NewMessage(fixwire.MsgTypeLogon)
		resp.SetInt(tag.EncryptMethod, 0)
		resp.SetInt(tag.HeartBtInt, int(s.hbInterval/time.Second))
		return s.sendLocked(resp)
	default:
		err := fmt.Errorf("logon in state %s: %w", s.state, ErrBadState)
		s.report(err)
		return err
	}
	return nil
}

func (s *Session) handleLogoutLocked() error {
	switch s.state {
	case StatePendingLogout:
		s.state = StateLoggedOut
		return nil
	case StateLoggedIn:
		s.state = StateLoggedOut
		ack := fixwire.NewMessage(fixwire.MsgTypeLogout)
		ack.Set(tag.Text, "logout acknowledged")
		return s.sendLocked(ack)
	default:
		s.log.Debug("logout in unexpected state", zap.String("state", string(s.state)))
		return nil
	}
}

func (s *Session) handleResendRequestLocked(msg *fixwire.Message) error {
	begin, errB := msg.GetInt(tag.BeginSeqNo)
	end, errE := msg.GetInt(tag.EndSeqNo)
	if errB != nil || errE != nil {
		s.report(fmt.Errorf("resend request without range: %w", ErrBadSeqNum))
		return nil
	}

	// EndSeqNo 0 means everything sent so far
	last := int(s.outSeq.Load()) - 1
	if end == 0 || end > last {
		end = last
	}

	held := make(map[int64]*sentMessage)
	for _, entry := range s.sent.rangeSeq(int64(begin), int64(end)) {
		held[entry.seq] = entry
	}

	replayed, gapFilled := 0, 0
	var gapStart int64
	for seq := int64(begin); seq <= int64(end); seq++ {
		entry, ok := held[seq]
		if !ok {
			// admin or evicted, covered by a gap fill
			if gapStart == 0 {
				gapStart = seq
			}
			gapFilled++
			continue
		}
		if gapStart != 0 {
			s.sendGapFillLocked(gapStart, seq)
			gapStart = 0
		}
		dup := entry.clone()
		dup.Set(tag.PossDupFlag, "Y")
		raw, err := s.codec.Encode(dup)
		if err != nil {
			continue
		}
		s.push(raw)
		replayed++
	}
	if gapStart != 0 {
		s.sendGapFillLocked(gapStart, int64(end)+1)
	}

	s.log.Info("served resend request",
		zap.Int("begin", begin), zap.Int("end", end),
		zap.Int("replayed", replayed), zap.Int("gap_filled", gapFilled))
	return nil
}

// sendGapFillLocked covers [seq, next) with a SequenceReset-GapFill so the
// peer skips sequences the venue cannot replay.
func (s *Session) sendGapFillLocked(seq, next int64) {
	gf := fixwire.NewMessage(fixwire.MsgTypeSequenceReset)
	gf.Set(tag.GapFillFlag, "Y")
	gf.SetInt(tag.NewSeqNo, int(next))
	gf.Set(tag.PossDupFlag, "Y")
	gf.Set(tag.BeginString, s.beginString)
	gf.Set(tag.SenderCompID, s.senderCompID)
	if s.targetCompID != "" {
		gf.Set(tag.TargetCompID, s.targetCompID)
	}
	gf.SetInt(tag.MsgSeqNum, int(seq))
	gf.SetUTCTimestamp(tag.SendingTime, s.clock())

	raw, err := s.codec.Encode(gf)
	if err != nil {
		return
	}
	s.push(raw)
}

func (s *Session) handleAppLocked(msg *fixwire.Message) error {
	if s.state != StateLoggedIn {
		s.failLocked(fmt.Errorf("application message in state %s: %w", s.state, ErrNotLoggedIn))
		return ErrNotLoggedIn
	}
	select {
	case s.appIn <- msg:
	default:
		s.report(ErrAppQueueFull)
		return ErrAppQueueFull
	}
	return nil
}

// ===== outbound =====

func (s *Session) sendLocked(msg *fixwire.Message) error {
	msg.Set(tag.BeginString, s.beginString)
	msg.Set(tag.SenderCompID, s.senderCompID)
	if s.targetCompID != "" {
		msg.Set(tag.TargetCompID, s.targetCompID)
	}
	msg.SetInt(tag.MsgSeqNum, int(s.outSeq.Load()))
	msg.SetUTCTimestamp(tag.SendingTime, s.clock())

	raw, err := s.codec.Encode(msg)
	if err != nil {
		return err
	}
	s.outSeq.Add(1)
	s.lastSent = s.clock()
	s.push(raw)
	return nil
}

func (s *Session) push(raw []byte) {
	select {
	case s.outbound <- raw:
	default:
		// a writer this far behind is as good as gone
		s.failLocked(ErrOutboundFull)
	}
}

func (s *Session) failLocked(err error) {
	if s.state == StateError {
		return
	}
	s.state = StateError
	s.report(err)
}

func (s *Session) report(err error) {
	s.log.Warn("session error",
		zap.String("sender", s.senderCompID),
		zap.String("target", s.targetCompID),
		zap.Error(err))
	if s.onError != nil {
		s.onError(err)
	}
}
