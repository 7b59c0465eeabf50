package mayus

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// pollInterval bounds every blocking read so cancellation is noticed even on
// connections that ignore deadline changes made while a read is in progress.
const pollInterval = 200 * time.Millisecond

// Server answers name and line frames from any number of peers.
type Server struct {
	conn    net.PacketConn
	ownConn bool // true: Listen 创建的连接, Close 时一并关闭
	cfg     *ServerConfig
	folder  *Folder
	sched   *TimedSched
	l       *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[string]*session
	history  []SessionRecord // 最近结束的会话, 最多 cfg.HistorySize 条

	// legacy 模式: 整个服务端只有一次传输
	legacyNamed bool

	closed  atomic.Bool
	die     chan struct{}
	dieOnce sync.Once
}

// Listen binds cfg.Listen and returns a Server that owns the socket.
func Listen(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		cfg = new(ServerConfig)
	}
	cfg.Adjust()
	udpaddr, err := net.ResolveUDPAddr("udp", cfg.Listen)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	conn, err := net.ListenUDP("udp", udpaddr)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "listen %s: %v", cfg.Listen, err)
	}
	s, err := serveConn(conn, cfg, true)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// NewServer wraps a caller-provided connection. Close leaves conn open.
func NewServer(conn net.PacketConn, cfg *ServerConfig) (*Server, error) {
	return serveConn(conn, cfg, false)
}

func serveConn(conn net.PacketConn, cfg *ServerConfig, ownConn bool) (*Server, error) {
	if cfg == nil {
		cfg = new(ServerConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	folder, err := NewFolder(cfg.Lang, cfg.Charset)
	if err != nil {
		return nil, err
	}
	if cfg.MirrorDir != "" {
		if err := os.MkdirAll(cfg.MirrorDir, 0o755); err != nil {
			return nil, errors.Wrapf(ErrFileOpen, "mirror dir %s: %v", cfg.MirrorDir, err)
		}
	}
	if err := applyDSCP(conn, cfg.DSCP); err != nil {
		return nil, errors.Wrapf(err, "set dscp %d", cfg.DSCP)
	}
	s := &Server{
		conn:     conn,
		ownConn:  ownConn,
		cfg:      cfg,
		folder:   folder,
		sched:    NewTimedSched(),
		l:        zap.S().Named("server"),
		sessions: make(map[string]*session),
		die:      make(chan struct{}),
	}
	return s, nil
}

// Addr returns the local address the server receives on.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Folder returns the transform the server applies to every line.
func (s *Server) Folder() *Folder {
	return s.folder
}

// Serve reads datagrams until ctx is cancelled or the server is closed. In
// legacy mode it also returns after the first zero-length datagram.
func (s *Server) Serve(ctx context.Context) error {
	s.l.Infow("serving", "addr", s.Addr().String(), "lang", s.folder.Lang(),
		"charset", s.folder.Charset(), "legacy", s.cfg.Legacy)

	// 多读一个字节用来识别超长的数据报
	buf := make([]byte, MaxDatagramSize+1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.die:
			return nil
		default:
		}

		deadline := time.Now().Add(pollInterval)
		_ = s.conn.SetReadDeadline(deadline)
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			if isTimeout(err, deadline) {
				continue
			}
			return errors.Wrapf(ErrTransport, "read: %v", err)
		}
		DefaultSnmp.InPkts.Inc()
		DefaultSnmp.InBytes.Add(uint64(n))

		stop, err := s.packetInput(buf[:n], from)
		if err != nil {
			return err
		}
		if stop {
			s.l.Info("end of transfer, leaving serve loop")
			return nil
		}
	}
}

// packetInput handles one datagram. It returns stop=true when Serve should
// return.
func (s *Server) packetInput(data []byte, from net.Addr) (stop bool, err error) {
	if s.cfg.Legacy {
		return s.legacyInput(data, from)
	}
	return false, s.sessionInput(data, from)
}

func (s *Server) sessionInput(data []byte, from net.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil
	}

	key := from.String()
	sess := s.sessions[key]
	if len(data) == 0 {
		if sess != nil {
			s.l.Infow("session terminated", "peer", key, "lines", sess.lines)
			s.closeSession(sess, EndTerminated)
			DefaultSnmp.SessionsClosed.Inc()
		}
		return nil
	}

	if len(data) > MaxDatagramSize {
		DefaultSnmp.DroppedPkts.Inc()
		var seq uint32
		if f, err := DecodeFrame(append(data[:frameHeaderSize:frameHeaderSize], 0)); err == nil {
			seq = f.Seq
		}
		s.l.Warnw("oversized datagram", "peer", key, "len", len(data))
		return s.reply(&Frame{Kind: KindError, Seq: seq, Payload: []byte(ErrLineTooLong.Error())}, from, sess, nil)
	}

	f, err := DecodeFrame(data)
	if err != nil {
		DefaultSnmp.DroppedPkts.Inc()
		s.l.Warnw("drop malformed datagram", "peer", key, "err", err)
		return nil
	}

	now := time.Now()
	if sess == nil {
		if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
			DefaultSnmp.DroppedPkts.Inc()
			s.l.Warnw("too many sessions", "peer", key, "max", s.cfg.MaxSessions)
			return s.reply(&Frame{Kind: KindError, Seq: f.Seq, Payload: []byte("too many sessions")}, from, nil, nil)
		}
		sess = s.openSession(from, now)
	}

	if sess.limiter != nil && !sess.limiter.Allow() {
		DefaultSnmp.DroppedPkts.Inc()
		s.l.Debugw("rate limited", "peer", key, "seq", f.Seq)
		return nil
	}
	sess.lastActive = now

	if sess.isRetransmit(f) {
		sess.retransmits++
		DefaultSnmp.Retransmits.Inc()
		s.l.Debugw("answer retransmit from cache", "peer", key, "kind", f.Kind.String(), "seq", f.Seq)
		return writeDatagram(s.conn, sess.lastReply, from)
	}
	if sess.isStale(f) {
		// 迟到的旧请求, 早已应答过
		DefaultSnmp.DroppedPkts.Inc()
		s.l.Debugw("drop stale request", "peer", key, "kind", f.Kind.String(), "seq", f.Seq, "last", sess.lastSeq)
		return nil
	}

	switch f.Kind {
	case KindName:
		return s.handleName(sess, f, now)
	case KindLine:
		return s.handleLine(sess, f)
	default:
		DefaultSnmp.DroppedPkts.Inc()
		return s.reply(&Frame{Kind: KindError, Seq: f.Seq, Payload: []byte("unexpected " + f.Kind.String() + " frame")}, from, sess, f)
	}
}

func (s *Server) handleName(sess *session, f *Frame, now time.Time) error {
	if sess.phase == PhaseStreaming {
		// 同一个地址开始了新的文件
		s.archive(sess, EndRestarted, now)
		if err := sess.reset(now); err != nil {
			s.l.Warnw("close mirror", "peer", sess.key, "err", err)
		}
	}

	name := string(f.Payload)
	out := s.folder.OutputName(name)
	if out == "" || out == "." || out == string(filepath.Separator) {
		return s.reply(&Frame{Kind: KindError, Seq: f.Seq, Payload: []byte("invalid file name")}, sess.peer, sess, f)
	}

	if s.cfg.MirrorDir != "" {
		path := filepath.Join(s.cfg.MirrorDir, out)
		fd, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			s.l.Errorw("open mirror", "peer", sess.key, "path", path, "err", err)
			return s.reply(&Frame{Kind: KindError, Seq: f.Seq, Payload: []byte("cannot open output file")}, sess.peer, sess, f)
		}
		sess.mirror = fd
		sess.mirrorPath = path
	}

	sess.inputName = name
	sess.outputName = out
	sess.phase = PhaseStreaming
	s.l.Infow("transfer started", "peer", sess.key, "input", name, "output", out)
	return s.reply(&Frame{Kind: KindAssign, Seq: f.Seq, Payload: []byte(out)}, sess.peer, sess, f)
}

func (s *Server) handleLine(sess *session, f *Frame) error {
	if sess.phase != PhaseStreaming {
		DefaultSnmp.DroppedPkts.Inc()
		return s.reply(&Frame{Kind: KindError, Seq: f.Seq, Payload: []byte("no file name received")}, sess.peer, sess, f)
	}

	sess.lines++
	sess.bytes += uint64(len(f.Payload))
	folded, err := s.folder.Fold(f.Payload)
	if err != nil {
		if !lineFailure(err) {
			return err
		}
		sess.decodeErrors++
		DefaultSnmp.DecodeErrors.Inc()
		s.l.Warnw("line not folded", "peer", sess.key, "line", sess.lines, "err", err)
		if sess.mirror != nil {
			if _, werr := sess.mirror.Write(f.Payload); werr != nil {
				s.l.Warnw("write mirror", "path", sess.mirrorPath, "err", werr)
			}
		}
		return s.reply(&Frame{Kind: KindError, Seq: f.Seq, Payload: []byte(err.Error())}, sess.peer, sess, f)
	}

	if len(folded.Text) > MaxPayloadSize {
		s.l.Warnw("folded line too long", "peer", sess.key, "line", sess.lines, "len", len(folded.Text))
		if sess.mirror != nil {
			if _, werr := sess.mirror.Write(f.Payload); werr != nil {
				s.l.Warnw("write mirror", "path", sess.mirrorPath, "err", werr)
			}
		}
		return s.reply(&Frame{Kind: KindError, Seq: f.Seq, Payload: []byte(ErrLineTooLong.Error())}, sess.peer, sess, f)
	}

	DefaultSnmp.LinesFolded.Inc()
	var flags byte
	if folded.CountChanged() {
		flags |= FlagCountChanged
		sess.countChanged++
		DefaultSnmp.CountChanged.Inc()
		s.l.Debugw("character count changed", "peer", sess.key, "line", sess.lines,
			"in", folded.InRunes, "out", folded.OutRunes)
	}
	if sess.mirror != nil {
		if _, werr := sess.mirror.Write(folded.Text); werr != nil {
			s.l.Warnw("write mirror", "path", sess.mirrorPath, "err", werr)
		}
	}
	return s.reply(&Frame{Kind: KindUpper, Flags: flags, Seq: f.Seq, Payload: folded.Text}, sess.peer, sess, f)
}

// reply sends f to addr. When req is set the encoded reply is cached on sess
// so a retransmitted req gets the same answer.
func (s *Server) reply(f *Frame, addr net.Addr, sess *session, req *Frame) error {
	if len(f.Payload) > MaxPayloadSize {
		// 大写后变长, 放不进一个数据报
		f = &Frame{Kind: KindError, Seq: f.Seq, Payload: []byte(ErrLineTooLong.Error())}
	}
	buf := xmitBuf.Get()[:0]
	defer xmitBuf.Put(buf)
	buf, err := AppendFrame(buf, f)
	if err != nil {
		return err
	}
	if sess != nil && req != nil {
		sess.remember(req, buf)
	}
	return writeDatagram(s.conn, buf, addr)
}

// legacyInput reproduces the single-transfer loop: the first datagram names
// the file, every later one is a line, and a zero-length datagram ends Serve.
// Peers are not told apart.
func (s *Server) legacyInput(data []byte, from net.Addr) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(data) == 0 {
		return true, nil
	}
	f, err := DecodeFrame(data)
	if err != nil {
		DefaultSnmp.DroppedPkts.Inc()
		s.l.Warnw("drop malformed datagram", "peer", from.String(), "err", err)
		return false, nil
	}

	if !s.legacyNamed {
		s.legacyNamed = true
		out := s.folder.OutputName(string(f.Payload))
		s.l.Infow("transfer started", "peer", from.String(), "input", string(f.Payload), "output", out)
		return false, s.reply(&Frame{Kind: KindAssign, Seq: f.Seq, Payload: []byte(out)}, from, nil, nil)
	}

	folded, err := s.folder.Fold(f.Payload)
	if err != nil {
		if !lineFailure(err) {
			return false, err
		}
		DefaultSnmp.DecodeErrors.Inc()
		return false, s.reply(&Frame{Kind: KindError, Seq: f.Seq, Payload: []byte(err.Error())}, from, nil, nil)
	}
	DefaultSnmp.LinesFolded.Inc()
	var flags byte
	if folded.CountChanged() {
		flags |= FlagCountChanged
		DefaultSnmp.CountChanged.Inc()
	}
	return false, s.reply(&Frame{Kind: KindUpper, Flags: flags, Seq: f.Seq, Payload: folded.Text}, from, nil, nil)
}

func (s *Server) openSession(peer net.Addr, now time.Time) *session {
	sess := newSession(peer, now)
	if s.cfg.PeerRate > 0 {
		sess.limiter = rate.NewLimiter(rate.Limit(s.cfg.PeerRate), s.cfg.PeerBurst)
	}
	s.sessions[sess.key] = sess
	DefaultSnmp.SessionsOpened.Inc()
	DefaultSnmp.CurrSessions.Inc()
	if s.cfg.IdleTimeout > 0 {
		s.scheduleIdleCheck(sess, now.Add(s.cfg.IdleTimeout))
	}
	s.l.Debugw("session opened", "peer", sess.key)
	return sess
}

func (s *Server) scheduleIdleCheck(sess *session, ddl time.Time) {
	s.sched.Put(func() { s.checkIdle(sess) }, ddl)
}

// checkIdle expires sess if it has been quiet for IdleTimeout, otherwise it
// checks again when the timeout would next elapse.
func (s *Server) checkIdle(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.closed || s.sessions[sess.key] != sess {
		return
	}
	ddl := sess.lastActive.Add(s.cfg.IdleTimeout)
	if time.Now().Before(ddl) {
		s.scheduleIdleCheck(sess, ddl)
		return
	}
	s.l.Infow("session expired", "peer", sess.key, "idle", s.cfg.IdleTimeout.String())
	s.closeSession(sess, EndExpired)
	DefaultSnmp.SessionsExpired.Inc()
}

// closeSession removes sess from the table. Callers hold s.mu.
func (s *Server) closeSession(sess *session, reason string) {
	if sess.closed {
		return
	}
	sess.closed = true
	if err := sess.closeMirror(); err != nil {
		s.l.Warnw("close mirror", "path", sess.mirrorPath, "err", err)
	}
	delete(s.sessions, sess.key)
	DefaultSnmp.CurrSessions.Dec()
	s.archive(sess, reason, time.Now())
}

func (s *Server) archive(sess *session, reason string, now time.Time) {
	rec := sess.record()
	rec.Ended = now
	rec.EndReason = reason
	s.history = append(s.history, rec)
	if over := len(s.history) - s.cfg.HistorySize; over > 0 {
		s.history = append(s.history[:0], s.history[over:]...)
	}
}

// Sessions returns the active sessions, oldest first.
func (s *Server) Sessions() []SessionRecord {
	s.mu.Lock()
	recs := make([]SessionRecord, 0, len(s.sessions))
	for _, sess := range s.sessions {
		recs = append(recs, sess.record())
	}
	s.mu.Unlock()
	sort.Slice(recs, func(i, j int) bool { return recs[i].Started.Before(recs[j].Started) })
	return recs
}

// History returns the most recently ended sessions, oldest first.
func (s *Server) History() []SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]SessionRecord, len(s.history))
	copy(recs, s.history)
	return recs
}

// Close ends every session, writes the report when ReportPath is set, and
// closes the socket if the server created it.
func (s *Server) Close() error {
	var once bool
	s.dieOnce.Do(func() {
		s.closed.Store(true)
		close(s.die)
		once = true
	})
	if !once {
		return errors.WithStack(ErrClosed)
	}
	s.sched.Close()

	s.mu.Lock()
	for _, sess := range s.sessions {
		s.closeSession(sess, EndShutdown)
	}
	history := append([]SessionRecord(nil), s.history...)
	s.mu.Unlock()

	var err error
	if s.cfg.ReportPath != "" {
		if err = WriteReport(s.cfg.ReportPath, history, DefaultSnmp); err != nil {
			s.l.Errorw("write report", "path", s.cfg.ReportPath, "err", err)
		} else {
			s.l.Infow("report written", "path", s.cfg.ReportPath, "sessions", len(history))
		}
	}
	if s.ownConn {
		if cerr := s.conn.Close(); cerr != nil && err == nil {
			err = errors.WithStack(cerr)
		}
	}
	return err
}

// isTimeout reports whether a read failed because deadline passed. Some
// PacketConn implementations return a plain error on timeout, so the
// deadline itself is checked too.
func isTimeout(err error, deadline time.Time) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return !deadline.IsZero() && !time.Now().Before(deadline)
}
