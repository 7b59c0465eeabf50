package mayus

import (
	"net"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// Phase is where a server-side session is in the exchange.
type Phase int

const (
	PhaseAwaitName Phase = iota // 等待文件名
	PhaseStreaming              // 逐行转换
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitName:
		return "await_name"
	case PhaseStreaming:
		return "streaming"
	}
	return "unknown"
}

// 会话结束的原因
const (
	EndTerminated = "terminated" // 收到空数据报
	EndExpired    = "expired"    // 空闲超时
	EndRestarted  = "restarted"  // 同一地址重新发送了文件名
	EndShutdown   = "shutdown"   // 服务端关闭
)

// SessionRecord is a snapshot of one peer's exchange.
type SessionRecord struct {
	Peer         string    `json:"peer"`
	Phase        string    `json:"phase"`
	InputName    string    `json:"input_name,omitempty"`
	OutputName   string    `json:"output_name,omitempty"`
	MirrorPath   string    `json:"mirror_path,omitempty"`
	Lines        uint64    `json:"lines"`
	Bytes        uint64    `json:"bytes"`
	DecodeErrors uint64    `json:"decode_errors"`
	CountChanged uint64    `json:"count_changed"`
	Retransmits  uint64    `json:"retransmits"`
	Started      time.Time `json:"started"`
	LastActive   time.Time `json:"last_active"`
	Ended        time.Time `json:"ended,omitempty"`
	EndReason    string    `json:"end_reason,omitempty"`
}

// session is the server state of one peer address. All fields are guarded by
// Server.mu.
type session struct {
	key   string
	peer  net.Addr
	phase Phase

	inputName  string
	outputName string
	mirror     *os.File
	mirrorPath string

	started    time.Time
	lastActive time.Time

	lines        uint64
	bytes        uint64
	decodeErrors uint64
	countChanged uint64
	retransmits  uint64

	// 最近一次回复，用于应答重传的请求
	lastKind  Kind
	lastSeq   uint32
	lastReply []byte

	limiter *rate.Limiter
	closed  bool
}

func newSession(peer net.Addr, now time.Time) *session {
	return &session{
		key:        peer.String(),
		peer:       peer,
		phase:      PhaseAwaitName,
		started:    now,
		lastActive: now,
	}
}

// isRetransmit reports whether f repeats the request answered last.
func (s *session) isRetransmit(f *Frame) bool {
	return len(s.lastReply) > 0 && s.lastKind == f.Kind && s.lastSeq == f.Seq
}

// isStale reports whether f was sent before the request answered last. Seqs
// wrap, so they are compared as serial numbers.
func (s *session) isStale(f *Frame) bool {
	if len(s.lastReply) == 0 {
		return false
	}
	d := int32(f.Seq - s.lastSeq)
	return d < 0 || (d == 0 && f.Kind != s.lastKind)
}

func (s *session) remember(req *Frame, reply []byte) {
	s.lastKind = req.Kind
	s.lastSeq = req.Seq
	s.lastReply = append(s.lastReply[:0], reply...)
}

// reset 开始新的文件传输
func (s *session) reset(now time.Time) error {
	err := s.closeMirror()
	s.phase = PhaseAwaitName
	s.inputName, s.outputName = "", ""
	s.lines, s.bytes, s.decodeErrors, s.countChanged, s.retransmits = 0, 0, 0, 0, 0
	s.lastReply = s.lastReply[:0]
	s.started = now
	return err
}

func (s *session) closeMirror() error {
	if s.mirror == nil {
		return nil
	}
	err := s.mirror.Close()
	s.mirror = nil
	return err
}

func (s *session) record() SessionRecord {
	return SessionRecord{
		Peer:         s.key,
		Phase:        s.phase.String(),
		InputName:    s.inputName,
		OutputName:   s.outputName,
		MirrorPath:   s.mirrorPath,
		Lines:        s.lines,
		Bytes:        s.bytes,
		DecodeErrors: s.decodeErrors,
		CountChanged: s.countChanged,
		Retransmits:  s.retransmits,
		Started:      s.started,
		LastActive:   s.lastActive,
	}
}
