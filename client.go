package mayus

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/juju/ratelimit"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Result summarises one Run.
type Result struct {
	InputPath    string
	OutputPath   string
	Lines        int
	Bytes        int
	FailedLines  int // 服务端无法转换, 原样写入
	CountChanged int // 大写后字符数变化的行
	Retransmits  int
	Elapsed      time.Duration
}

// Client sends one file line by line to a server and writes the uppercased
// copy it receives back.
type Client struct {
	conn    net.PacketConn
	ownConn bool
	remote  net.Addr
	cfg     *ClientConfig
	bucket  *ratelimit.Bucket
	l       *zap.SugaredLogger

	seq         uint32
	retransmits int
	txBuf       []byte
	rcvBuf      []byte
}

// Dial binds cfg.Listen and returns a Client that talks to raddr and owns
// the socket.
func Dial(raddr string, cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		cfg = new(ClientConfig)
	}
	cfg.Remote = raddr
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	udpaddr, err := net.ResolveUDPAddr("udp", raddr)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	network := "udp4"
	if udpaddr.IP.To4() == nil {
		network = "udp"
	}
	laddr, err := net.ResolveUDPAddr(network, cfg.Listen)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "listen %s: %v", cfg.Listen, err)
	}
	if err := applyDSCP(conn, cfg.DSCP); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "set dscp %d", cfg.DSCP)
	}
	c := NewClient(conn, udpaddr, cfg)
	c.ownConn = true
	return c, nil
}

// NewClient wraps a caller-provided connection. Close leaves conn open.
func NewClient(conn net.PacketConn, raddr net.Addr, cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = new(ClientConfig)
	}
	cfg.Adjust()
	c := &Client{
		conn:   conn,
		remote: raddr,
		cfg:    cfg,
		l:      zap.S().Named("client"),
		txBuf:  make([]byte, 0, MaxDatagramSize),
		rcvBuf: make([]byte, MaxDatagramSize),
	}
	c.seq = initialSeq(rand.Reader)
	if cfg.LinesPerSecond > 0 {
		c.bucket = ratelimit.NewBucketWithRate(cfg.LinesPerSecond, 1)
	}
	return c
}

// initialSeq draws a random starting seq so a new client is not mistaken for
// an unfinished session on the same address. It falls back to the clock when
// r fails.
func initialSeq(r io.Reader) uint32 {
	var seq uint32
	if err := binary.Read(r, binary.LittleEndian, &seq); err != nil {
		zap.S().Named("client").Warnw("random seq unavailable, using clock", "err", err)
		return uint32(time.Now().UnixNano())
	}
	return seq
}

// LocalAddr returns the local network address.
func (c *Client) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// RemoteAddr returns the server address.
func (c *Client) RemoteAddr() net.Addr { return c.remote }

// Close closes the socket if Dial created it.
func (c *Client) Close() error {
	if c.ownConn {
		return errors.WithStack(c.conn.Close())
	}
	return nil
}

// Run transfers the file at inputPath and writes the server's answer into
// cfg.OutputDir under the name the server assigns.
func (c *Client) Run(ctx context.Context, inputPath string) (res *Result, err error) {
	start := time.Now()
	res = &Result{InputPath: inputPath}
	c.retransmits = 0
	defer func() { res.Elapsed = time.Since(start) }()

	in, err := os.Open(inputPath)
	if err != nil {
		return res, errors.Wrapf(ErrFileOpen, "input %s: %v", inputPath, err)
	}
	defer in.Close()

	name := filepath.Base(inputPath)
	reply, err := c.roundTrip(ctx, KindName, []byte(name), KindAssign)
	if err != nil {
		return res, err
	}
	if reply.Kind == KindError {
		return res, errors.Wrapf(ErrProtocol, "server refused %s: %s", name, reply.Payload)
	}
	outName := string(reply.Payload)
	if outName == "" || outName == "." || outName == ".." || filepath.Base(outName) != outName {
		return res, errors.Wrapf(ErrProtocol, "server assigned unusable output name %q", outName)
	}
	res.OutputPath = filepath.Join(c.cfg.OutputDir, outName)
	if err := checkDistinct(inputPath, res.OutputPath); err != nil {
		return res, err
	}

	out, err := os.Create(res.OutputPath)
	if err != nil {
		return res, errors.Wrapf(ErrFileOpen, "output %s: %v", res.OutputPath, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(ErrFileOpen, "close %s: %v", res.OutputPath, cerr)
		}
	}()
	c.l.Infow("transfer started", "input", inputPath, "output", res.OutputPath, "remote", c.remote.String())

	r := bufio.NewReader(in)
	w := bufio.NewWriter(out)
	for lineNo := 1; ; lineNo++ {
		line, rerr := r.ReadBytes('\n')
		if rerr != nil && rerr != io.EOF {
			return res, errors.Wrapf(ErrFileOpen, "read %s line %d: %v", inputPath, lineNo, rerr)
		}
		if len(line) == 0 {
			break
		}
		if len(line) > MaxPayloadSize {
			return res, errors.Wrapf(ErrLineTooLong, "%s line %d: %d bytes, max %d",
				inputPath, lineNo, len(line), MaxPayloadSize)
		}
		if err := c.pace(ctx); err != nil {
			return res, err
		}

		reply, err := c.roundTrip(ctx, KindLine, line, KindUpper)
		if err != nil {
			return res, err
		}
		text := reply.Payload
		if reply.Kind == KindError {
			res.FailedLines++
			text = line
			c.l.Warnw("line kept unchanged", "line", lineNo, "reason", string(reply.Payload))
		} else if reply.Flags&FlagCountChanged != 0 {
			res.CountChanged++
			c.l.Debugw("character count changed", "line", lineNo)
		}
		if _, err := w.Write(text); err != nil {
			return res, errors.Wrapf(ErrFileOpen, "write %s: %v", res.OutputPath, err)
		}
		res.Lines++
		res.Bytes += len(line)
		if rerr == io.EOF {
			break
		}
	}
	if err := w.Flush(); err != nil {
		return res, errors.Wrapf(ErrFileOpen, "write %s: %v", res.OutputPath, err)
	}
	res.Retransmits = c.retransmits

	if err := sendTerminator(c.conn, c.remote); err != nil {
		return res, err
	}
	c.l.Infow("transfer done", "output", res.OutputPath, "lines", res.Lines,
		"failed", res.FailedLines, "retransmits", res.Retransmits)
	return res, nil
}

// roundTrip sends one request and waits for the reply carrying its seq. A
// KindError reply is returned as a frame, not as an error.
func (c *Client) roundTrip(ctx context.Context, kind Kind, payload []byte, want Kind) (*Frame, error) {
	c.seq++
	req := &Frame{Kind: kind, Seq: c.seq, Payload: payload}
	buf, err := AppendFrame(c.txBuf[:0], req)
	if err != nil {
		return nil, err
	}
	c.txBuf = buf
	if err := writeDatagram(c.conn, buf, c.remote); err != nil {
		return nil, err
	}

	var bo backoff.BackOff
	if c.cfg.ReplyTimeout > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = c.cfg.BackoffInitial
		eb.MaxInterval = c.cfg.BackoffMax
		eb.MaxElapsedTime = 0
		bo = backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.cfg.MaxRetries)), ctx)
		bo.Reset()
	}

	for attempt := 0; ; attempt++ {
		reply, err := c.await(ctx, req.Seq, want)
		if err == nil {
			return reply, nil
		}
		if !errors.Is(err, ErrTimeout) {
			return nil, err
		}
		d := bo.NextBackOff()
		if d == backoff.Stop {
			if ctx.Err() != nil {
				return nil, errors.WithStack(ctx.Err())
			}
			return nil, errors.Wrapf(ErrTimeout, "no reply to %s seq %d after %d retries", kind, req.Seq, attempt)
		}
		if err := sleepContext(ctx, d); err != nil {
			return nil, err
		}
		c.l.Debugw("retransmit", "kind", kind.String(), "seq", req.Seq, "attempt", attempt+1)
		c.retransmits++
		DefaultSnmp.Retransmits.Inc()
		if err := writeDatagram(c.conn, c.txBuf, c.remote); err != nil {
			return nil, err
		}
	}
}

// await reads until a frame answering seq arrives. Frames from other
// addresses, stale replies and undecodable datagrams are skipped.
func (c *Client) await(ctx context.Context, seq uint32, want Kind) (*Frame, error) {
	var deadline time.Time
	if c.cfg.ReplyTimeout > 0 {
		deadline = time.Now().Add(c.cfg.ReplyTimeout)
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}
		rd := time.Now().Add(pollInterval)
		if !deadline.IsZero() && deadline.Before(rd) {
			rd = deadline
		}
		_ = c.conn.SetReadDeadline(rd)
		n, from, err := c.conn.ReadFrom(c.rcvBuf)
		if err != nil {
			if isTimeout(err, rd) {
				if !deadline.IsZero() && !time.Now().Before(deadline) {
					return nil, errors.WithStack(ErrTimeout)
				}
				continue
			}
			return nil, errors.Wrapf(ErrTransport, "read: %v", err)
		}
		DefaultSnmp.InPkts.Inc()
		DefaultSnmp.InBytes.Add(uint64(n))

		if !sameAddr(from, c.remote) {
			DefaultSnmp.DroppedPkts.Inc()
			c.l.Debugw("ignore datagram from unexpected peer", "from", from.String())
			continue
		}
		f, err := DecodeFrame(c.rcvBuf[:n])
		if err != nil {
			DefaultSnmp.DroppedPkts.Inc()
			c.l.Warnw("drop malformed reply", "err", err)
			continue
		}
		if f.Seq != seq {
			DefaultSnmp.DroppedPkts.Inc()
			c.l.Debugw("drop stale reply", "seq", f.Seq, "want", seq)
			continue
		}
		if f.Kind != want && f.Kind != KindError {
			return nil, errors.Wrapf(ErrProtocol, "expected %s reply to seq %d, got %s", want, seq, f.Kind)
		}
		f.Payload = append([]byte(nil), f.Payload...)
		return f, nil
	}
}

func (c *Client) pace(ctx context.Context) error {
	if c.bucket == nil {
		return nil
	}
	return sleepContext(ctx, c.bucket.Take(1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}

// checkDistinct refuses to truncate the input while writing the output.
func checkDistinct(inputPath, outputPath string) error {
	ia, err1 := filepath.Abs(inputPath)
	oa, err2 := filepath.Abs(outputPath)
	if err1 == nil && err2 == nil && ia == oa {
		return errors.Wrapf(ErrFileOpen, "output %s would overwrite the input", outputPath)
	}
	is, err := os.Stat(inputPath)
	if err != nil {
		return nil
	}
	if ost, err := os.Stat(outputPath); err == nil && os.SameFile(is, ost) {
		return errors.Wrapf(ErrFileOpen, "output %s would overwrite the input", outputPath)
	}
	return nil
}

func sameAddr(a, b net.Addr) bool {
	ua, ok1 := a.(*net.UDPAddr)
	ub, ok2 := b.(*net.UDPAddr)
	if ok1 && ok2 {
		return ua.Port == ub.Port && ua.IP.Equal(ub.IP)
	}
	return a.String() == b.String()
}
