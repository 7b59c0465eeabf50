package mayus

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

const (
	// MaxDatagramSize 单个数据报的最大字节数
	MaxDatagramSize = 2056

	// FrameVersion 当前线上格式版本
	FrameVersion byte = 1

	// 1B version + 1B kind + 1B flags + 4B seq
	frameHeaderSize = 7

	// MaxPayloadSize 去掉帧头和结尾NUL之后的最大负载
	MaxPayloadSize = MaxDatagramSize - frameHeaderSize - 1
)

// Kind identifies what a frame carries.
type Kind byte

const (
	KindName   Kind = 'N' // client -> server, 输入文件名
	KindAssign Kind = 'A' // server -> client, 输出文件名
	KindLine   Kind = 'L' // client -> server, 一行文本(含换行)
	KindUpper  Kind = 'U' // server -> client, 大写后的行
	KindError  Kind = 'E' // server -> client, 该请求失败的原因
)

func (k Kind) String() string {
	switch k {
	case KindName:
		return "name"
	case KindAssign:
		return "assign"
	case KindLine:
		return "line"
	case KindUpper:
		return "upper"
	case KindError:
		return "error"
	}
	return fmt.Sprintf("kind(%#x)", byte(k))
}

func (k Kind) valid() bool {
	switch k {
	case KindName, KindAssign, KindLine, KindUpper, KindError:
		return true
	}
	return false
}

// FlagCountChanged marks an upper reply whose character count differs from
// the request line.
const FlagCountChanged byte = 1 << 0

// Frame is one datagram of the exchange. A zero-length datagram is not a
// frame: it ends the sender's session.
//
// Wire layout:
//
//	[1B version][1B kind][1B flags][4B seq][payload...][0x00]
type Frame struct {
	Kind    Kind
	Flags   byte
	Seq     uint32
	Payload []byte
}

// Size returns the encoded length of f.
func (f *Frame) Size() int {
	return frameHeaderSize + len(f.Payload) + 1
}

// AppendFrame encodes f onto buf.
func AppendFrame(buf []byte, f *Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return buf, errors.Wrapf(ErrLineTooLong, "payload %d bytes, max %d", len(f.Payload), MaxPayloadSize)
	}
	var hdr [frameHeaderSize]byte
	hdr[0] = FrameVersion
	hdr[1] = byte(f.Kind)
	hdr[2] = f.Flags
	binary.BigEndian.PutUint32(hdr[3:], f.Seq)
	buf = append(buf, hdr[:]...)
	buf = append(buf, f.Payload...)
	return append(buf, 0), nil
}

// DecodeFrame parses one datagram. The returned payload aliases b.
func DecodeFrame(b []byte) (*Frame, error) {
	if len(b) < frameHeaderSize+1 {
		return nil, errors.Wrapf(ErrProtocol, "short frame: %d bytes", len(b))
	}
	if b[0] != FrameVersion {
		return nil, errors.Wrapf(ErrProtocol, "unsupported version %d", b[0])
	}
	k := Kind(b[1])
	if !k.valid() {
		return nil, errors.Wrapf(ErrProtocol, "unknown %s", k)
	}
	if b[len(b)-1] != 0 {
		return nil, errors.Wrap(ErrProtocol, "frame is not NUL-terminated")
	}
	return &Frame{
		Kind:    k,
		Flags:   b[2],
		Seq:     binary.BigEndian.Uint32(b[3:frameHeaderSize]),
		Payload: b[frameHeaderSize : len(b)-1],
	}, nil
}
