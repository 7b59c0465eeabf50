package mayus

import "github.com/pkg/errors"

var (
	// ErrFileOpen 输入或输出文件无法打开
	ErrFileOpen = errors.New("file open")
	// ErrTransport 发送或接收数据报失败
	ErrTransport = errors.New("transport")
	// ErrDecode 行内有非法的多字节序列
	ErrDecode = errors.New("decode")
	// ErrEncode 大写后的字符无法用目标字符集编码
	ErrEncode = errors.New("encode")
	// ErrLineTooLong 一行放不进一个数据报
	ErrLineTooLong = errors.New("line too long")
	// ErrTimeout 重传次数耗尽仍未收到回复
	ErrTimeout = errors.New("timeout")
	// ErrProtocol 收到了不符合当前状态的帧
	ErrProtocol = errors.New("protocol")
	// ErrClosed 服务端已经关闭
	ErrClosed = errors.New("closed")

	errInvalidOperation = errors.New("invalid operation")
)

// lineFailure reports whether err only affects the current line.
func lineFailure(err error) bool {
	return errors.Is(err, ErrDecode) || errors.Is(err, ErrEncode) || errors.Is(err, ErrLineTooLong)
}
