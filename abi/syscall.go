package abi

import (
	"bytes"
	"encoding/binary"
)

// SyscallType selects the operation requested through the mailbox.
type SyscallType int32

const (
	SysUnused SyscallType = iota
	SysRecv
	SysSend
)

func (t SyscallType) String() string {
	switch t {
	case SysUnused:
		return "unused"
	case SysRecv:
		return "recv"
	case SysSend:
		return "send"
	default:
		return "unknown"
	}
}

// Mailbox layout, relative to SyscallArg.
const (
	TypeOffset   = 0
	RetvalOffset = 4
	MsgOffset    = 8

	// MsgLen is the fixed size of a message: sender, receiver, content.
	MsgLen = 1024
	// MsgContentLen is the opaque payload carried by a message.
	MsgContentLen = MsgLen - 8

	// SyscallLen is the size of the whole mailbox.
	SyscallLen = MsgOffset + MsgLen
)

// Message is the fixed-size body exchanged by send and recv.
type Message struct {
	Sender   int32
	Receiver int32
	Content  [MsgContentLen]byte
}

// Syscall is the mailbox a process fills before raising a software interrupt.
type Syscall struct {
	Type   SyscallType
	Retval int32
	Msg    Message
}

// Encode writes m into b, which must hold at least MsgLen bytes.
func (m *Message) Encode(b []byte) {
	_ = b[MsgLen-1]
	binary.LittleEndian.PutUint32(b[0:4], uint32(m.Sender))
	binary.LittleEndian.PutUint32(b[4:8], uint32(m.Receiver))
	copy(b[8:MsgLen], m.Content[:])
}

// DecodeMessage reads a message from b, which must hold at least MsgLen bytes.
func DecodeMessage(b []byte) Message {
	_ = b[MsgLen-1]
	var m Message
	m.Sender = int32(binary.LittleEndian.Uint32(b[0:4]))
	m.Receiver = int32(binary.LittleEndian.Uint32(b[4:8]))
	copy(m.Content[:], b[8:MsgLen])
	return m
}

// SetText stores s as a NUL-terminated string, truncating if needed.
func (m *Message) SetText(s string) {
	m.Content = [MsgContentLen]byte{}
	copy(m.Content[:MsgContentLen-1], s)
}

// Text returns the content up to the first NUL byte.
func (m *Message) Text() string {
	if i := bytes.IndexByte(m.Content[:], 0); i >= 0 {
		return string(m.Content[:i])
	}
	return string(m.Content[:])
}

// Encode writes the mailbox into b, which must hold at least SyscallLen bytes.
func (s *Syscall) Encode(b []byte) {
	_ = b[SyscallLen-1]
	binary.LittleEndian.PutUint32(b[TypeOffset:], uint32(s.Type))
	binary.LittleEndian.PutUint32(b[RetvalOffset:], uint32(s.Retval))
	s.Msg.Encode(b[MsgOffset:])
}

// DecodeSyscall reads a mailbox from b, which must hold at least SyscallLen bytes.
func DecodeSyscall(b []byte) Syscall {
	_ = b[SyscallLen-1]
	return Syscall{
		Type:   SyscallType(binary.LittleEndian.Uint32(b[TypeOffset:])),
		Retval: int32(binary.LittleEndian.Uint32(b[RetvalOffset:])),
		Msg:    DecodeMessage(b[MsgOffset:]),
	}
}
