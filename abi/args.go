package abi

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// Argument block layout at AppsArg.
const (
	ArgMax = 16
	ArgLen = 32

	// ArgvOffset is where argv starts; main receives AppsArg+ArgvOffset.
	ArgvOffset = 4
	// ArgsLen is the size of the whole block.
	ArgsLen = ArgvOffset + ArgMax*ArgLen
)

var (
	ErrTooManyArgs = errors.New("too many arguments")
	ErrArgTooLong  = errors.New("argument too long")
)

// EncodeArgs lays out argc and argv the way main expects to find them.
func EncodeArgs(args []string) ([]byte, error) {
	if len(args) > ArgMax {
		return nil, ErrTooManyArgs
	}
	b := make([]byte, ArgsLen)
	binary.LittleEndian.PutUint32(b[0:4], uint32(len(args)))
	for i, a := range args {
		if len(a) >= ArgLen {
			return nil, ErrArgTooLong
		}
		copy(b[ArgvOffset+i*ArgLen:], a)
	}
	return b, nil
}

// DecodeArgv reads argc entries from an argv block (the bytes at argv).
func DecodeArgv(b []byte, argc int32) []string {
	if argc < 0 {
		argc = 0
	}
	if argc > ArgMax {
		argc = ArgMax
	}
	args := make([]string, 0, argc)
	for i := 0; i < int(argc); i++ {
		off := i * ArgLen
		if off+ArgLen > len(b) {
			break
		}
		slot := b[off : off+ArgLen]
		if n := bytes.IndexByte(slot, 0); n >= 0 {
			slot = slot[:n]
		}
		args = append(args, string(slot))
	}
	return args
}
