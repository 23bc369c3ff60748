package apps

import (
	"errors"
	"fmt"
	"strconv"

	"egos/ulib"
)

// pong answers every message with "pong: <text>".
func pong(s *ulib.Sys, args []string) int {
	for {
		msg, err := s.Recv()
		if err != nil {
			s.Printf("pong: %v\n", err)
			return 1
		}
		err = s.Send(msg.Sender, "pong: "+msg.Text())
		if errors.Is(err, ulib.ErrNoReceiver) {
			continue
		}
		if err != nil {
			s.Printf("pong: %v\n", err)
			return 1
		}
	}
}

// ping PID [COUNT] sends COUNT messages to PID and prints each reply.
func ping(s *ulib.Sys, args []string) int {
	if len(args) < 2 {
		s.Printf("usage: ping PID [COUNT]\n")
		return 2
	}
	to, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		s.Printf("ping: bad pid %q\n", args[1])
		return 2
	}
	count := 3
	if len(args) > 2 {
		if count, err = strconv.Atoi(args[2]); err != nil || count < 0 {
			s.Printf("ping: bad count %q\n", args[2])
			return 2
		}
	}

	for i := 0; i < count; i++ {
		if err := s.Send(int32(to), fmt.Sprintf("ping %d from %d", i, s.PID())); err != nil {
			s.Printf("ping: %v\n", err)
			return 1
		}
		reply, err := s.Recv()
		if err != nil {
			s.Printf("ping: %v\n", err)
			return 1
		}
		s.Printf("ping: %d says %q\n", reply.Sender, reply.Text())
	}
	return 0
}
