package apps

import (
	"strconv"
	"strings"

	"egos/ulib"
)

func hello(s *ulib.Sys, args []string) int {
	who := "world"
	if len(args) > 1 {
		who = strings.Join(args[1:], " ")
	}
	s.Printf("hello, %s (pid %d)\n", who, s.PID())
	return 0
}

const spinReport = 1 << 16

// spin [STEPS] computes for STEPS instructions, or until ctrl+c when
// STEPS is 0 or missing.
func spin(s *ulib.Sys, args []string) int {
	var limit uint64
	if len(args) > 1 {
		n, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			s.Printf("spin: bad step count %q\n", args[1])
			return 2
		}
		limit = n
	}

	for n := uint64(1); limit == 0 || n <= limit; n++ {
		s.Step()
		if n%spinReport == 0 {
			s.Printf("spin %d: %d steps\n", s.PID(), n)
		}
	}
	s.Printf("spin %d: done\n", s.PID())
	return 0
}
