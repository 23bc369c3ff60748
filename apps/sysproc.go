package apps

import "egos/ulib"

// sysproc is the process server. It runs as a kernel process and collects
// exit notices.
func sysproc(s *ulib.Sys, args []string) int {
	for {
		msg, err := s.Recv()
		if err != nil {
			s.Printf("[CRITICAL] sysproc: %v\n", err)
			return 1
		}
		if status, ok := ulib.ParseExitNotice(msg.Text()); ok {
			s.Printf("[INFO] process %d exited, status %d\n", msg.Sender, status)
			continue
		}
		s.Printf("[INFO] sysproc: unexpected message from %d: %q\n", msg.Sender, msg.Text())
	}
}

// idle keeps one process runnable so the scheduler always has a pick.
func idle(s *ulib.Sys, args []string) int {
	for {
		s.Step()
	}
}
