package kernel

import "egos/abi"

// send delivers the current process's message if the receiver is already
// waiting; otherwise the sender blocks. Nothing is ever queued.
func (k *Kernel) send(sc *abi.Syscall) {
	p := k.current()
	sc.Msg.Sender = p.PID
	receiver := sc.Msg.Receiver

	idx := k.lookup(receiver)
	if idx < 0 {
		sc.Retval = -1
		k.storeRetval(sc.Retval)
		return
	}

	k.storeMessage(&sc.Msg)

	r := &k.procs[idx]
	if r.Status != StatusWaitToRecv {
		p.Status = StatusWaitToSend
		p.ReceiverPID = receiver
	} else {
		staged := sc.Msg
		k.deliver(r.PID, &staged)
		r.Status = StatusRunnable
	}

	k.yield()
}

// recv takes the message of the first sender, in table order, blocked on
// the current process; otherwise the receiver blocks.
func (k *Kernel) recv(sc *abi.Syscall) {
	p := k.current()
	sc.Msg.Sender = abi.NoSender
	sc.Msg.Receiver = p.PID

	idx := -1
	for i := range k.procs {
		s := &k.procs[i]
		if s.Status == StatusWaitToSend && s.ReceiverPID == p.PID {
			idx = i
			break
		}
	}

	if idx < 0 {
		k.storeMessage(&sc.Msg)
		p.Status = StatusWaitToRecv
	} else {
		s := &k.procs[idx]
		staged := k.collect(s.PID)
		staged.Sender = s.PID
		staged.Receiver = p.PID
		k.storeMessage(&staged)
		s.Status = StatusRunnable
	}

	k.yield()
}

// deliver writes m into pid's mailbox.
func (k *Kernel) deliver(pid int32, m *abi.Message) {
	restore := k.mapAs(pid)
	defer restore()
	k.storeMessage(m)
}

// collect reads the message waiting in pid's mailbox.
func (k *Kernel) collect(pid int32) abi.Message {
	restore := k.mapAs(pid)
	defer restore()
	return k.loadMessage()
}
