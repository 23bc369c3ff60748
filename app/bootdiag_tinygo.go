//go:build tinygo && bootdebug

package app

import (
	"machine"
	"sync"
	"time"

	"egos/hal"
)

var (
	bootDiagMu   sync.Mutex
	bootDiagStep string
	bootDiagOnce sync.Once
)

// bootStep records the boot phase and, until the board is up, repeats it
// on the logger and USB CDC so a late-attached terminal still sees where
// boot stopped.
func bootStep(l hal.Logger, msg string) {
	bootDiagMu.Lock()
	bootDiagStep = msg
	bootDiagMu.Unlock()
	bootDiagOnce.Do(func() { go bootDiagLoop(l) })
}

func bootDiagLoop(l hal.Logger) {
	for {
		bootDiagMu.Lock()
		step := bootDiagStep
		bootDiagMu.Unlock()

		line := "bootdiag: " + step
		if l != nil {
			l.WriteLineString(line)
		}
		if usb := machine.USBCDC; usb != nil {
			_, _ = usb.Write([]byte(line + "\r\n"))
		}
		time.Sleep(250 * time.Millisecond)
	}
}
