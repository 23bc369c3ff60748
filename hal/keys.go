package hal

// uartEvent returns the key event for a byte read from a serial console.
// A terminal sends ctrl+c as the ETX byte; everything else is dropped.
func uartEvent(b byte) (KeyEvent, bool) {
	if rune(b) != CtrlC {
		return KeyEvent{}, false
	}
	return KeyEvent{Press: true, Rune: CtrlC}, true
}
