//go:build !(tinygo && bootdebug)

package app

import "egos/hal"

func bootStep(l hal.Logger, msg string) {
	logf(l, "[INFO] boot: %s", msg)
}
