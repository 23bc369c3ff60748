//go:build tinygo

package main

import (
	"egos/app"
	"egos/hal"
)

func main() {
	app.Run(hal.New())
}
