//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"egos/app"
	"egos/hal"
	"egos/loader"
)

func main() {
	var hcfg hal.HeadlessConfig
	cfg := app.Config{}
	var boot string
	flag.BoolVar(&hcfg.Enabled, "headless", false, "Run without a window.")
	flag.IntVar(&hcfg.Hz, "hz", 60, "Tick rate in headless mode.")
	flag.Uint64Var(&hcfg.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")
	flag.Uint64Var(&cfg.Quantum, "quantum", app.DefaultQuantum, "Time slice in ticks.")
	flag.StringVar(&boot, "boot", "", "Boot manifest (YAML); empty uses the built-in one.")
	flag.BoolVar(&cfg.Trace, "trace", false, "Log every scheduling decision.")
	flag.BoolVar(&cfg.ExitOnHalt, "exit-on-halt", false, "Exit when the kernel halts.")
	flag.Parse()

	if boot != "" {
		m, err := loader.ReadFile(boot)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		cfg.Manifest = m
	}

	if hcfg.Enabled {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := hal.RunHeadless(ctx, func(h hal.HAL) func() error {
			return app.NewWithConfig(h, cfg)
		}, hcfg); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := hal.RunWindow(func(h hal.HAL) func() error {
		return app.NewWithConfig(h, cfg)
	}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
