// main.go: bootstrap — parse config, open the source, register devices, run
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Command echofan fans out the read stream of one underlying character
// device to N independently-readable synthetic character devices created
// via CUSE. This file only wires the pieces together; see the ring,
// source, session, and loop packages for the actual fan-out engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agilira/echofan/internal/config"
	"github.com/agilira/echofan/internal/device"
	"github.com/agilira/echofan/internal/device/cuse"
	"github.com/agilira/echofan/internal/logging"
	"github.com/agilira/echofan/internal/sourceio"
	"github.com/agilira/echofan/loop"
	"github.com/agilira/echofan/ring"
	"github.com/agilira/echofan/session"
	"github.com/agilira/echofan/source"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if cfg.Help {
		fmt.Print(config.Usage())
		fmt.Println(cuse.HelpText())
		return 0
	}

	rb, err := ring.NewRing(cfg.BufSize)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	src, err := sourceio.Open(cfg.Source)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return sourceio.Errno(err)
	}
	defer src.Close()

	reader := source.New(src, sourceio.IsTransient, logging.Default)
	framework := cuse.New()

	members := make([]loop.Member, 0, len(cfg.Names))
	for _, name := range cfg.Names {
		consumer := ring.NewConsumer(name)
		handler := session.New(rb, consumer, src)

		sess, err := framework.RegisterDevice(name, handler.Callbacks())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			teardown(members, framework, logging.Default)
			return 1
		}
		members = append(members, loop.Member{Consumer: consumer, Session: sess})
	}

	evLoop, err := loop.New(rb, members, src, reader, logging.Default)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		teardown(members, framework, logging.Default)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runErr := evLoop.Run(ctx)

	teardown(members, framework, logging.Default)
	if err := evLoop.Close(); err != nil {
		logging.Default.Errorf("closing event loop: %v", err)
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		return 1
	}
	return 0
}

// teardown releases every registered device's session, in creation
// order, then closes the framework.
func teardown(members []loop.Member, framework device.Framework, reporter *logging.Reporter) {
	for _, m := range members {
		if err := m.Session.Teardown(); err != nil {
			reporter.Errorf("tearing down device %q: %v", m.Consumer.Name(), err)
		}
	}
	if err := framework.Close(); err != nil {
		reporter.Errorf("closing device framework: %v", err)
	}
}
