/*
Runs the testbed game on the OpenGL renderer
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/anima-gl/engine"
	"github.com/spaghettifunk/anima-gl/engine/config"
	"github.com/spaghettifunk/anima-gl/engine/core"
	"github.com/spaghettifunk/anima-gl/testbed"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			core.LogFatal("%s", err)
		}
	}

	tb, err := testbed.NewTestGame()
	if err != nil {
		panic(err)
	}

	e, err := engine.New(tb.Game, cfg)
	if err != nil {
		panic(err)
	}

	if err := e.Initialize(); err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// a signal asks the loop to stop; the GL teardown has to happen on the main thread
	go func() {
		<-sigCh
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
	}()

	// run engine
	if err := e.Run(); err != nil {
		panic(err)
	}
	if err := e.Shutdown(); err != nil {
		panic(err)
	}
}
