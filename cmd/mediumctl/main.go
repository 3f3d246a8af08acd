package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/exbotanical/seance/internal/config"
	"github.com/exbotanical/seance/internal/logging"
	"github.com/exbotanical/seance/internal/medium"
	"github.com/exbotanical/seance/internal/transport/zmqrelay"
)

func main() {
	logging.ConfigureRuntime()

	configPath := flag.String("config", "cmd/mediumctl/config.toml", "path to the medium config")
	flag.Parse()

	cfg, err := loadRuntimeConfig(*configPath)
	if err != nil {
		fatalf("%v", err)
	}

	adapter, err := config.BuildAdapter(cfg.Store)
	if err != nil {
		fatalf("build store adapter: %v", err)
	}

	relay, err := zmqrelay.NewRouter(cfg.Relay)
	if err != nil {
		fatalf("bind relay: %v", err)
	}

	cfg.Service.Transport = relay
	cfg.Service.Adapter = adapter

	svc, err := medium.NewServiceWithConfig(cfg.Service)
	if err != nil {
		relay.Close()
		fatalf("assemble medium: %v", err)
	}

	// Close after Run so the teardown broadcast still flushes through
	// the relay outbox.
	runErr := svc.Run()
	relay.Close()
	if runErr != nil {
		fatalf("%v", runErr)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "mediumctl: "+format+"\n", args...)
	os.Exit(1)
}
