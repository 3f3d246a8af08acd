package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/exbotanical/seance/internal/logging"
	"github.com/exbotanical/seance/internal/protocol"
	"github.com/exbotanical/seance/internal/sitter"
	"github.com/exbotanical/seance/internal/transport/zmqrelay"
)

var errUsage = errors.New("usage: sitterctl [-config path] [-wait duration] <get|set|del> key[=value] ...")

// command is one parsed store operation.
type command struct {
	kind  protocol.Kind
	keys  []string
	pairs []protocol.Pair
}

func main() {
	logging.ConfigureRuntime()

	configPath := flag.String("config", "cmd/sitterctl/config.toml", "path to the sitter config")
	wait := flag.Duration("wait", 10*time.Second, "how long to wait for the medium")
	flag.Parse()

	cmd, err := parseCommand(flag.Args())
	if err != nil {
		fatalf("%v", err)
	}

	cfg, err := loadRuntimeConfig(*configPath)
	if err != nil {
		fatalf("%v", err)
	}

	if err := runCommand(cfg, cmd, *wait); err != nil {
		fatalf("%v", err)
	}
}

func parseCommand(args []string) (command, error) {
	if len(args) < 2 {
		return command{}, errUsage
	}
	verb := strings.ToLower(strings.TrimSpace(args[0]))
	rest := args[1:]

	switch verb {
	case "get":
		return command{kind: protocol.KindGet, keys: rest}, nil
	case "set":
		pairs := make([]protocol.Pair, 0, len(rest))
		for _, arg := range rest {
			key, value, ok := strings.Cut(arg, "=")
			if !ok || key == "" {
				return command{}, fmt.Errorf("set needs key=value arguments, got %q", arg)
			}
			pairs = append(pairs, protocol.Pair{Key: key, Value: value})
		}
		return command{kind: protocol.KindSet, pairs: pairs}, nil
	case "del", "delete":
		return command{kind: protocol.KindDelete, keys: rest}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q (supported: get, set, del)", verb)
	}
}

// runCommand connects the relay, waits for incorporation, issues the
// operation, and renders the per-key outcomes.
func runCommand(cfg runtimeConfig, cmd command, wait time.Duration) error {
	relay, err := zmqrelay.NewDealer(cfg.Relay)
	if err != nil {
		return fmt.Errorf("connect relay: %w", err)
	}
	defer relay.Close()

	connected := make(chan struct{}, 1)
	cfg.Sitter.Transport = relay
	cfg.Sitter.OnIncorporate = func(string) {
		select {
		case connected <- struct{}{}:
		default:
		}
	}

	client, err := sitter.NewSitterWithConfig(cfg.Sitter)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- client.Serve(ctx)
	}()
	stop := func() {
		cancel()
		<-done
	}

	select {
	case <-connected:
	case err := <-done:
		if err != nil {
			return err
		}
		return fmt.Errorf("sitter exited before incorporation")
	case <-time.After(wait):
		stop()
		return fmt.Errorf("timed out waiting for medium %q", cfg.Sitter.Medium)
	}

	session, err := client.Session()
	if err != nil {
		stop()
		return err
	}

	type result struct {
		entries []map[string]any
		err     error
	}
	results := make(chan result, 1)
	callback := func(entries []map[string]any, err error) {
		results <- result{entries: entries, err: err}
	}

	switch cmd.kind {
	case protocol.KindGet:
		session.Get(cmd.keys, callback)
	case protocol.KindSet:
		session.Set(cmd.pairs, callback)
	case protocol.KindDelete:
		session.Delete(cmd.keys, callback)
	}

	select {
	case res := <-results:
		stop()
		if res.err != nil {
			return res.err
		}
		printEntries(res.entries)
		return nil
	case <-time.After(wait):
		stop()
		return fmt.Errorf("timed out waiting for a response")
	}
}

// printEntries renders one line per key in batch order. Reads show the
// stored value or "(unset)"; writes and deletes show ok or failed.
func printEntries(entries []map[string]any) {
	for _, entry := range entries {
		for key, value := range entry {
			switch v := value.(type) {
			case nil:
				fmt.Printf("%s: (unset)\n", key)
			case bool:
				if v {
					fmt.Printf("%s: ok\n", key)
				} else {
					fmt.Printf("%s: failed\n", key)
				}
			default:
				fmt.Printf("%s: %v\n", key, v)
			}
		}
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "sitterctl: "+format+"\n", args...)
	os.Exit(1)
}
