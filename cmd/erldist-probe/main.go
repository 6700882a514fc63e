// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command erldist-probe dials a remote Erlang node, issues one RPC,
// and prints the decoded result — a small end-to-end exercise of the
// node client (component F) and the RPC DSL (component G).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/erldist/erldist"
	"github.com/erldist/erldist/bridge"
	"github.com/erldist/erldist/config"
	"github.com/erldist/erldist/internal/erllog"
	"github.com/erldist/erldist/term"
)

var exampleUsage = `
  erldist-probe --remote-node localhost:9999 --cookie secret --module erlang --function node
  erldist-probe --config $HOME/.erldist/config.toml --module erlang --function node --raw-json --args '[]'
`

func main() {
	cfg := config.Default()
	var cfgPath, module, function, rawArgsJSON string
	var rawJSON bool

	log := erllog.New(os.Stderr, erllog.ParseLevel(cfg.LogLevel))

	root := &cobra.Command{
		Use:     "erldist-probe",
		Short:   "Dial an Erlang node and issue one RPC",
		Example: exampleUsage,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = config.DefaultPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && config.FileExists(cfgFile) {
				fc, err := config.LoadFile(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := config.ApplyFile(&cfg, fc, changed); err != nil {
					return err
				}
			}
			if err := config.LoadEnv(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			erllog.SetLevel(&log, erllog.ParseLevel(cfg.LogLevel))

			if cfgFile != "" {
				watcher := config.NewWatcher(cfgFile, &log)
				watchCtx, cancel := context.WithCancel(context.Background())
				defer cancel()
				go watcher.Run(watchCtx)
			}

			local, err := erldist.NewNode(cfg.NodeName, cfg.Cookie)
			if err != nil {
				return err
			}

			policy := resolvePolicy(cfg)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				cancel()
			}()

			conn, err := erldist.Dial(ctx, local, cfg.RemoteNode,
				erldist.WithDialTimeout(cfg.DialTimeout),
				erldist.WithLogger(log),
				erldist.WithStringPolicy(policy.String),
				erldist.WithUnkeyedPolicy(policy.Unkeyed),
				erldist.WithKeyedPolicy(policy.Keyed),
				erldist.WithRegisterAs(cfg.RegisterAs),
			)
			if err != nil {
				return err
			}
			defer conn.Close()

			var callArgs term.Term = term.NewList()
			if rawJSON {
				callArgs, err = erldist.DebugArgsFromJSON(function, json.RawMessage(rawArgsJSON))
				if err != nil {
					return err
				}
			}

			rpcCtx, rpcCancel := context.WithTimeout(ctx, 30*time.Second)
			defer rpcCancel()

			reply, err := conn.RPC(rpcCtx, module, function, callArgs)
			if err != nil {
				return err
			}

			if rawJSON {
				out, err := erldist.DebugReplyToJSON(reply)
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}
			fmt.Println(reply.String())
			return nil
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.erldist/config.toml)")
	root.Flags().StringVar(&cfg.NodeName, "node-name", cfg.NodeName, "local node identity, e.g. prober@localhost")
	root.Flags().StringVar(&cfg.Cookie, "cookie", cfg.Cookie, "shared distribution cookie")
	root.Flags().StringVar(&cfg.RemoteNode, "remote-node", cfg.RemoteNode, "remote node address, host:port")
	root.Flags().StringVar(&cfg.RegisterAs, "register-as", cfg.RegisterAs, "register the local endpoint under this public name, for inbound REG_SEND")
	root.Flags().DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "dial timeout")
	root.Flags().StringVar(&cfg.StringPolicy, "string-policy", cfg.StringPolicy, "binary|atom|charlist")
	root.Flags().StringVar(&cfg.UnkeyedPolicy, "unkeyed-policy", cfg.UnkeyedPolicy, "list|tuple")
	root.Flags().StringVar(&cfg.KeyedPolicy, "keyed-policy", cfg.KeyedPolicy, "map|keyword_list")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")
	root.Flags().StringVar(&module, "module", "erlang", "RPC module name")
	root.Flags().StringVar(&function, "function", "node", "RPC function name")
	root.Flags().BoolVar(&rawJSON, "raw-json", false, "pass --args as a JSON array/object and print the reply as JSON")
	root.Flags().StringVar(&rawArgsJSON, "args", "[]", "JSON-encoded argument list, used with --raw-json")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("erldist-probe")
		os.Exit(exitCodeFor(err))
	}
}

func resolvePolicy(cfg config.Config) bridge.Policy {
	p := bridge.DefaultPolicy()
	switch cfg.StringPolicy {
	case "atom":
		p.String = bridge.StringAtom
	case "charlist":
		p.String = bridge.StringCharlist
	default:
		p.String = bridge.StringBinary
	}
	if cfg.UnkeyedPolicy == "tuple" {
		p.Unkeyed = bridge.UnkeyedTuple
	}
	if cfg.KeyedPolicy == "keyword_list" {
		p.Keyed = bridge.KeyedPolicy{Kind: bridge.KeyedKeywordList}
	}
	return p
}

// exitCodeFor maps spec.md §7's error kinds to a process exit code,
// so scripts can branch on failure category without parsing text.
func exitCodeFor(err error) int {
	var badRPC *erldist.BadRPC
	switch {
	case errors.As(err, &badRPC):
		return 3
	case errors.Is(err, erldist.ErrNoResponse):
		return 4
	case errors.Is(err, erldist.ErrNotConnected), errors.Is(err, erldist.ErrConnectionFailed):
		return 2
	default:
		return 1
	}
}
