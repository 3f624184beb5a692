package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"editor-bridge/config"
	"editor-bridge/logging"
	"editor-bridge/message"
	"editor-bridge/telemetry"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Exit codes of a failed call, one per error kind.
const (
	exitInvalidRequest = 2
	exitUnavailable    = 3
	exitTimeout        = 4
	exitRejected       = 5
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(kind message.ErrorKind) int {
	switch kind {
	case message.KindInvalidRequest:
		return exitInvalidRequest
	case message.KindUnavailable:
		return exitUnavailable
	case message.KindTimeout:
		return exitTimeout
	case message.KindRemoteRejected:
		return exitRejected
	}
	return 1
}

// app is the state shared by subcommands, filled in before any of them runs.
type app struct {
	cfg      config.Config
	logger   *log.Logger
	shutdown func(context.Context) error

	addr     string
	codec    string
	logLevel string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "editor-bridge",
		Short:         "Call editor services over the command bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.addr, "addr", "", "editor endpoint address (overrides EDITOR_BRIDGE_ADDR)")
	flags.StringVar(&a.codec, "codec", "", "body codec: json or binary (overrides EDITOR_BRIDGE_CODEC)")
	flags.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides EDITOR_BRIDGE_LOG_LEVEL)")

	root.AddCommand(newCallCmd(a), newStubCmd(a), newContractsCmd(a))
	// PersistentPostRunE does not run after a failed RunE; telemetry is flushed here instead.
	for _, sub := range root.Commands() {
		run := sub.RunE
		sub.RunE = func(cmd *cobra.Command, args []string) error {
			return errors.Join(run(cmd, args), a.close())
		}
	}
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.addr != "" {
		cfg.Addr = a.addr
		cfg.EtcdEndpoints = nil
	}
	if a.codec != "" {
		cfg.Codec = a.codec
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger

	a.shutdown, err = telemetry.Setup(cmd.Context(), cfg.OTLPEndpoint, "editor-bridge")
	if err != nil {
		return err
	}
	return nil
}

// close flushes telemetry. Spans still buffered after 5s are dropped.
func (a *app) close() error {
	if a.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.shutdown(ctx)
}
