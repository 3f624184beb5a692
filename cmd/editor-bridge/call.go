package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"editor-bridge/bridge"
	"editor-bridge/message"
	"editor-bridge/value"

	"github.com/spf13/cobra"
)

func newCallCmd(a *app) *cobra.Command {
	var (
		timeout   time.Duration
		canonical bool
	)
	cmd := &cobra.Command{
		Use:   "call SERVICE.METHOD [ARGS_JSON]",
		Short: "Invoke one editor method and print its result",
		Long: "Invoke one editor method. ARGS_JSON must be a JSON object; omit it for methods\n" +
			"without arguments. The result payload is printed on stdout. A failed call prints\n" +
			"its error kind and message and exits with 2 (invalid request), 3 (unavailable),\n" +
			"4 (timeout) or 5 (rejected by the editor).",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, method, ok := strings.Cut(args[0], ".")
			if !ok {
				return &exitError{code: exitInvalidRequest, err: fmt.Errorf("expected SERVICE.METHOD, got %q", args[0])}
			}
			callArgs := value.Null()
			if len(args) == 2 {
				v, err := value.Parse([]byte(args[1]))
				if err != nil {
					return &exitError{code: exitInvalidRequest, err: fmt.Errorf("arguments: %w", err)}
				}
				callArgs = v
			}
			if timeout <= 0 {
				timeout = a.cfg.CallTimeout
			}

			b, err := bridge.NewFromConfig(a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer b.Close()

			res := b.Invoke(cmd.Context(), service, method, callArgs, timeout)
			if ce := res.CallError(); ce != nil {
				return &exitError{code: exitCode(ce.Kind), err: ce}
			}
			return printPayload(cmd, res, canonical)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "how long to wait for the editor (default EDITOR_BRIDGE_CALL_TIMEOUT)")
	cmd.Flags().BoolVar(&canonical, "canonical", false, "print the payload in canonical JSON (sorted keys, no whitespace)")
	return cmd
}

func printPayload(cmd *cobra.Command, res message.Result, canonical bool) error {
	var out []byte
	if canonical {
		c, err := res.Canonical()
		if err != nil {
			return err
		}
		out = c
	} else {
		var buf bytes.Buffer
		if err := json.Indent(&buf, res.Payload(), "", "  "); err != nil {
			return err
		}
		out = buf.Bytes()
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
