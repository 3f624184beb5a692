package main

import (
	"fmt"
	"strings"

	"editor-bridge/contract"

	"github.com/spf13/cobra"
)

func newContractsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contracts [SERVICE]",
		Short: "List the editor methods in the contract catalogue",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := contract.Default()
			if a.cfg.ContractsFile != "" {
				var err error
				if catalog, err = contract.LoadFile(a.cfg.ContractsFile); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			found := false
			for _, svc := range catalog.Services() {
				if len(args) == 1 && svc.Name != args[0] {
					continue
				}
				found = true
				fmt.Fprintf(out, "%s\n", svc.Name)
				for _, m := range svc.Methods() {
					mode := "write"
					if m.ReadOnly {
						mode = "read-only"
					}
					fmt.Fprintf(out, "  %-24s %-9s %s\n", m.Name, mode, oneLine(m.Description))
					for _, p := range m.Preconditions {
						fmt.Fprintf(out, "      requires: %s\n", p)
					}
				}
			}
			if !found {
				return fmt.Errorf("%w %s", contract.ErrUnknownService, args[0])
			}
			return nil
		},
	}
	return cmd
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
