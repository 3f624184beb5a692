package main

import (
	"context"
	"errors"
	"net"
	"time"

	"editor-bridge/editorsim"
	"editor-bridge/registry"
	"editor-bridge/server"

	"github.com/spf13/cobra"
)

func newStubCmd(a *app) *cobra.Command {
	var (
		ttl    int64
		weight int
	)
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serve the simulated editor services on EDITOR_BRIDGE_ADDR",
		Long: "Serve the simulated editor services until interrupted. With\n" +
			"EDITOR_BRIDGE_ETCD_ENDPOINTS set the endpoint announces itself under\n" +
			"EDITOR_BRIDGE_PROJECT so bridges using discovery can find it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := server.NewServer(a.logger)
			if err := editorsim.NewEditor().Register(srv); err != nil {
				return err
			}

			l, err := net.Listen("tcp", a.cfg.Addr)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if a.cfg.UseDiscovery() {
				reg, err := registry.NewEtcdRegistry(a.cfg.EtcdEndpoints, a.cfg.DialTimeout)
				if err != nil {
					l.Close()
					return err
				}
				defer reg.Close()
				inst := registry.EditorInstance{
					Addr:    l.Addr().String(),
					Project: a.cfg.Project,
					Weight:  weight,
					Version: "editorsim",
				}
				announceCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err = srv.Announce(announceCtx, reg, inst, ttl)
				cancel()
				if err != nil {
					l.Close()
					return err
				}
			}

			served := make(chan error, 1)
			go func() { served <- srv.ServeListener(l) }()

			for _, m := range srv.Methods() {
				a.logger.Debug("serving", "method", m)
			}

			select {
			case err := <-served:
				return err
			case <-ctx.Done():
			}
			a.logger.Info("shutting down")
			if err := srv.Shutdown(5 * time.Second); err != nil {
				return err
			}
			if err := <-served; err != nil && !errors.Is(err, net.ErrClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&ttl, "ttl", 10, "discovery lease TTL in seconds")
	cmd.Flags().IntVar(&weight, "weight", 1, "weight announced for weighted_random balancing")
	return cmd
}
