package cli

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"

	"familytree/internal/core"
	"familytree/internal/httpapi"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (a *app) backupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Copy the current tree into the blob store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmdContext(cmd)
			s, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			defer s.close()
			info, err := s.svc.Backup(ctx)
			if err != nil {
				return err
			}
			a.out.ok("Backup written: %s (%d bytes)", info.Key, info.Size)
			return nil
		},
	}
}

func (a *app) backupsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List stored backups, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmdContext(cmd)
			s, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			defer s.close()
			infos, err := s.svc.ListBackups(ctx)
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				a.out.info("No backups yet.")
				return nil
			}
			for _, info := range infos {
				a.out.line(a.out.heading, "%s", info.Key)
				a.out.info("  %d bytes, %s people", info.Size, info.Metadata["people"])
			}
			return nil
		},
	}
}

func (a *app) restoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore KEY",
		Short: "Replace the tree with a stored backup and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			s, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			defer s.close()
			if err := s.svc.Restore(ctx, args[0]); err != nil {
				return err
			}
			if err := s.svc.Save(ctx); err != nil {
				return err
			}
			a.out.ok("Restored %s into %s", args[0], s.svc.SnapshotLocation())
			return nil
		},
	}
}

func (a *app) serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tree over HTTP until interrupted, then save",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			recorder, err := core.NewPrometheusMetricsRecorder(reg)
			if err != nil {
				return err
			}
			s, err := a.open(ctx, true, core.WithMetricsRecorder(recorder))
			if err != nil {
				return err
			}
			defer s.close()

			if addr == "" {
				addr = s.cfg.HTTP.Addr
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			logger := core.NewZapLogger(s.logger)
			router := httpapi.NewRouter(s.svc,
				httpapi.WithLogger(logger),
				httpapi.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
			)
			a.out.ok("Listening on %s", ln.Addr())
			return a.serveThenSave(ctx, s.svc, func(ctx context.Context) error {
				return httpapi.Serve(ctx, ln, router)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

// serveThenSave runs serve and then saves the tree, even when serve failed,
// so that edits made over HTTP are not lost. Both errors are returned.
func (a *app) serveThenSave(ctx context.Context, svc *core.Service, serve func(context.Context) error) error {
	serveErr := serve(ctx)
	saveErr := svc.Save(context.WithoutCancel(ctx))
	if saveErr == nil {
		a.out.ok("Saved to %s", svc.SnapshotLocation())
	}
	return errors.Join(serveErr, saveErr)
}
