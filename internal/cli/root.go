// Package cli implements the familytree command tree and interactive menu.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"familytree/internal/blob"
	"familytree/internal/config"
	"familytree/internal/core"
	"familytree/pkg/domain"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Streams are the standard streams of a command run.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

type app struct {
	streams   Streams
	overrides config.Overrides
	out       *printer
}

// session is a loaded service plus the resources to release afterwards.
type session struct {
	cfg    config.Config
	svc    *core.Service
	logger *zap.Logger
	close  func()
}

// NewRootCommand builds the familytree command tree.
func NewRootCommand(streams Streams) *cobra.Command {
	a := &app{streams: streams, out: newPrinter(streams.Out)}
	root := &cobra.Command{
		Use:           "familytree",
		Short:         "Record people and their family relationships",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&a.overrides.ConfigPath, "config", "", "config file (.yaml, .yml or .toml)")
	flags.StringVar(&a.overrides.DataPath, "data", "", "data file for the json and sqlite backends")
	flags.StringVar(&a.overrides.Storage, "storage", "", "snapshot backend: json, sqlite, postgres or memory")
	flags.StringVar(&a.overrides.LogLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		a.addCommand(),
		a.editCommand(),
		a.removeCommand(),
		a.linkCommand(),
		a.unlinkCommand(),
		a.listCommand(),
		a.showCommand(),
		a.treeCommand(),
		a.searchCommand(),
		a.checkCommand(),
		a.backupCommand(),
		a.backupsCommand(),
		a.restoreCommand(),
		a.serveCommand(),
		a.menuCommand(),
	)
	return root
}

// open resolves the config, builds the service and loads the snapshot. A
// load failure is returned; nothing is overwritten.
func (a *app) open(ctx context.Context, withBlobs bool, extra ...core.Option) (*session, error) {
	cfg, err := config.Load(a.overrides)
	if err != nil {
		return nil, err
	}
	logOpts := cfg.LogOptions()
	logOpts.Output = a.streams.Err
	logger, err := core.NewLogger(logOpts)
	if err != nil {
		return nil, err
	}
	var closers []func() error
	closeFn := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		_ = logger.Sync()
	}
	opts := []core.Option{core.WithLogger(core.NewZapLogger(logger))}
	if cfg.Trace.Path != "" {
		f, err := openSink(cfg.Trace.Path)
		if err != nil {
			closeFn()
			return nil, err
		}
		closers = append(closers, f.Close)
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}
	if cfg.Audit.Path != "" {
		f, err := openSink(cfg.Audit.Path)
		if err != nil {
			closeFn()
			return nil, err
		}
		audit := core.NewZapAuditRecorder(f)
		closers = append(closers, f.Close, audit.Sync)
		opts = append(opts, core.WithAuditRecorder(audit))
	}
	snapshots, err := core.OpenSnapshotStore(ctx, cfg.StorageOptions())
	if err != nil {
		closeFn()
		return nil, err
	}
	closers = append(closers, snapshots.Close)
	opts = append(opts, core.WithSnapshotStore(snapshots))
	if withBlobs {
		blobs, err := blob.Open(ctx, cfg.BlobOptions())
		if err != nil {
			closeFn()
			return nil, err
		}
		opts = append(opts, core.WithBlobStore(blobs))
	}
	svc := core.NewInMemoryService(nil, append(opts, extra...)...)
	if err := svc.Load(ctx); err != nil {
		closeFn()
		return nil, err
	}
	return &session{cfg: cfg, svc: svc, logger: logger, close: closeFn}, nil
}

// run opens a session, applies fn and, when save is set, writes the
// snapshot back.
func (a *app) run(cmd *cobra.Command, save bool, fn func(context.Context, *core.Service) error) error {
	ctx := cmdContext(cmd)
	s, err := a.open(ctx, false)
	if err != nil {
		return err
	}
	defer s.close()
	if err := fn(ctx, s.svc); err != nil {
		return err
	}
	if save {
		return s.svc.Save(ctx)
	}
	return nil
}

// openSink opens a JSON-lines file for appending, creating its directory.
func openSink(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func parseID(raw, field string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, domain.ValidationError{Field: field, Message: fmt.Sprintf("invalid id %q", raw)}
	}
	return id, nil
}
