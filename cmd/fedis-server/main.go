// Command fedis-server runs the fedis key-value server: a RESP-speaking
// TCP listener backed by an in-memory keyspace, an append-only log, and
// periodic snapshots.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fedis/internal/aol"
	"fedis/internal/command"
	"fedis/internal/config"
	"fedis/internal/metrics"
	"fedis/internal/server"
	"fedis/internal/snapshot"
	"fedis/internal/stats"
	"fedis/internal/store"
)

// metricsProvider adapts the store/stats/AOL collaborators to the
// metrics.Provider interface without any of them depending on the
// metrics package.
type metricsProvider struct {
	store *store.Store
	stats *stats.Stats
	w     *aol.Writer
}

func (p *metricsProvider) MetricsSnapshot() metrics.Snapshot {
	s := p.stats.Snapshot()
	save := p.store.SaveStats()

	snap := metrics.Snapshot{
		ConnectedClients:  s.ConnectedClients,
		TotalConnections:  s.TotalConnections,
		TotalCommands:     s.TotalCommands,
		OpsPerSec:         s.OpsPerSec,
		KeyCount:          int64(p.store.DBSize()),
		ExpiringKeyCount:  int64(p.store.ExpiringKeyCount()),
		ApproxMemoryBytes: p.store.ApproxMemoryBytes(),
		SaveCount:         save.SaveCount,
		SaveFailures:      save.SaveFailures,
		SaveInProgress:    save.InProgress,
		RewriteInProgress: p.store.RewriteInProgress(),
	}
	for _, c := range s.Commands {
		snap.Commands = append(snap.Commands, metrics.CommandStat{Name: c.Name, Calls: c.Calls, Micros: c.Micros})
	}
	if p.w != nil {
		ws := p.w.Stats()
		snap.RewriteCount = ws.RewriteCount
		snap.RewriteFailures = ws.RewriteFailures
	}
	return snap
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	root := &cobra.Command{
		Use:   "fedis-server [host:port|redis://...]",
		Short: "fedis key-value server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, log)
		},
	}
	config.BindFlags(root)

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("fedis-server: fatal")
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string, log *logrus.Logger) error {
	cfg, err := config.FromFlags(cmd, args)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	authTable, err := cfg.BuildAuthTable()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var w *aol.Writer
	if cfg.AOLPath != "" {
		w, err = aol.NewWriter(cfg.AOLPath, cfg.Fsync, log)
		if err != nil {
			return fmt.Errorf("aol: %w", err)
		}
		defer w.Close()
		log.WithFields(logrus.Fields{"path": cfg.AOLPath, "fsync": cfg.Fsync}).Info("fedis-server: AOL writer ready")
	}

	st := store.New(w, cfg.SnapshotPath, log)

	if cfg.SnapshotPath != "" {
		entries, err := snapshot.Load(cfg.SnapshotPath)
		if err != nil {
			return fmt.Errorf("recovery: %w", err)
		}
		st.LoadSnapshot(entries)
		log.WithField("entries", len(entries)).Info("fedis-server: snapshot loaded")
	}
	if cfg.AOLPath != "" {
		if err := st.ReplayAOL(cfg.AOLPath); err != nil {
			return fmt.Errorf("recovery: AOL replay: %w", err)
		}
		log.Info("fedis-server: AOL replayed")
	}

	st.StartSweeper(time.Second)
	defer st.Close()

	statsCollector := stats.New()
	statsCollector.StartOpsTicker()
	defer statsCollector.Close()

	dispatcher := command.New(st, authTable, statsCollector, w, cfg.SnapshotPath, log)
	dispatcher.AppendOnly = cfg.AOLPath != ""
	dispatcher.AppendFsync = cfg.Fsync.String()
	dispatcher.SaveSchedule = fmt.Sprintf("%ds", cfg.SnapshotSecs)
	dispatcher.MaxConnections = cfg.MaxConnections

	srvCfg := &server.Config{
		ListenAddr:       cfg.ListenAddr,
		MaxConnections:   cfg.MaxConnections,
		IdleTimeout:      time.Duration(cfg.IdleTimeoutSec) * time.Second,
		Limits:           cfg.Limits(),
		NonRedisMode:     cfg.NonRedisMode,
		DebugResponseIDs: cfg.DebugRespIDs,
	}
	srv := server.New(srvCfg, dispatcher, log)

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		provider := &metricsProvider{store: st, stats: statsCollector, w: w}
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.NewHandler(provider)}
		go func() {
			log.WithField("addr", cfg.MetricsAddr).Info("fedis-server: metrics endpoint listening")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Warn("fedis-server: metrics endpoint stopped")
			}
		}()
	}

	if cfg.SnapshotSecs > 0 && cfg.SnapshotPath != "" {
		go startSnapshotTicker(st, time.Duration(cfg.SnapshotSecs)*time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	select {
	case <-ctx.Done():
		log.Info("fedis-server: shutdown signal received")
		srv.Shutdown()
		if metricsSrv != nil {
			metricsSrv.Close()
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func startSnapshotTicker(st *store.Store, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for range t.C {
		st.TryBGSave()
	}
}
