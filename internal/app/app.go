package app

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-server/internal/config"
	"github.com/vovakirdan/wirechat-server/internal/core"
	"github.com/vovakirdan/wirechat-server/internal/metrics"
	"github.com/vovakirdan/wirechat-server/internal/transport/tcp"
)

// App wires the core registries, router, worker pool and TCP server
// into one runnable unit, plus a /metrics endpoint on :9090, always
// started alongside it, reusing the teacher's net/http server for a
// second concern.
type App struct {
	log *zerolog.Logger

	clients  *core.ClientRegistry
	channels *core.ChannelRegistry
	router   *core.Router
	pool     *core.WorkerPool

	tcpServer  *tcp.Server
	metricsSrv *http.Server
}

// New constructs an App from a resolved, validated Config.
func New(cfg config.Config, logger *zerolog.Logger) *App {
	reg := metrics.New()

	pool := core.NewWorkerPool(cfg.ThreadPoolSize, logger)
	clients := core.NewClientRegistry(cfg.MaxUsers)
	channels := core.NewChannelRegistry(cfg.MaxChannels)

	// The registry's remove callback runs lock-released (spec §4
	// REDESIGN note), so it is safe for it to reach into the Channel
	// Registry here without risking the lock-ordering inversion the
	// reference implementation's callback-under-lock design invites.
	clients.SetOnClientRemoved(channels.RemoveClientFromAllChannels)

	reg.RegisterGauge("clients_connected", "Currently registered clients.", func() float64 {
		return float64(clients.Count())
	})
	reg.RegisterGauge("channels_active", "Currently active channels.", func() float64 {
		return float64(channels.Count())
	})
	reg.RegisterGauge("worker_pool_queue_depth", "Tasks waiting in the worker pool queue.", func() float64 {
		return float64(pool.QueueLen())
	})
	reg.RegisterGauge("worker_pool_active_sessions", "Sessions currently executing on the worker pool.", func() float64 {
		return float64(pool.ActiveCount())
	})

	router := core.NewRouter(clients, channels, reg.Router, logger)
	router.SetMotd(cfg.MOTD)

	tcpServer := tcp.NewServer(tcp.Config{Port: cfg.Port, ServerName: cfg.ServerName}, clients, channels, router, pool, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())

	return &App{
		log:        logger,
		clients:    clients,
		channels:   channels,
		router:     router,
		pool:       pool,
		tcpServer:  tcpServer,
		metricsSrv: &http.Server{Addr: ":9090", Handler: mux},
	}
}

// Run starts both the TCP chat server and the metrics HTTP server and
// blocks until ctx is canceled or either exits with an error.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() { errCh <- a.tcpServer.Serve(ctx) }()
	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		a.shutdown()
		<-errCh
		return err
	case <-ctx.Done():
		a.shutdown()
		<-errCh
		<-errCh
		return nil
	}
}

func (a *App) shutdown() {
	a.tcpServer.Stop()
	_ = a.metricsSrv.Close()
	a.pool.Shutdown()
	a.log.Info().Msg("server stopped")
}
