// Package server assembles the record service, the screen WebSocket and
// the background workers, and starts the HTTP server.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/uber-go/tally/v4"

	"github.com/matthewbaird/recordview/internal/config"
	"github.com/matthewbaird/recordview/internal/controller"
	"github.com/matthewbaird/recordview/internal/event"
	"github.com/matthewbaird/recordview/internal/eventbus"
	"github.com/matthewbaird/recordview/internal/persist"
	"github.com/matthewbaird/recordview/internal/query"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/remote"
	"github.com/matthewbaird/recordview/internal/signals"
	"github.com/matthewbaird/recordview/internal/spec"
	"github.com/matthewbaird/recordview/internal/store"
	"github.com/matthewbaird/recordview/internal/wire"
)

// Server owns the long-lived collaborators of one process.
type Server struct {
	cfg      config.Config
	store    *store.Store
	bus      *eventbus.Bus
	sessions *wire.Manager
	sync     *persist.SyncWorker
	router   chi.Router
}

// New wires a server over st and specs. When cfg.RemoteURL is set, screens
// query and save through that record service and queued saves are synced
// to it; otherwise everything stays local.
func New(cfg config.Config, st *store.Store, specs spec.Provider, scope tally.Scope) (*Server, error) {
	opt, err := cfg.DefaultRequestOption()
	if err != nil {
		return nil, err
	}
	if scope == nil {
		scope = tally.NoopScope
	}

	bus := eventbus.New()
	bus.Subscribe("log", eventbus.NewLogConsumer("minor"))
	bus.Subscribe("signals", eventbus.NewSignalConsumer(signals.DefaultRules))
	recorder := event.NewJournalRecorder(st)
	recorder.SetPublisher(bus)

	var (
		source  query.Source
		applier persist.Applier
		worker  *persist.SyncWorker
	)
	if cfg.RemoteURL != "" {
		client := remote.NewClient(cfg.RemoteURL)
		source, applier = client, client
		worker = persist.NewSyncWorker(st, client)
	}
	engine := query.NewEngine(st, source, bus)
	factory := controller.NewFactory(controller.Deps{Specs: specs, Engine: engine, Offline: st})

	s := &Server{
		cfg:      cfg,
		store:    st,
		bus:      bus,
		sessions: wire.NewManager(cfg.SessionMax, cfg.SessionIdle),
		sync:     worker,
	}
	screens := wire.NewHandler(s.sessions, wire.Config{
		Factory:  factory,
		Bus:      bus,
		Rows:     rowLoader(st, applier),
		Saver:    persist.NewRouter(applier, st, st, opt),
		Recorder: recorder,
		Scope:    scope,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(remote.Logging)
	remote.NewHandler(st, st).RegisterRoutes(r)
	screens.RegisterRoutes(r)
	s.router = r
	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.router }

// Run starts the bus and the workers, then serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	s.bus.Start(ctx)
	defer s.bus.Stop()

	if s.sync != nil {
		go s.sync.Run(ctx, s.cfg.SyncInterval)
	}
	go s.cleanupSessions(ctx)

	server := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("starting server on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) cleanupSessions(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.sessions.Cleanup(); n > 0 {
				log.Printf("server: dropped %d idle sessions", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// rowLoader prefers the remote copy of a record and falls back to the
// local store when the remote is unreachable.
func rowLoader(st *store.Store, applier persist.Applier) wire.RowLoader {
	client, ok := applier.(*remote.Client)
	if !ok {
		return st
	}
	return fallbackLoader{remote: client, local: st}
}

type fallbackLoader struct {
	remote wire.RowLoader
	local  *store.Store
}

func (l fallbackLoader) Get(ctx context.Context, ref record.Ref) (*record.Row, error) {
	row, err := l.remote.Get(ctx, ref)
	if err != nil && query.IsConnectivity(err) {
		return l.local.Get(ctx, ref)
	}
	return row, err
}
