package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/dmitrijs2005/vaxsync/internal/client/cache"
	"github.com/dmitrijs2005/vaxsync/internal/client/config"
	"github.com/dmitrijs2005/vaxsync/internal/client/network"
	"github.com/dmitrijs2005/vaxsync/internal/client/queue"
	"github.com/dmitrijs2005/vaxsync/internal/client/remote"
	"github.com/dmitrijs2005/vaxsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/vaxsync/internal/client/services"
	"github.com/dmitrijs2005/vaxsync/internal/client/store"
	"github.com/dmitrijs2005/vaxsync/internal/client/syncer"
	"github.com/dmitrijs2005/vaxsync/internal/filex"
	"github.com/dmitrijs2005/vaxsync/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Flusher is the part of the sync coordinator the REPL drives directly.
type Flusher interface {
	FlushAll(ctx context.Context) error
	Stats() syncer.Stats
}

type App struct {
	config *config.Config
	log    logging.Logger

	db      *sql.DB
	remote  remote.Client
	monitor *network.Monitor
	syncer  *syncer.Coordinator
	flusher Flusher

	records services.RecordService
	outbox  services.OutboxService
	session services.SessionService

	guardianID string
	online     atomic.Bool
	reader     *bufio.Reader
	out        io.Writer
}

// NewApp opens the local database, connects the remote client selected by
// cfg.Transport and assembles the services. The remote connection is lazy,
// so NewApp succeeds while offline.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logging.New(cfg.LogBackend, cfg.LogLevel, "text", "vaxsync-client")
	if err != nil {
		return nil, err
	}

	if _, err := filex.EnsureParentDir(cfg.DatabasePath); err != nil {
		return nil, err
	}

	db, err := store.OpenDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	a := &App{config: cfg, log: log, db: db, reader: bufio.NewReader(os.Stdin), out: os.Stdout}

	token := cfg.AccessToken
	if token == "" && isTerminal(int(os.Stdin.Fd())) {
		secret, err := GetSecret("Enter access token: ", a.out)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		token = string(secret)
	}

	rc, err := newRemote(cfg, token)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	a.remote = rc

	st := store.NewSQLiteStore(db)
	q := queue.New(db, nil)
	meta := metadata.NewSQLiteRepository(db)
	loader := cache.New(st, q, rc, meta, nil, log)

	a.monitor = network.NewMonitor(log)
	a.syncer = syncer.New(syncer.Config{
		MaxAttempts:    cfg.MaxAttempts,
		BaseDelay:      cfg.RetryBaseDelay,
		MaxDelay:       cfg.RetryMaxDelay,
		JitterPercent:  10,
		RequestTimeout: cfg.RequestTimeout,
	}, q, rc, loader, a.monitor, nil, log, syncer.WithObserver(syncer.ObserverFunc(a.onSyncEvent)))
	a.flusher = a.syncer

	a.records = services.NewRecordService(st, loader, log)
	a.outbox = services.NewOutboxService(q, loader, a.syncer, nil, log)
	a.session = services.NewSessionService(rc, st, meta)

	if cfg.GuardianID != "" {
		if err := a.session.SignIn(ctx, cfg.GuardianID); err != nil {
			_ = a.close(ctx)
			return nil, err
		}
	}
	if id, err := a.session.CurrentGuardian(ctx); err == nil {
		a.guardianID = id
	}

	return a, nil
}

func newRemote(cfg *config.Config, token string) (remote.Client, error) {
	switch cfg.Transport {
	case "", config.TransportGRPC:
		return remote.NewGRPCClient(cfg.ServerEndpointAddr, token, cfg.RequestTimeout)
	case config.TransportREST:
		return remote.NewRESTClient(cfg.RESTBaseURL, token, cfg.RequestTimeout), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// Run probes connectivity, starts background sync and blocks in the REPL
// until the user exits. Queued items survive the exit and are picked up by
// the next run.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribe := a.monitor.Subscribe(a.onTransition)
	defer unsubscribe()

	if err := a.syncer.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.monitor.Run(gctx, &network.PingSource{
			Pinger:   a.remote,
			Interval: a.config.OnlineCheckInterval,
			Timeout:  a.config.RequestTimeout,
		})
	})
	g.Go(func() error {
		defer cancel()
		fmt.Fprintln(a.out, "Welcome to vaxsync (type 'help' for commands)")
		runREPL(gctx, a, a.status, bufio.NewScanner(a.reader))
		return nil
	})

	err := g.Wait()
	a.syncer.Stop()
	if cerr := a.close(context.WithoutCancel(ctx)); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

func (a *App) close(ctx context.Context) error {
	var errs []error
	if a.session != nil {
		errs = append(errs, a.session.Close(ctx))
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func (a *App) status() string {
	s := "offline"
	if a.online.Load() {
		s = "online"
	}
	if a.guardianID != "" {
		s = a.guardianID + " " + s
	}
	return fmt.Sprintf("(%s)", s)
}

func (a *App) isSignedIn() bool {
	return a.guardianID != ""
}

// onTransition runs on the monitor's delivery goroutine.
func (a *App) onTransition(tr network.Transition) {
	online := tr.To == network.Online
	if a.online.Swap(online) != online {
		fmt.Fprintf(a.out, "\nSwitched to %s mode\n", tr.To)
	}
}

func (a *App) onSyncEvent(e syncer.Event) {
	switch e.Kind {
	case syncer.EventDeadLettered:
		fmt.Fprintf(a.out, "\n! %s item %s could not be delivered: %v\n", e.Partition, e.ItemID, e.Err)
	case syncer.EventUnauthorized:
		fmt.Fprintln(a.out, "\n! the server rejected the access token; restart with a valid token")
	}
}
