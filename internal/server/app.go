// Package server initializes and runs the publish3 backend: it wires storage,
// the ledger and custodian clients and the publication service, handles
// graceful shutdown and starts the HTTP API.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/DariusIMP/publish3-backend/internal/chain"
	"github.com/DariusIMP/publish3-backend/internal/custody"
	"github.com/DariusIMP/publish3-backend/internal/logging"
	"github.com/DariusIMP/publish3-backend/internal/server/auth"
	"github.com/DariusIMP/publish3-backend/internal/server/capability"
	"github.com/DariusIMP/publish3-backend/internal/server/config"
	"github.com/DariusIMP/publish3-backend/internal/server/httpapi"
	"github.com/DariusIMP/publish3-backend/internal/server/locks"
	"github.com/DariusIMP/publish3-backend/internal/server/repositories/repomanager"
	"github.com/DariusIMP/publish3-backend/internal/server/services"
	"github.com/DariusIMP/publish3-backend/internal/server/storage"
)

const outboundTimeout = 15 * time.Second

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	publications *services.PublicationService
	verifier     *auth.Verifier
	closers      []func() error
}

// NewApp validates c and connects every dependency. Configuration problems
// are reported before any connection is attempted.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(c.LogBackend, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, err
	}

	capabilities, err := capability.NewSigner(c.BackendPrivateKey)
	if err != nil {
		return nil, err
	}
	verifier, err := auth.NewVerifier(c.PrivyJWTVerificationKey, c.PrivyAppID)
	if err != nil {
		return nil, err
	}
	contract, err := chain.ParseAddress(c.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("contract address: %w", err)
	}

	app := &App{config: c, logger: logger, verifier: verifier}

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db.Close)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := storage.NewS3Store(ctx, storage.Options{
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		app.Close()
		return nil, err
	}

	locker, err := app.newLocker()
	if err != nil {
		app.Close()
		return nil, err
	}

	httpClient := &http.Client{Timeout: outboundTimeout}
	ledger := chain.NewRESTClient(c.LedgerRPCURL, httpClient)
	executor := chain.NewExecutor(
		chain.NewBuilder(ledger, c.GasBudget, c.GasUnitPrice),
		chain.NewSubmitter(ledger, c.FinalityTimeout, c.PollInterval, logger.With("module", "submitter")),
		c.TxTTL,
	)
	custodian := custody.NewClient(c.PrivyAPIBaseURL, c.PrivyAppID, c.PrivyAppSecret, httpClient)

	app.publications = services.NewPublicationService(db, rm, store, capabilities, custodian, executor, locker,
		services.PublicationOptions{
			Module:        chain.ModuleID{Address: contract, Name: c.ContractModule},
			CapabilityTTL: c.CapabilityTTL,
			CommitTimeout: c.CommitTimeout,
		},
		logger.With("module", "publications"),
	)

	logger.Info(ctx, "capability signer ready", "public_key", capabilities.PublicKeyHex(), "contract", contract.String())
	return app, nil
}

// newLocker picks Redis when configured, the in-process lock otherwise.
// The Redis lock outlives a whole commit.
func (app *App) newLocker() (locks.Locker, error) {
	if app.config.RedisURL == "" {
		return locks.NewKeyedMutex(), nil
	}
	client, err := locks.NewRedisClient(app.config.RedisURL)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, client.Close)
	return locks.NewRedisLocker(client, app.commitBound(), 100*time.Millisecond, app.logger.With("module", "locks")), nil
}

// commitBound is the longest a single commit can take, rollback included.
func (app *App) commitBound() time.Duration {
	return app.config.CommitTimeout + time.Minute
}

// Close releases connections in reverse order of creation.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "close", "error", err)
		}
	}
	app.closers = nil
	if s, ok := app.logger.(logging.Syncer); ok {
		_ = s.Sync()
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, app.logger, app.publications, app.verifier,
		app.config.MaxUploadBytes, app.commitBound())
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if _, err := app.publications.ReportStuck(ctx, app.config.CommitTimeout); err != nil {
		app.logger.Warn(ctx, "stuck publication report failed", "error", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.drain()
}

// drain waits for detached commits before connections are closed.
func (app *App) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), app.commitBound())
	defer cancel()

	if err := app.publications.Drain(ctx); err != nil {
		app.logger.Error(ctx, "commits still running at shutdown", "error", err)
	}
}
