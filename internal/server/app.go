package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/evotar/apiserver/config"
	"github.com/evotar/apiserver/internal/db"
	"github.com/evotar/apiserver/internal/mq"
	"github.com/evotar/apiserver/internal/obs"
	"github.com/evotar/apiserver/internal/services"
	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/internal/storage"
	"github.com/evotar/apiserver/internal/store"
	"github.com/evotar/apiserver/internal/syslog"
	"github.com/evotar/apiserver/internal/wallet"
)

// App holds the wired services shared by the HTTP server and the CLI
// commands.
type App struct {
	DB      *sql.DB
	Codec   *session.Codec
	Sink    *syslog.Sink
	MQ      *mq.MQ
	Storage *storage.Storage

	Users      *services.UserService
	Auth       *services.AuthService
	Lookups    *services.LookupService
	Elections  *services.ElectionService
	Candidates *services.CandidateService
	Votes      *services.VoteService
	Tabulation *services.TabulationService
	Wallets    *services.WalletService
}

// NewApp opens the database and optional backends and wires every service.
// A disabled queue or object store is not an error.
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	logger := obs.Logger()

	codec, err := session.NewCodec(cfg.Session.Secret, cfg.Session.SecureCookie)
	if err != nil {
		return nil, errors.New("SESSION_SECRET is required")
	}

	var sealer *wallet.Sealer
	if cfg.EnableBlockchain {
		sealer, err = wallet.NewSealer(cfg.Wallet.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("WALLET_ENCRYPTION_KEY: %w", err)
		}
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tx := store.NewTxRunner(dbConn)
	userRepo := store.NewUserRepository(dbConn)
	lookupRepo := store.NewLookupRepository(dbConn)
	electionRepo := store.NewElectionRepository(dbConn)
	candidateRepo := store.NewCandidateRepository(dbConn)
	voteRepo := store.NewVoteRepository(dbConn)
	resultRepo := store.NewResultRepository(dbConn)
	walletRepo := store.NewWalletRepository(dbConn)
	ledgerRepo := store.NewLedgerRepository(dbConn)
	logRepo := store.NewSystemLogRepository(dbConn)

	sink := syslog.NewSink(logRepo, syslog.WithLogger(logger))

	app := &App{DB: dbConn, Codec: codec, Sink: sink}
	app.Wallets = services.NewWalletService(tx, walletRepo, ledgerRepo, voteRepo, sealer, sink)
	app.Users = services.NewUserService(tx, userRepo, logRepo, walletRepo, sink)
	app.Auth = services.NewAuthService(userRepo, walletRepo, sink)
	app.Lookups = services.NewLookupService(lookupRepo, sink)
	app.Elections = services.NewElectionService(tx, electionRepo, lookupRepo, sink)
	app.Candidates = services.NewCandidateService(tx, candidateRepo, electionRepo, lookupRepo, app.Users, sink)
	app.Votes = services.NewVoteService(tx, voteRepo, electionRepo, candidateRepo, userRepo, app.Wallets, sink)
	app.Tabulation = services.NewTabulationService(tx, electionRepo, lookupRepo, candidateRepo, voteRepo, userRepo, resultRepo, sink)
	app.Elections.SetTabulator(app.Tabulation)

	queue, err := mq.Open(ctx, cfg.MQ)
	switch {
	case errors.Is(err, mq.ErrDisabled):
		logger.Info("message queue disabled, tabulation runs inline")
	case err != nil:
		app.Close()
		return nil, err
	default:
		app.MQ = queue
		app.Tabulation.SetPublisher(queue, cfg.MQ.Channel)
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		logger.Info("object storage disabled, results are not exported")
	case err != nil:
		app.Close()
		return nil, err
	default:
		app.Storage = objects
		app.Tabulation.SetArchive(objects)
	}

	logger.Info("application wired",
		slog.Bool("ledger", app.Wallets.Enabled()),
		slog.String("mq_backend", cfg.MQ.Backend),
		slog.String("storage_backend", cfg.Storage.Backend),
	)
	return app, nil
}

// Close releases the queue and database connections.
func (a *App) Close() error {
	var errs []error
	if a.MQ != nil {
		errs = append(errs, a.MQ.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
