package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/battleship-backend/internal/config"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/identity"
	"github.com/rocketscienceinc/battleship-backend/internal/ledger"
	"github.com/rocketscienceinc/battleship-backend/internal/repository"
	"github.com/rocketscienceinc/battleship-backend/internal/repository/storage"
	"github.com/rocketscienceinc/battleship-backend/internal/repository/storage/sqlite"
	"github.com/rocketscienceinc/battleship-backend/internal/server/peer"
	redistransport "github.com/rocketscienceinc/battleship-backend/internal/transport/redis"
	"github.com/rocketscienceinc/battleship-backend/internal/usecase"
	"github.com/rocketscienceinc/battleship-backend/transport/rest"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs one player node until a signal arrives.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedis(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	sqliteStorage, err := sqlite.New(conf.SQLiteStoragePath)
	if err != nil {
		return fmt.Errorf("could not open journal: %w", err)
	}

	defer func() {
		if err = sqliteStorage.Close(); err != nil {
			log.Error("could not close journal", "error", err)
		}
	}()

	if err = sqliteStorage.Init(ctx); err != nil {
		return fmt.Errorf("could not init journal: %w", err)
	}

	party := entity.Party(conf.Identity.Name)
	signer := identity.NewSigner(party, conf.Identity.Seed)

	directory, err := newDirectory(signer, conf.Peers)
	if err != nil {
		return err
	}

	log.Info("Identity loaded", "party", party, "public_key", identity.EncodePublicKey(signer.PublicKey()))

	substrate := ledger.NewRedis(logger, redisStorage, directory)
	records := repository.NewRecordStore(redisStorage)
	journal := repository.NewJournalRepository(sqliteStorage.Connection)

	peerServer := peer.New(logger, party, redistransport.New(redisStorage, party))
	gameManager := usecase.NewGameManager(logger, signer, conf.Protocol.Timeout, records, substrate, journal, peerServer)

	peerServer.Handle(usecase.ActionCountersign, gameManager.HandleCountersign)
	peerServer.Handle(usecase.ActionReveal, gameManager.HandleReveal)
	peerServer.Handle(usecase.ActionAccepted, gameManager.HandleAccepted)

	// run peer server
	peerErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting peer server", "party", party)
		if peerErr := peerServer.Run(ctx); peerErr != nil {
			log.Error("Peer server error", "error", peerErr)
			peerErrCh <- peerErr
		}
	}()

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.New(logger, conf.HTTPPort, party, gameManager).Start(ctx); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-peerErrCh:
		return fmt.Errorf("peer server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

// newDirectory - the keys of this node and of every configured peer.
func newDirectory(signer *identity.Signer, peers []config.Peer) (*identity.Directory, error) {
	directory := identity.NewDirectory()
	directory.Register(signer.Party(), signer.PublicKey())

	for _, p := range peers {
		if err := directory.RegisterEncoded(entity.Party(p.Name), p.PublicKey); err != nil {
			return nil, fmt.Errorf("invalid peer %s: %w", p.Name, err)
		}
	}

	return directory, nil
}
