package suite

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/identity"
)

const (
	expireDuration  = 120
	maxWaitDuration = 120 * time.Second
)

const (
	redisPort  = "6379/tcp"
	redisImage = "redis"
	redisTag   = "alpine"
)

// Parties every suite knows the keys of.
const (
	Alice entity.Party = "Alice"
	Bob   entity.Party = "Bob"
)

type Suite struct {
	*testing.T
	Logger *slog.Logger

	Storage   *redis.Client
	Directory *identity.Directory
	Signers   map[entity.Party]*identity.Signer
}

// New - starts a throwaway Redis container and returns a suite bound to it.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), maxWaitDuration)
	t.Cleanup(func() {
		cancel()
	})

	logger := slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not connect to docker: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: redisImage,
		Tag:        redisTag,
		Env:        []string{},
	}, func(config *docker.HostConfig) {
		// set AutoRemove to true so that stopped container goes away by itself
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("could not start resource: %v", err)
	}

	// never returns error
	_ = resource.Expire(expireDuration)

	pool.MaxWait = maxWaitDuration

	var client *redis.Client
	if err = pool.Retry(func() error {
		client = redis.NewClient(&redis.Options{
			Addr: resource.GetHostPort(redisPort),
		})
		return client.Ping(ctx).Err()
	}); err != nil {
		if err = pool.Purge(resource); err != nil {
			t.Fatalf("could not purge resource: %v", err)
		}

		t.Fatalf("could not connect to redis: %v", err)
	}

	if err = client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("could not flush database: %v", err)
	}

	t.Cleanup(func() {
		t.Helper()

		_ = client.Close()

		if err = pool.Purge(resource); err != nil {
			t.Fatalf("could not purge resource: %v", err)
		}
	})

	signers := map[entity.Party]*identity.Signer{
		Alice: identity.NewSigner(Alice, "alice-seed"),
		Bob:   identity.NewSigner(Bob, "bob-seed"),
	}

	directory := identity.NewDirectory()
	for party, signer := range signers {
		directory.Register(party, signer.PublicKey())
	}

	return ctx, &Suite{
		T:         t,
		Logger:    logger,
		Storage:   client,
		Directory: directory,
		Signers:   signers,
	}
}

// SignAll - signs the transition as every party of the suite.
func (that *Suite) SignAll(tx entity.Transition) entity.SignedTransition {
	signed := entity.NewSignedTransition(tx)
	for _, signer := range that.Signers {
		signer.Sign(&signed)
	}

	return signed
}
