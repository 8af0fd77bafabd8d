package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/repository"
)

const (
	sequenceKey = "ledger:seq"
	logKey      = "ledger:log"

	maxRetries = 8
)

var _ Substrate = (*Redis)(nil)

// Redis - a ledger on a shared Redis. Consumed record keys are watched, so of
// two transitions spending the same record only one commits.
type Redis struct {
	logger *slog.Logger
	client *redis.Client
	keys   keyDirectory
}

func NewRedis(logger *slog.Logger, client *redis.Client, keys keyDirectory) *Redis {
	return &Redis{
		logger: logger.With("component", "ledger"),
		client: client,
		keys:   keys,
	}
}

func acceptedKey(id string) string {
	return "ledger:tx:" + id
}

func (that *Redis) Submit(ctx context.Context, signed entity.SignedTransition) (entity.Receipt, error) {
	log := that.logger.With("method", "Submit", "kind", signed.Transition.Kind)

	if err := verify(that.keys, signed); err != nil {
		log.Info("transition rejected", "error", err)
		return entity.Receipt{}, err
	}

	tx := signed.Transition
	id := tx.ID()
	produced := tx.WithRefs()

	watched := []string{acceptedKey(id)}
	for _, ref := range tx.Consumed.Refs() {
		watched = append(watched, repository.RecordKey(ref))
	}

	var sequence *redis.IntCmd

	commit := func(rtx *redis.Tx) error {
		exists, err := rtx.Exists(ctx, acceptedKey(id)).Result()
		if err != nil {
			return fmt.Errorf("failed to check transition: %w", err)
		}
		if exists > 0 {
			return rejected(ErrDuplicateTransition)
		}

		if err = that.checkUnconsumed(ctx, rtx, tx.Consumed); err != nil {
			return err
		}

		_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			repository.StageConsume(ctx, pipe, tx.Consumed)
			if err := repository.StageProduce(ctx, pipe, produced); err != nil {
				return err
			}

			pipe.Set(ctx, acceptedKey(id), 1, 0)
			sequence = pipe.Incr(ctx, sequenceKey)

			return nil
		})

		return err //nolint: wrapcheck // redis.TxFailedErr is matched by the caller
	}

	var err error
	for range maxRetries {
		err = that.client.Watch(ctx, commit, watched...)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}

		log.Debug("watched records changed, retrying")
	}

	if err != nil {
		return entity.Receipt{}, fmt.Errorf("failed to commit transition: %w", err)
	}

	receipt := newReceipt(sequence.Val(), tx, produced)
	that.appendLog(ctx, log, receipt)

	log.Info("transition accepted", "ordered_id", receipt.OrderedID, "game_id", receipt.GameID)

	return receipt, nil
}

func (that *Redis) checkUnconsumed(ctx context.Context, rtx *redis.Tx, consumed entity.Records) error {
	for _, session := range consumed.Sessions {
		record, err := repository.LoadRecord(ctx, rtx, session.Ref)
		if errors.Is(err, repository.ErrRecordNotFound) || (err == nil && (record.Session == nil || !sameRecord(*record.Session, session))) {
			return rejected(fmt.Errorf("session %q is consumed or unknown", session.Ref))
		}
		if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
	}

	for _, cell := range consumed.Cells {
		record, err := repository.LoadRecord(ctx, rtx, cell.Ref)
		if errors.Is(err, repository.ErrRecordNotFound) || (err == nil && (record.Cell == nil || !sameRecord(*record.Cell, cell))) {
			return rejected(fmt.Errorf("cell %q is consumed or unknown", cell.Ref))
		}
		if err != nil {
			return fmt.Errorf("failed to load cell: %w", err)
		}
	}

	return nil
}

// appendLog - the ordered history is informational, a failed append does not undo acceptance.
func (that *Redis) appendLog(ctx context.Context, log *slog.Logger, receipt entity.Receipt) {
	payload, err := json.Marshal(receipt)
	if err != nil {
		log.Error("failed to marshal receipt", "error", err)
		return
	}

	if err = that.client.RPush(ctx, logKey, payload).Err(); err != nil {
		log.Error("failed to append receipt to the ledger log", "error", err)
	}
}
