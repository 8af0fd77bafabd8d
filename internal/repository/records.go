package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
)

var ErrRecordNotFound = errors.New("record not found")

// RecordStore - read access to the unconsumed records a party takes part in.
type RecordStore interface {
	QuerySessions(ctx context.Context, party entity.Party, match func(entity.GameSession) bool) ([]entity.GameSession, error)
	QueryCells(ctx context.Context, party entity.Party, gameID string, match func(entity.Cell) bool) ([]entity.Cell, error)
}

// StoredRecord - the value kept under a record key, exactly one field is set.
type StoredRecord struct {
	Session *entity.GameSession `json:"session,omitempty"`
	Cell    *entity.Cell        `json:"cell,omitempty"`
}

func RecordKey(ref string) string {
	return "record:" + ref
}

func sessionIndexKey(party entity.Party) string {
	return "vault:" + party.String() + ":sessions"
}

func cellIndexKey(party entity.Party, gameID string) string {
	return "vault:" + party.String() + ":cells:" + gameID
}

// StageConsume - queues removal of consumed records and their index entries.
func StageConsume(ctx context.Context, pipe redis.Pipeliner, consumed entity.Records) {
	for _, session := range consumed.Sessions {
		pipe.Del(ctx, RecordKey(session.Ref))
		for _, party := range session.Participants() {
			pipe.SRem(ctx, sessionIndexKey(party), session.Ref)
		}
	}

	for _, cell := range consumed.Cells {
		pipe.Del(ctx, RecordKey(cell.Ref))
		for _, party := range cell.Participants() {
			pipe.SRem(ctx, cellIndexKey(party, cell.GameID), cell.Ref)
		}
	}
}

// StageProduce - queues the produced records, which must already carry refs.
func StageProduce(ctx context.Context, pipe redis.Pipeliner, produced entity.Records) error {
	for _, session := range produced.Sessions {
		payload, err := json.Marshal(StoredRecord{Session: &session})
		if err != nil {
			return fmt.Errorf("could not marshal session: %w", err)
		}

		pipe.Set(ctx, RecordKey(session.Ref), payload, 0)
		for _, party := range session.Participants() {
			pipe.SAdd(ctx, sessionIndexKey(party), session.Ref)
		}
	}

	for _, cell := range produced.Cells {
		payload, err := json.Marshal(StoredRecord{Cell: &cell})
		if err != nil {
			return fmt.Errorf("could not marshal cell: %w", err)
		}

		pipe.Set(ctx, RecordKey(cell.Ref), payload, 0)
		for _, party := range cell.Participants() {
			pipe.SAdd(ctx, cellIndexKey(party, cell.GameID), cell.Ref)
		}
	}

	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// LoadRecord - reads one unconsumed record, ErrRecordNotFound once it is consumed.
func LoadRecord(ctx context.Context, client getter, ref string) (StoredRecord, error) {
	response, err := client.Get(ctx, RecordKey(ref)).Result()
	if errors.Is(err, redis.Nil) {
		return StoredRecord{}, ErrRecordNotFound
	}

	if err != nil {
		return StoredRecord{}, fmt.Errorf("failed to get record: %w", err)
	}

	var record StoredRecord
	if err = json.Unmarshal([]byte(response), &record); err != nil {
		return StoredRecord{}, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return record, nil
}

type recordStore struct {
	client *redis.Client
}

func NewRecordStore(client *redis.Client) RecordStore {
	return &recordStore{
		client: client,
	}
}

func (that *recordStore) QuerySessions(ctx context.Context, party entity.Party, match func(entity.GameSession) bool) ([]entity.GameSession, error) {
	records, err := that.loadIndex(ctx, sessionIndexKey(party))
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	var sessions []entity.GameSession
	for _, record := range records {
		if record.Session != nil && (match == nil || match(*record.Session)) {
			sessions = append(sessions, *record.Session)
		}
	}

	slices.SortFunc(sessions, func(a, b entity.GameSession) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})

	return sessions, nil
}

func (that *recordStore) QueryCells(ctx context.Context, party entity.Party, gameID string, match func(entity.Cell) bool) ([]entity.Cell, error) {
	records, err := that.loadIndex(ctx, cellIndexKey(party, gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to load cells: %w", err)
	}

	var cells []entity.Cell
	for _, record := range records {
		if record.Cell != nil && (match == nil || match(*record.Cell)) {
			cells = append(cells, *record.Cell)
		}
	}

	SortCells(cells)

	return cells, nil
}

func (that *recordStore) loadIndex(ctx context.Context, indexKey string) ([]StoredRecord, error) {
	refs, err := that.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", indexKey, err)
	}

	if len(refs) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		keys = append(keys, RecordKey(ref))
	}

	values, err := that.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	records := make([]StoredRecord, 0, len(values))
	for _, value := range values {
		payload, ok := value.(string)
		if !ok {
			// consumed between the index read and the record read
			continue
		}

		var record StoredRecord
		if err = json.Unmarshal([]byte(payload), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}

		records = append(records, record)
	}

	return records, nil
}

func SortCells(cells []entity.Cell) {
	slices.SortFunc(cells, func(a, b entity.Cell) int {
		switch {
		case a.Coordinate.Less(b.Coordinate):
			return -1
		case b.Coordinate.Less(a.Coordinate):
			return 1
		case a.OriginalHolder < b.OriginalHolder:
			return -1
		case a.OriginalHolder > b.OriginalHolder:
			return 1
		default:
			return 0
		}
	})
}

// GameByName - the single unconsumed session called name that party plays in.
func GameByName(ctx context.Context, store RecordStore, party entity.Party, name string) (entity.GameSession, error) {
	sessions, err := store.QuerySessions(ctx, party, func(session entity.GameSession) bool {
		return session.Name == name
	})
	if err != nil {
		return entity.GameSession{}, fmt.Errorf("failed to query sessions: %w", err)
	}

	switch len(sessions) {
	case 0:
		return entity.GameSession{}, fmt.Errorf("%w: %q", apperror.ErrGameNotFound, name)
	case 1:
		return sessions[0], nil
	default:
		return entity.GameSession{}, fmt.Errorf("%w: %d games named %q", apperror.ErrGameAlreadyExists, len(sessions), name)
	}
}

// CellAt - the cell of originalHolder's board at coord, as party currently sees it.
func CellAt(ctx context.Context, store RecordStore, party entity.Party, gameID string, originalHolder entity.Party, coord entity.Coordinate) (entity.Cell, error) {
	cells, err := store.QueryCells(ctx, party, gameID, func(cell entity.Cell) bool {
		return cell.OriginalHolder == originalHolder && cell.Coordinate == coord
	})
	if err != nil {
		return entity.Cell{}, fmt.Errorf("failed to query cells: %w", err)
	}

	if len(cells) != 1 {
		return entity.Cell{}, fmt.Errorf("%w: %s on the board of %s", ErrRecordNotFound, coord, originalHolder)
	}

	return cells[0], nil
}
