package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rocketscienceinc/battleship-backend/internal/entity"
)

// JournalEntry - one accepted transition this party took part in.
type JournalEntry struct {
	OrderedID    int64           `json:"ordered_id"`
	TransitionID string          `json:"transition_id"`
	Kind         entity.MoveKind `json:"kind"`
	GameID       string          `json:"game_id"`
	Receipt      entity.Receipt  `json:"receipt"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

type JournalRepository interface {
	Save(ctx context.Context, receipt entity.Receipt) error
	ListByGame(ctx context.Context, gameID string) ([]JournalEntry, error)
}

type journalRepository struct {
	conn *sql.DB
}

func NewJournalRepository(conn *sql.DB) JournalRepository {
	return &journalRepository{
		conn: conn,
	}
}

// Save - records a receipt, saving the same transition twice is a no-op.
func (that *journalRepository) Save(ctx context.Context, receipt entity.Receipt) error {
	payload, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("can't marshal receipt: %w", err)
	}

	query := `INSERT OR IGNORE INTO transitions (ordered_id, transition_id, kind, game_id, payload) VALUES (?, ?, ?, ?, ?)`

	_, err = that.conn.ExecContext(ctx, query, receipt.OrderedID, receipt.TransitionID, string(receipt.Kind), receipt.GameID, string(payload))
	if err != nil {
		return fmt.Errorf("can't save transition: %w", err)
	}

	return nil
}

func (that *journalRepository) ListByGame(ctx context.Context, gameID string) ([]JournalEntry, error) {
	query := `SELECT ordered_id, transition_id, kind, game_id, payload, recorded_at FROM transitions WHERE game_id = ? ORDER BY ordered_id`

	rows, err := that.conn.QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("can't list transitions: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var (
			entry   JournalEntry
			kind    string
			payload string
		)

		if err = rows.Scan(&entry.OrderedID, &entry.TransitionID, &kind, &entry.GameID, &payload, &entry.RecordedAt); err != nil {
			return nil, fmt.Errorf("can't scan transition: %w", err)
		}

		if err = json.Unmarshal([]byte(payload), &entry.Receipt); err != nil {
			return nil, fmt.Errorf("can't unmarshal receipt: %w", err)
		}

		entry.Kind = entity.MoveKind(kind)
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("can't read transitions: %w", err)
	}

	return entries, nil
}
