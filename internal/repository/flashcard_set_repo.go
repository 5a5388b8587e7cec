package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"flashcards/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FlashcardSetRepository stores saved flashcard sets. All lookups are scoped
// to the owning user.
type FlashcardSetRepository interface {
	CreateSet(ctx context.Context, set *model.FlashcardSet) error
	// ListSets returns the user's sets, newest first.
	ListSets(ctx context.Context, userID string) ([]model.FlashcardSet, error)
	// GetSet returns nil, nil when the set does not exist for the user.
	GetSet(ctx context.Context, userID, setID string) (*model.FlashcardSet, error)
	// DeleteSet reports whether a set was removed.
	DeleteSet(ctx context.Context, userID, setID string) (bool, error)
}

type flashcardSetRepo struct {
	pool *pgxpool.Pool
}

func NewFlashcardSetRepo(pool *pgxpool.Pool) FlashcardSetRepository {
	return &flashcardSetRepo{pool: pool}
}

func (r *flashcardSetRepo) CreateSet(ctx context.Context, set *model.FlashcardSet) error {
	cards, err := json.Marshal(set.Flashcards)
	if err != nil {
		return fmt.Errorf("marshal flashcards for set %s: %w", set.ID, err)
	}
	const q = `
		INSERT INTO flashcard_sets (id, user_id, title, topic, flashcards, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
	`
	// jsonb is passed as text so the simple query protocol does not encode it as bytea
	if _, err := r.pool.Exec(ctx, q, set.ID, set.UserID, set.Title, set.Topic, string(cards), set.CreatedAt); err != nil {
		return fmt.Errorf("insert flashcard set %s: %w", set.ID, err)
	}
	return nil
}

func scanSet(row pgx.Row) (*model.FlashcardSet, error) {
	var s model.FlashcardSet
	var rawCards []byte
	if err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.Topic, &rawCards, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rawCards, &s.Flashcards); err != nil {
		return nil, fmt.Errorf("unmarshal flashcards for set %s: %w", s.ID, err)
	}
	return &s, nil
}

func (r *flashcardSetRepo) ListSets(ctx context.Context, userID string) ([]model.FlashcardSet, error) {
	const q = `
		SELECT id::text, user_id, title, topic, flashcards, created_at
		FROM flashcard_sets
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list flashcard sets for user %s: %w", userID, err)
	}
	defer rows.Close()

	sets := []model.FlashcardSet{}
	for rows.Next() {
		s, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flashcard sets for user %s: %w", userID, err)
	}
	return sets, nil
}

func (r *flashcardSetRepo) GetSet(ctx context.Context, userID, setID string) (*model.FlashcardSet, error) {
	const q = `
		SELECT id::text, user_id, title, topic, flashcards, created_at
		FROM flashcard_sets
		WHERE user_id = $1 AND id::text = $2
	`
	s, err := scanSet(r.pool.QueryRow(ctx, q, userID, setID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch flashcard set %s: %w", setID, err)
	}
	return s, nil
}

func (r *flashcardSetRepo) DeleteSet(ctx context.Context, userID, setID string) (bool, error) {
	const q = `DELETE FROM flashcard_sets WHERE user_id = $1 AND id::text = $2`
	tag, err := r.pool.Exec(ctx, q, userID, setID)
	if err != nil {
		return false, fmt.Errorf("delete flashcard set %s: %w", setID, err)
	}
	return tag.RowsAffected() > 0, nil
}
