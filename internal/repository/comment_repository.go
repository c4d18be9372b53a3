package repository

import (
	"context"
	"database/sql"
	"fmt"

	"rss-scraper/internal/database"
	"rss-scraper/internal/domain"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByItem(ctx context.Context, itemID int) ([]domain.Comment, error)
}

type commentRepository struct {
	store
}

func NewCommentRepository(db *sql.DB, dialect database.Dialect) CommentRepository {
	return &commentRepository{store{db: db, dialect: dialect}}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	if err := comment.Validate(); err != nil {
		return err
	}

	comment.CreatedAt = now()
	id, err := r.insert(ctx, r.db,
		"INSERT INTO comments (item_id, text, created_at) VALUES (?, ?, ?)",
		comment.ItemID, comment.Text, comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	comment.ID = id
	return nil
}

func (r *commentRepository) ListByItem(ctx context.Context, itemID int) ([]domain.Comment, error) {
	rows, err := r.query(ctx, r.db,
		"SELECT id, item_id, text, created_at FROM comments WHERE item_id = ? ORDER BY id",
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.ItemID, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		comments = append(comments, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}

	return comments, nil
}
