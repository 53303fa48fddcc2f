// Package orders records finished print files on the storefront's order rows.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var ErrOrderNotFound = errors.New("order not found")

// Execer is the part of a pgx pool the repository needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// RenderRecord is what gets stored once a print file is uploaded.
type RenderRecord struct {
	OrderID    string
	PDFURL     string
	PublicID   string
	RenderedAt time.Time
	Meta       any
}

type Repository struct {
	db Execer
}

func NewRepository(db Execer) *Repository {
	return &Repository{db: db}
}

const markRenderedSQL = `UPDATE orders
SET final_pdf_url = $1, final_pdf_public_id = $2, rendered_at = $3, render_meta = $4
WHERE id = $5`

// MarkRendered stores the print file location and render metadata on the order.
func (r *Repository) MarkRendered(ctx context.Context, rec RenderRecord) error {
	meta, err := json.Marshal(rec.Meta)
	if err != nil {
		return fmt.Errorf("encode render meta: %w", err)
	}
	tag, err := r.db.Exec(ctx, markRenderedSQL, rec.PDFURL, rec.PublicID, rec.RenderedAt.UTC(), meta, rec.OrderID)
	if err != nil {
		return fmt.Errorf("update order %s: %w", rec.OrderID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
