package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fairwayhq/fairway-backend/internal/modules/lifecycle"
)

var tables = map[Kind]string{
	KindBooking: "bookings",
	KindCart:    "carts",
}

type resolver struct{ q Querier }

// NewResolver returns a Resolver bound to q, usually the payment commit's *sql.Tx.
func NewResolver(q Querier) Resolver { return &resolver{q: q} }

func (r *resolver) ApplyStatus(ctx context.Context, ref Ref, status lifecycle.Status) (*Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("apply status to %s: unknown status %q", ref, status)
	}
	table, ok := tables[ref.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, ref)
	}
	o := &Order{Ref: ref}
	err := r.q.QueryRowContext(ctx,
		`UPDATE `+table+` SET status=$1, updated_at=now() WHERE slug=$2 RETURNING id, user_id, status`,
		status, ref.Slug).Scan(&o.ID, &o.UserID, &o.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("update %s status: %w", table, err)
	}
	return o, nil
}

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

// CreateBooking inserts the booking, then derives the slug from its serial reference.
func (r *postgresRepo) CreateBooking(ctx context.Context, b *Booking, prefix string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO bookings
		  (id, user_id, status, event_id, tee_id, class_id, tournament_id, session_id, booking_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING booking_ref, created_at, updated_at`,
		b.ID, b.UserID, b.Status, b.EventID, b.TeeID, b.ClassID, b.TournamentID, b.SessionID, b.BookingDate,
	).Scan(&b.BookingRef, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	b.Slug = slugFor(prefix, b.BookingRef)
	if _, err := tx.ExecContext(ctx, `UPDATE bookings SET slug=$1 WHERE id=$2`, b.Slug, b.ID); err != nil {
		return fmt.Errorf("set booking slug: %w", err)
	}
	return tx.Commit()
}

// CreateCart inserts the cart and its items, then assigns the C- slug.
func (r *postgresRepo) CreateCart(ctx context.Context, c *Cart) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO carts (id, user_id, status, total)
		VALUES ($1,$2,$3,$4)
		RETURNING cart_ref, created_at, updated_at`,
		c.ID, c.UserID, c.Status, c.Total,
	).Scan(&c.CartRef, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert cart: %w", err)
	}

	for _, item := range c.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO shopping_items (id, cart_id, product_id, name, price, quantity, src)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			item.ID, c.ID, item.ProductID, item.Name, item.Price, item.Quantity, item.Src)
		if err != nil {
			return fmt.Errorf("insert shopping_item: %w", err)
		}
	}

	c.Slug = slugFor(PrefixCart, c.CartRef)
	if _, err := tx.ExecContext(ctx, `UPDATE carts SET slug=$1 WHERE id=$2`, c.Slug, c.ID); err != nil {
		return fmt.Errorf("set cart slug: %w", err)
	}
	return tx.Commit()
}

func (r *postgresRepo) FindBySlug(ctx context.Context, ref Ref) (*Order, error) {
	table, ok := tables[ref.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, ref)
	}
	o := &Order{Ref: ref}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, status FROM `+table+` WHERE slug=$1`, ref.Slug).
		Scan(&o.ID, &o.UserID, &o.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, ref)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) ListBookingsByUser(ctx context.Context, userID string) ([]*Booking, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, booking_ref, COALESCE(slug,''), user_id, status, event_id, tee_id, class_id,
		       tournament_id, session_id, booking_date, created_at, updated_at
		FROM bookings WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []*Booking{}
	for rows.Next() {
		b := &Booking{}
		var eventID, teeID, classID, tournamentID, sessionID sql.NullString
		if err := rows.Scan(&b.ID, &b.BookingRef, &b.Slug, &b.UserID, &b.Status,
			&eventID, &teeID, &classID, &tournamentID, &sessionID,
			&b.BookingDate, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		b.EventID = stringPtr(eventID)
		b.TeeID = stringPtr(teeID)
		b.ClassID = stringPtr(classID)
		b.TournamentID = stringPtr(tournamentID)
		b.SessionID = stringPtr(sessionID)
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ── helpers ──────────────────────────────────────────────────────────────────

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
