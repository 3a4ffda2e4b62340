package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tablero-sucursales/tablero/internal/platform/db"
)

// ErrCardNotFound is returned when no loyalty card has the requested serial.
var ErrCardNotFound = errors.New("wallet: card not found")

// Card is a loyalty card ("tarjeta") a pass is issued for.
type Card struct {
	ID     string
	Name   string
	Points int64
	Branch string
}

// Fields renders the card as labeled pass fields, in display order.
func (c Card) Fields() []Field {
	fields := []Field{
		{Key: "puntos", Label: "Puntos", Value: c.Points, Area: AreaPrimary},
		{Key: "nombre", Label: "Cliente", Value: c.Name, Area: AreaSecondary},
	}
	if c.Branch != "" {
		fields = append(fields, Field{Key: "sucursal", Label: "Sucursal", Value: c.Branch, Area: AreaAuxiliary})
	}
	fields = append(fields, Field{Key: "tarjeta", Label: "Tarjeta", Value: c.ID, Area: AreaBack})
	return fields
}

// CardSource looks cards up by serial number.
type CardSource interface {
	Card(ctx context.Context, serial string) (Card, error)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGCardSource reads cards from a PostgreSQL table with columns id, nombre,
// puntos and sucursal.
type PGCardSource struct {
	db    rowQuerier
	query string
}

// NewPGCardSource builds a card source over table.
func NewPGCardSource(q rowQuerier, table string) *PGCardSource {
	return &PGCardSource{
		db:    q,
		query: fmt.Sprintf("SELECT id::text, nombre, puntos, sucursal FROM %s WHERE id::text = $1", db.Ident(table)),
	}
}

// Card implements CardSource.
func (s *PGCardSource) Card(ctx context.Context, serial string) (Card, error) {
	var (
		card   Card
		branch pgtype.Text
	)
	err := s.db.QueryRow(ctx, s.query, serial).Scan(&card.ID, &card.Name, &card.Points, &branch)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Card{}, fmt.Errorf("%w: %s", ErrCardNotFound, serial)
		}
		return Card{}, fmt.Errorf("wallet: load card %s: %w", serial, err)
	}
	if branch.Valid {
		card.Branch = branch.String
	}
	return card, nil
}

// StaticCards is an in-memory CardSource used by demo mode and tests.
type StaticCards struct {
	mu    sync.RWMutex
	cards map[string]Card
}

// NewStaticCards indexes cards by id.
func NewStaticCards(cards ...Card) *StaticCards {
	s := &StaticCards{cards: make(map[string]Card, len(cards))}
	for _, c := range cards {
		s.cards[c.ID] = c
	}
	return s
}

// Card implements CardSource.
func (s *StaticCards) Card(_ context.Context, serial string) (Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[serial]
	if !ok {
		return Card{}, fmt.Errorf("%w: %s", ErrCardNotFound, serial)
	}
	return c, nil
}
