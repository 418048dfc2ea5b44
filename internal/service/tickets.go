package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"orderhub/internal/model"
)

const (
	ticketOpen   = 0
	ticketClosed = 1
)

// TicketService reads the customer-care ticketing database. Automatic
// tickets are excluded everywhere.
type TicketService struct {
	db *sql.DB
}

func NewTicketService(db *sql.DB) *TicketService {
	return &TicketService{db: db}
}

func (s *TicketService) Stats(ctx context.Context) (*model.TicketStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = $1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = $2 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = $2 AND to_timestamp(last_update)::date = CURRENT_DATE THEN 1 ELSE 0 END), 0)
		FROM ticket
		WHERE is_auto = 0 OR is_auto IS NULL
	`, ticketOpen, ticketClosed)

	var st model.TicketStats
	if err := row.Scan(&st.Total, &st.Open, &st.Closed, &st.TodayClosed); err != nil {
		return nil, fmt.Errorf("ticket stats: %w", err)
	}
	return &st, nil
}

// OpenTickets returns open tickets, most recently updated first.
func (s *TicketService) OpenTickets(ctx context.Context, limit int) ([]model.Ticket, error) {
	return s.list(ctx, `
		SELECT t.id, t.email, t.title, t.last_update, t.status, c.nome, c.cognome, c.phone
		FROM ticket t
		LEFT JOIN customer c ON t.user_id_id = c.id
		WHERE t.status = $1 AND (t.is_auto = 0 OR t.is_auto IS NULL)
		ORDER BY t.last_update DESC
		LIMIT $2
	`, ticketOpen, limit)
}

// RecentClosed returns tickets closed today.
func (s *TicketService) RecentClosed(ctx context.Context, limit int) ([]model.Ticket, error) {
	return s.list(ctx, `
		SELECT t.id, t.email, t.title, t.last_update, t.status, c.nome, c.cognome, c.phone
		FROM ticket t
		LEFT JOIN customer c ON t.user_id_id = c.id
		WHERE t.status = $1 AND (t.is_auto = 0 OR t.is_auto IS NULL)
		  AND to_timestamp(t.last_update)::date = CURRENT_DATE
		ORDER BY t.last_update DESC
		LIMIT $2
	`, ticketClosed, limit)
}

func (s *TicketService) list(ctx context.Context, query string, status, limit int) ([]model.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		var (
			t                  model.Ticket
			email, title       sql.NullString
			first, last, phone sql.NullString
			updated            int64
		)
		if err := rows.Scan(&t.ID, &email, &title, &updated, &t.Status, &first, &last, &phone); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		t.Email = email.String
		t.Title = title.String
		if t.Title == "" {
			t.Title = "Senza titolo"
		}
		t.Customer = strings.TrimSpace(first.String + " " + last.String)
		if t.Customer == "" {
			t.Customer = "N/A"
		}
		t.Phone = phone.String
		t.LastUpdate = time.Unix(updated, 0).UTC()
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return tickets, nil
}
