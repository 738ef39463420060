package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

// InsertTx appends an entry inside the caller's business transaction.
func InsertTx(ctx context.Context, tx pgx.Tx, entry Entry) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
    INSERT INTO audit_logs (user_id, user_role, company_id, action, entity_type, entity_id, old_data, new_data, changes, reason, ip_address, user_agent, session_id, request_id)
    VALUES (NULLIF($1,'')::uuid,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
    RETURNING id
  `, entry.UserID, entry.UserRole, entry.CompanyID, string(entry.Action), string(entry.EntityType), entry.EntityID,
		nullJSON(entry.OldData), nullJSON(entry.NewData), nullJSON(entry.Changes),
		entry.Reason, entry.IPAddress, entry.UserAgent, entry.SessionID, entry.RequestID).Scan(&id)
	return id, err
}

func (s *Store) Count(ctx context.Context, companyID string, filter Filter) (int, error) {
	query, args := buildBaseQuery("SELECT COUNT(1)", companyID, filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) List(ctx context.Context, companyID string, filter Filter, includeDetails bool, limit, offset int) ([]Entry, error) {
	selectCols := "id, created_at, COALESCE(user_id::text, ''), user_role, company_id, action, entity_type, entity_id, reason, ip_address, user_agent, session_id, request_id"
	if includeDetails {
		selectCols += ", old_data, new_data, changes"
	}
	query, args := buildBaseQuery("SELECT "+selectCols, companyID, filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		dest := []any{&e.ID, &e.CreatedAt, &e.UserID, &e.UserRole, &e.CompanyID, &e.Action, &e.EntityType, &e.EntityID, &e.Reason, &e.IPAddress, &e.UserAgent, &e.SessionID, &e.RequestID}
		if includeDetails {
			dest = append(dest, &e.OldData, &e.NewData, &e.Changes)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func buildBaseQuery(prefix, companyID string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_logs WHERE company_id = $1"
	args := []any{companyID}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", len(args)+1)
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		query += fmt.Sprintf(" AND entity_type = $%d", len(args)+1)
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		query += fmt.Sprintf(" AND entity_id = $%d", len(args)+1)
		args = append(args, filter.EntityID)
	}
	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id::text = $%d", len(args)+1)
		args = append(args, filter.UserID)
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", len(args)+1)
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND created_at < $%d", len(args)+1)
		args = append(args, *filter.To)
	}
	return query, args
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
