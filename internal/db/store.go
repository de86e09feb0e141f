package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ujpm/GGH-website-sub000/internal/funding"
	"github.com/ujpm/GGH-website-sub000/internal/models"
)

// FundingStore is the PostgreSQL funding.Repository.
type FundingStore struct {
	pool *pgxpool.Pool
}

func NewFundingStore(pool *pgxpool.Pool) *FundingStore {
	return &FundingStore{pool: pool}
}

var _ funding.Repository = (*FundingStore)(nil)

const columns = `title, organization, description, summary, description_text, type, deadline, status,
	funding_info, criteria, restrictions, requirements, tags, featured, application_url,
	published_at, created_at, updated_at, version`

const (
	insertCols = "id, " + columns
	selectCols = "id::text, " + columns
)

// sortColumns maps wire sort names to columns.
var sortColumns = map[string]string{
	funding.SortDeadline:     "deadline",
	funding.SortCreatedAt:    "created_at",
	funding.SortUpdatedAt:    "updated_at",
	funding.SortPublishedAt:  "published_at",
	funding.SortTitle:        "title",
	funding.SortOrganization: "organization",
	funding.SortType:         "type",
	funding.SortStatus:       "status",
	funding.SortFeatured:     "featured",
}

func scanCall(scan func(dest ...any) error) (models.FundingCall, error) {
	var c models.FundingCall
	var fundingInfo []byte
	var typ, status string

	err := scan(
		&c.ID, &c.Title, &c.Organization, &c.Description, &c.Summary, &c.DescriptionText, &typ, &c.Deadline, &status,
		&fundingInfo, &c.Eligibility.Criteria, &c.Eligibility.Restrictions, &c.Requirements, &c.Tags,
		&c.Featured, &c.ApplicationURL, &c.PublishedAt, &c.CreatedAt, &c.UpdatedAt, &c.Version,
	)
	if err != nil {
		return c, err
	}
	c.Type = models.CallType(typ)
	c.Status = models.Status(status)
	if len(fundingInfo) > 0 {
		if err := json.Unmarshal(fundingInfo, &c.FundingInfo); err != nil {
			return c, fmt.Errorf("decode funding_info: %w", err)
		}
	}
	c.Deadline = c.Deadline.UTC()
	c.PublishedAt = c.PublishedAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

// writeArgs returns the column values shared by insert and replace, starting
// at id.
func writeArgs(id uuid.UUID, c *models.FundingCall) ([]any, error) {
	fi, err := json.Marshal(c.FundingInfo)
	if err != nil {
		return nil, fmt.Errorf("encode funding_info: %w", err)
	}
	return []any{
		id, c.Title, c.Organization, c.Description, c.Summary, c.DescriptionText, string(c.Type), c.Deadline, string(c.Status),
		fi, nonNil(c.Eligibility.Criteria), nonNil(c.Eligibility.Restrictions), nonNil(c.Requirements), nonNil(c.Tags),
		c.Featured, c.ApplicationURL, c.PublishedAt, c.CreatedAt, c.UpdatedAt, c.Version,
	}, nil
}

func (s *FundingStore) Insert(ctx context.Context, c *models.FundingCall) error {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return fmt.Errorf("insert failed: invalid id %q: %w", c.ID, err)
	}
	args, err := writeArgs(id, c)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO funding_calls (`+insertCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`, args...)
	if err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}
	return nil
}

func (s *FundingStore) Get(ctx context.Context, id string) (*models.FundingCall, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, funding.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, "SELECT "+selectCols+" FROM funding_calls WHERE id = $1", uid)
	c, err := scanCall(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, funding.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	return &c, nil
}

// Replace overwrites every mutable column. With expectedVersion > 0 the
// version check and the write happen in one statement.
func (s *FundingStore) Replace(ctx context.Context, c *models.FundingCall, expectedVersion int) error {
	uid, ok := parseID(c.ID)
	if !ok {
		return funding.ErrNotFound
	}
	args, err := writeArgs(uid, c)
	if err != nil {
		return err
	}
	sql := `
		UPDATE funding_calls SET
			title = $2, organization = $3, description = $4, summary = $5, description_text = $6,
			type = $7, deadline = $8, status = $9, funding_info = $10, criteria = $11, restrictions = $12,
			requirements = $13, tags = $14, featured = $15, application_url = $16,
			published_at = $17, created_at = $18, updated_at = $19, version = $20
		WHERE id = $1`
	if expectedVersion > 0 {
		sql += " AND version = $21"
		args = append(args, expectedVersion)
	}

	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if expectedVersion > 0 {
		// Distinguish a missing row from a stale version.
		var exists bool
		if err := s.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM funding_calls WHERE id = $1)", uid).Scan(&exists); err != nil {
			return fmt.Errorf("update failed: %w", err)
		}
		if exists {
			return funding.ErrVersionConflict
		}
	}
	return funding.ErrNotFound
}

func (s *FundingStore) Delete(ctx context.Context, id string) error {
	uid, ok := parseID(id)
	if !ok {
		return funding.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM funding_calls WHERE id = $1", uid)
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return funding.ErrNotFound
	}
	return nil
}

func (s *FundingStore) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	uid, ok := parseID(id)
	if !ok {
		return funding.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, "UPDATE funding_calls SET status = $2 WHERE id = $1", uid, string(status))
	if err != nil {
		return fmt.Errorf("status update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return funding.ErrNotFound
	}
	return nil
}

func (s *FundingStore) Count(ctx context.Context, f funding.Filter) (int, error) {
	where, args := buildWhere(f)
	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM funding_calls "+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return total, nil
}

func (s *FundingStore) Find(ctx context.Context, f funding.Filter, order funding.Sort, skip, limit int) ([]models.FundingCall, error) {
	where, args := buildWhere(f)
	sql := fmt.Sprintf("SELECT %s FROM funding_calls %s %s", selectCols, where, orderClause(order))
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, skip)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	calls := []models.FundingCall{}
	for rows.Next() {
		c, err := scanCall(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return calls, nil
}

// buildWhere turns a filter into a WHERE clause with positional args. Search
// uses plainto_tsquery, which ANDs its terms.
func buildWhere(f funding.Filter) (string, []any) {
	where := "WHERE 1=1"
	var args []any
	argIdx := 1

	if f.Type != nil {
		where += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, string(*f.Type))
		argIdx++
	}
	if f.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(*f.Status))
		argIdx++
	}
	if f.Featured != nil {
		where += fmt.Sprintf(" AND featured = $%d", argIdx)
		args = append(args, *f.Featured)
		argIdx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND search_vector @@ plainto_tsquery('simple', $%d)", argIdx)
		args = append(args, f.Search)
	}
	return where, args
}

func orderClause(order funding.Sort) string {
	col, ok := sortColumns[order.Field]
	if !ok {
		col = "deadline"
	}
	dir := "ASC"
	if order.Desc {
		dir = "DESC"
	}
	// seq keeps ties in insertion order regardless of direction.
	return fmt.Sprintf("ORDER BY %s %s, seq ASC", col, dir)
}

// parseID rejects ids that cannot be a stored key, so lookups compare the
// uuid column directly and use the primary key index.
func parseID(id string) (uuid.UUID, bool) {
	uid, err := uuid.Parse(id)
	return uid, err == nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
