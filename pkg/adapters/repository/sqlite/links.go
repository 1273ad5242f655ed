package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

type LinkRepository struct {
	db *sql.DB
}

const linkColumns = `id, domain, short_uri, full_short_url, origin_url, gid, user_id,
	valid_date_type, valid_date, description, enable_status, del_flag, del_time,
	total_pv, total_uv, total_uip, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLink(s rowScanner) (*domain.Link, error) {
	var l domain.Link
	var validDate sql.NullTime
	err := s.Scan(
		&l.ID, &l.Domain, &l.ShortURI, &l.FullShortURL, &l.OriginURL, &l.Gid, &l.UserID,
		&l.ValidDateType, &validDate, &l.Describe, &l.EnableStatus, &l.DelFlag, &l.DelTime,
		&l.TotalPV, &l.TotalUV, &l.TotalUIP, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if validDate.Valid {
		l.ValidDate = &validDate.Time
	}
	return &l, nil
}

func (r *LinkRepository) Create(ctx context.Context, link *domain.Link) error {
	query := `INSERT INTO links (domain, short_uri, full_short_url, origin_url, gid, user_id,
			  valid_date_type, valid_date, description, enable_status, del_flag, del_time, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var validDate interface{}
	if link.ValidDate != nil {
		validDate = *link.ValidDate
	}

	res, err := r.db.ExecContext(ctx, query,
		link.Domain, link.ShortURI, link.FullShortURL, link.OriginURL, link.Gid, link.UserID,
		link.ValidDateType, validDate, link.Describe, link.EnableStatus, link.DelFlag, link.DelTime,
		link.CreatedAt, link.UpdatedAt,
	)
	if err != nil {
		return translate(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	link.ID = id
	return nil
}

func (r *LinkRepository) FindActive(ctx context.Context, domainName, code string) (*domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links
			  WHERE domain = ? AND short_uri = ? AND enable_status = 0 AND del_flag = 0`

	link, err := scanLink(r.db.QueryRowContext(ctx, query, domainName, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return link, nil
}

func linkWhere(f domain.LinkFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.Domain != "" {
		clauses = append(clauses, "domain = ?")
		args = append(args, f.Domain)
	}
	if f.ShortURI != "" {
		clauses = append(clauses, "short_uri = ?")
		args = append(args, f.ShortURI)
	}
	if f.UserID != 0 {
		clauses = append(clauses, "user_id = ?")
		args = append(args, f.UserID)
	}
	if len(f.Gids) > 0 {
		clauses = append(clauses, "gid IN ("+placeholders(len(f.Gids))+")")
		for _, g := range f.Gids {
			args = append(args, g)
		}
	}
	if f.EnableStatus != nil {
		clauses = append(clauses, "enable_status = ?")
		args = append(args, *f.EnableStatus)
	}
	if f.DelFlag != nil {
		clauses = append(clauses, "del_flag = ?")
		args = append(args, *f.DelFlag)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *LinkRepository) UpdateWhere(ctx context.Context, filter domain.LinkFilter, patch domain.LinkPatch) (int64, error) {
	if filter.UserID == 0 {
		return 0, errors.New("refusing to update links without an owner")
	}
	where, whereArgs := linkWhere(filter)

	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now()}

	if patch.OriginURL != nil {
		sets = append(sets, "origin_url = ?")
		args = append(args, *patch.OriginURL)
	}
	if patch.Gid != nil {
		sets = append(sets, "gid = ?")
		args = append(args, *patch.Gid)
	}
	if patch.ValidDateType != nil {
		sets = append(sets, "valid_date_type = ?")
		args = append(args, *patch.ValidDateType)
	}
	if patch.ClearValid {
		sets = append(sets, "valid_date = NULL")
	} else if patch.ValidDate != nil {
		sets = append(sets, "valid_date = ?")
		args = append(args, *patch.ValidDate)
	}
	if patch.Describe != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Describe)
	}
	if patch.EnableStatus != nil {
		sets = append(sets, "enable_status = ?")
		args = append(args, *patch.EnableStatus)
	}
	if patch.DelFlag != nil {
		sets = append(sets, "del_flag = ?")
		args = append(args, *patch.DelFlag)
	}
	if patch.DelTime != nil {
		sets = append(sets, "del_time = ?")
		args = append(args, *patch.DelTime)
	}

	query := "UPDATE links SET " + strings.Join(sets, ", ") + where
	res, err := r.db.ExecContext(ctx, query, append(args, whereArgs...)...)
	if err != nil {
		return 0, translate(err)
	}
	return res.RowsAffected()
}

func (r *LinkRepository) Count(ctx context.Context, filter domain.LinkFilter) (int64, error) {
	where, args := linkWhere(filter)

	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM links`+where, args...).Scan(&count)
	return count, err
}

func (r *LinkRepository) List(ctx context.Context, filter domain.LinkFilter, limit, offset int) ([]domain.Link, error) {
	where, args := linkWhere(filter)
	query := `SELECT ` + linkColumns + ` FROM links` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	return r.query(ctx, query, args...)
}

func (r *LinkRepository) CountByGroup(ctx context.Context, userID int64, gids []string) ([]domain.GroupLinkCount, error) {
	if len(gids) == 0 {
		return nil, nil
	}
	query := `SELECT gid, COUNT(*) FROM links
			  WHERE user_id = ? AND enable_status = 0 AND del_flag = 0 AND gid IN (` + placeholders(len(gids)) + `)
			  GROUP BY gid`
	args := []interface{}{userID}
	for _, g := range gids {
		args = append(args, g)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []domain.GroupLinkCount
	for rows.Next() {
		var c domain.GroupLinkCount
		if err := rows.Scan(&c.Gid, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *LinkRepository) IncrementStats(ctx context.Context, domainName, code string, delta domain.VisitDelta) error {
	query := `UPDATE links SET total_pv = total_pv + ?, total_uv = total_uv + ?, total_uip = total_uip + ?
			  WHERE domain = ? AND short_uri = ? AND del_flag = 0`
	_, err := r.db.ExecContext(ctx, query, delta.PV, delta.UV, delta.UIP, domainName, code)
	return err
}

func (r *LinkRepository) Dump(ctx context.Context) ([]domain.Link, error) {
	return r.query(ctx, `SELECT `+linkColumns+` FROM links ORDER BY id`)
}

func (r *LinkRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.Link, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

// Ensure interface compliance
var _ ports.LinkRepository = (*LinkRepository)(nil)
