package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

type GroupRepository struct {
	db *sql.DB
}

func (r *GroupRepository) Create(ctx context.Context, group *domain.Group) error {
	query := `INSERT INTO link_groups (gid, user_id, name, sort_order, del_flag, created_at, updated_at)
			  VALUES (?, ?, ?, ?, 0, ?, ?)`

	res, err := r.db.ExecContext(ctx, query, group.Gid, group.UserID, group.Name, group.SortOrder, group.CreatedAt, group.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	group.ID = id
	return nil
}

func (r *GroupRepository) CountActive(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM link_groups WHERE user_id = ? AND del_flag = 0`, userID).Scan(&count)
	return count, err
}

func (r *GroupRepository) FindByGid(ctx context.Context, userID int64, gid string) (*domain.Group, error) {
	query := `SELECT id, gid, user_id, name, sort_order, del_flag, created_at, updated_at
			  FROM link_groups WHERE user_id = ? AND gid = ? AND del_flag = 0`

	var g domain.Group
	err := r.db.QueryRowContext(ctx, query, userID, gid).Scan(
		&g.ID, &g.Gid, &g.UserID, &g.Name, &g.SortOrder, &g.DelFlag, &g.CreatedAt, &g.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GroupRepository) List(ctx context.Context, userID int64) ([]domain.Group, error) {
	query := `SELECT id, gid, user_id, name, sort_order, del_flag, created_at, updated_at
			  FROM link_groups WHERE user_id = ? AND del_flag = 0
			  ORDER BY sort_order DESC, updated_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Gid, &g.UserID, &g.Name, &g.SortOrder, &g.DelFlag, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *GroupRepository) Rename(ctx context.Context, userID int64, gid, name string) (int64, error) {
	return r.exec(ctx, `UPDATE link_groups SET name = ?, updated_at = ? WHERE user_id = ? AND gid = ? AND del_flag = 0`,
		name, time.Now(), userID, gid)
}

func (r *GroupRepository) Delete(ctx context.Context, userID int64, gid string) (int64, error) {
	return r.exec(ctx, `UPDATE link_groups SET del_flag = 1, updated_at = ? WHERE user_id = ? AND gid = ? AND del_flag = 0`,
		time.Now(), userID, gid)
}

func (r *GroupRepository) UpdateSortOrder(ctx context.Context, userID int64, gid string, sortOrder int) (int64, error) {
	return r.exec(ctx, `UPDATE link_groups SET sort_order = ? WHERE user_id = ? AND gid = ? AND del_flag = 0`,
		sortOrder, userID, gid)
}

func (r *GroupRepository) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ ports.GroupRepository = (*GroupRepository)(nil)
