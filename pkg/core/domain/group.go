package domain

import "time"

const DefaultGroupName = "default"

// Group owns a set of short links for one user.
type Group struct {
	ID        int64     `json:"-"`
	Gid       string    `json:"gid"`
	UserID    int64     `json:"-"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sort_order"`
	DelFlag   int       `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	LinkCount int64     `json:"short_link_count"`
}

// GroupSort is one entry of a bulk reorder.
type GroupSort struct {
	Gid       string `json:"gid"`
	SortOrder int    `json:"sort_order"`
}
