package domain

import "time"

const (
	ValidDatePermanent = 0
	ValidDateCustom    = 1

	EnableActive   = 0
	EnableDisabled = 1 // in the recycle bin
)

// Link is a short link record. (Domain, ShortURI) identifies it among
// records that are not permanently deleted.
type Link struct {
	ID            int64      `json:"id"`
	Domain        string     `json:"domain"`
	ShortURI      string     `json:"short_uri"`
	FullShortURL  string     `json:"full_short_url"`
	OriginURL     string     `json:"origin_url"`
	Gid           string     `json:"gid"`
	UserID        int64      `json:"-"`
	ValidDateType int        `json:"valid_date_type"`
	ValidDate     *time.Time `json:"valid_date,omitempty"`
	Describe      string     `json:"describe"`
	EnableStatus  int        `json:"enable_status"`
	DelFlag       int        `json:"-"`
	DelTime       int64      `json:"-"`
	TotalPV       int64      `json:"total_pv"`
	TotalUV       int64      `json:"total_uv"`
	TotalUIP      int64      `json:"total_uip"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Expired reports whether a custom validity window has already closed.
func (l *Link) Expired(now time.Time) bool {
	return l.ValidDateType == ValidDateCustom && l.ValidDate != nil && !l.ValidDate.After(now)
}

// LinkKey is the filter key of a short link.
func LinkKey(domain, code string) string {
	return domain + "/" + code
}

// LinkFilter narrows a conditional update or a listing. Nil fields are not
// part of the predicate.
type LinkFilter struct {
	Domain       string
	ShortURI     string
	UserID       int64
	Gids         []string
	EnableStatus *int
	DelFlag      *int
}

// LinkPatch holds the columns a conditional update writes. Nil fields are
// left untouched.
type LinkPatch struct {
	OriginURL     *string
	Gid           *string
	ValidDateType *int
	ValidDate     *time.Time
	ClearValid    bool
	Describe      *string
	EnableStatus  *int
	DelFlag       *int
	DelTime       *int64
}

// CreateLinkParams is the input to link creation.
type CreateLinkParams struct {
	OriginURL     string
	Gid           string
	ValidDateType int
	ValidDate     *time.Time
	Describe      string
}

// CreateLinkResult echoes what was created.
type CreateLinkResult struct {
	FullShortURL string `json:"full_short_url"`
	OriginURL    string `json:"origin_url"`
	Gid          string `json:"gid"`
}

type UpdateLinkParams struct {
	ShortURI      string
	OriginGid     string
	Gid           string
	OriginURL     string
	ValidDateType int
	ValidDate     *time.Time
	Describe      string
}

type GroupLinkCount struct {
	Gid   string `json:"gid"`
	Count int64  `json:"short_link_count"`
}

type Page[T any] struct {
	Records []T   `json:"records"`
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	Size    int   `json:"size"`
}

func IntPtr(v int) *int { return &v }
