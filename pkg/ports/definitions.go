package ports

import (
	"context"
	"errors"
	"time"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
)

// ErrDuplicateKey is returned by repositories when an insert hits a unique
// constraint.
var ErrDuplicateKey = errors.New("duplicate key")

// LinkRepository defines storage operations for links
type LinkRepository interface {
	Create(ctx context.Context, link *domain.Link) error
	// FindActive returns nil, nil when no enabled, non-deleted record exists.
	FindActive(ctx context.Context, domainName, code string) (*domain.Link, error)
	// UpdateWhere applies patch to every row matching filter and returns the
	// number of rows changed. filter.UserID is required.
	UpdateWhere(ctx context.Context, filter domain.LinkFilter, patch domain.LinkPatch) (int64, error)
	Count(ctx context.Context, filter domain.LinkFilter) (int64, error)
	List(ctx context.Context, filter domain.LinkFilter, limit, offset int) ([]domain.Link, error)
	CountByGroup(ctx context.Context, userID int64, gids []string) ([]domain.GroupLinkCount, error)
	IncrementStats(ctx context.Context, domainName, code string, delta domain.VisitDelta) error
	Dump(ctx context.Context) ([]domain.Link, error) // For migration
}

type GroupRepository interface {
	Create(ctx context.Context, group *domain.Group) error
	CountActive(ctx context.Context, userID int64) (int64, error)
	FindByGid(ctx context.Context, userID int64, gid string) (*domain.Group, error)
	List(ctx context.Context, userID int64) ([]domain.Group, error)
	Rename(ctx context.Context, userID int64, gid, name string) (int64, error)
	Delete(ctx context.Context, userID int64, gid string) (int64, error)
	UpdateSortOrder(ctx context.Context, userID int64, gid string, sortOrder int) (int64, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsernames(ctx context.Context) ([]string, error)
	// Delete removes the row outright. It only undoes a registration that
	// could not finish.
	Delete(ctx context.Context, id int64) error
}

// CacheStore holds the positive (code -> url) and negative (code is known
// absent) entries. Writing one kind of entry for a code removes the other.
type CacheStore interface {
	GetPositive(ctx context.Context, key string) (string, bool, error)
	IsNegative(ctx context.Context, key string) (bool, error)
	SetPositive(ctx context.Context, key, url string, ttl time.Duration) error
	SetNegative(ctx context.Context, key string, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// ExistenceFilter answers "definitely absent" or "possibly present".
type ExistenceFilter interface {
	Add(ctx context.Context, key string) error
	MightContain(ctx context.Context, key string) (bool, error)
}

type Lock interface {
	Release(ctx context.Context) error
}

type Locker interface {
	// Acquire blocks until the lock is held or ctx is done.
	Acquire(ctx context.Context, key string) (Lock, error)
	// TryAcquire returns ok == false at once when another holder exists.
	TryAcquire(ctx context.Context, key string) (lock Lock, ok bool, err error)
}

// VisitorTracker remembers which visitors and IPs a link has already seen.
type VisitorTracker interface {
	// Seen records member under set and reports whether it was new.
	Seen(ctx context.Context, set, member string) (bool, error)
}

// LinkService defines the business logic operations
type LinkService interface {
	CreateLink(ctx context.Context, userID int64, params domain.CreateLinkParams) (*domain.CreateLinkResult, error)
	Resolve(ctx context.Context, code string) (string, error)
	UpdateLink(ctx context.Context, userID int64, params domain.UpdateLinkParams) error
	PageLinks(ctx context.Context, userID int64, gid string, page, size int) (*domain.Page[domain.Link], error)
	GroupLinkCount(ctx context.Context, userID int64, gids []string) ([]domain.GroupLinkCount, error)
}

type RecycleBinService interface {
	Save(ctx context.Context, userID int64, gid, code string) error
	Recover(ctx context.Context, userID int64, gid, code string) error
	Remove(ctx context.Context, userID int64, gid, code string) error
	Page(ctx context.Context, userID int64, gids []string, page, size int) (*domain.Page[domain.Link], error)
}

type GroupService interface {
	CreateGroup(ctx context.Context, userID int64, name string) (*domain.Group, error)
	ListGroups(ctx context.Context, userID int64) ([]domain.Group, error)
	UpdateGroup(ctx context.Context, userID int64, gid, name string) error
	DeleteGroup(ctx context.Context, userID int64, gid string) error
	SortGroups(ctx context.Context, userID int64, sorts []domain.GroupSort) error
}

type UserService interface {
	Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)
	GetUser(ctx context.Context, username string) (*domain.User, error)
}

type StatsService interface {
	RecordVisit(ctx context.Context, visit domain.Visit) error
}
