package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/xianyu-agent/internal/account"
	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/fleet"
	"github.com/tbourn/xianyu-agent/internal/utils"
)

// Fleet is the account control surface behind the credential endpoints.
// Implementations serialize mutations and honor ctx.
type Fleet interface {
	Add(ctx context.Context, cred *domain.Credential) error
	Remove(ctx context.Context, id string) error
	Update(ctx context.Context, id, blob string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	List(ctx context.Context) ([]fleet.Entry, error)
	Status(ctx context.Context, id string) (account.Status, error)
	KeywordsOf(ctx context.Context, id string) ([]domain.Keyword, error)
}

// ItemSyncer pulls the item list of an account from the marketplace and
// edits the delivery flags of cached items.
type ItemSyncer interface {
	Sync(ctx context.Context, credentialID string) (int, error)
	SetFlags(ctx context.Context, credentialID, itemID string, multiSpec, multiQuantity *bool) (*domain.Item, error)
}

// Handlers groups the admin endpoints. Rule and channel tables are edited
// straight through repo on DB; anything touching a running account goes
// through Fleet.
type Handlers struct {
	fleet Fleet
	db    *gorm.DB
	items ItemSyncer
}

// New constructs Handlers.
func New(f Fleet, db *gorm.DB, items ItemSyncer) *Handlers {
	return &Handlers{fleet: f, db: db, items: items}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// Page is a page of T with its metadata.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// clampPagination bounds page and page_size to [1, ..] and [1, 100].
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// paginate slices all according to the page query parameters. Admin tables
// are small, so pages are cut in memory.
func paginate[T any](c *gin.Context, all []T) Page[T] {
	page, size := clampPagination(c)
	total := len(all)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	pages := (total + size - 1) / size
	items := all[start:end]
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   size,
			Total:      int64(total),
			TotalPages: pages,
			HasNext:    page < pages,
		},
	}
}
