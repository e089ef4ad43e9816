package service

const maxPageSize = 100

// 各类分页查询的默认每页条数
const (
	DefaultBoardPageSize    = 20
	DefaultTaskPageSize     = 50
	DefaultActivityPageSize = 50
	maxSearchResults        = 50
)

// Page 是规范化后的分页参数，Page 从 1 开始。
type Page struct {
	Page  int
	Limit int
}

// NewPage 规范化分页参数：page 至少为 1，limit 为空时取 def，上限 100。
func NewPage(page, limit, def int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return Page{Page: page, Limit: limit}
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// Pagination 是返回给客户端的分页信息
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

func (p Page) Paginate(total int64) Pagination {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return Pagination{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}
