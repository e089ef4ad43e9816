package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示尝试插入或更新的数据违反了唯一约束
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrCacheMiss 表示缓存中没有对应条目
	ErrCacheMiss = errors.New("repository: cache miss")
)

// 特定资源的错误 (基于通用错误创建，便于调用方按资源区分语义)
var (
	ErrUserNotFound   = ErrNotFound
	ErrBoardNotFound  = ErrNotFound
	ErrListNotFound   = ErrNotFound
	ErrTaskNotFound   = ErrNotFound
	ErrMemberNotFound = ErrNotFound
)

// ErrConcurrentModification 表示记录在事务加锁前已被其他请求修改 (例如任务被并发移走)
var ErrConcurrentModification = errors.New("repository: concurrent modification")
