package service

import (
	"errors"
	"fmt"
)

// 上游与存储错误
var (
	ErrNotFound        = errors.New("tmdb: not found")
	ErrTransient       = errors.New("tmdb: transient failure")
	ErrUpstreamFailure = fmt.Errorf("%w: upstream reported failure", ErrTransient)
	ErrStorage         = errors.New("storage failure")
)

// CatalogError 携带操作上下文的上游错误
type CatalogError struct {
	Op  string // person、movie、popular
	ID  int64  // 人物/电影 ID 或页码
	Err error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("tmdb %s [%d]: %v", e.Op, e.ID, e.Err)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

func wrapCatalogError(op string, id int64, err error) error {
	return &CatalogError{Op: op, ID: id, Err: err}
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
