package repository

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// ErrInsufficientStock 扣减会使数量变负，写入被拒绝
	ErrInsufficientStock = errors.New("insufficient stock")
)
