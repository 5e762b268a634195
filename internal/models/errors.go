package models

import "errors"

// Store sentinels shared by every storage backend
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
)
