package repository

import "errors"

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("not found")

// ErrDuplicate 违反唯一约束（如同一轮次内重复考核）
var ErrDuplicate = errors.New("duplicate record")
