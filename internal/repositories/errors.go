package repositories

import "errors"

// ErrDuplicate — нарушение уникальности (повторная регистрация и т.п.).
var ErrDuplicate = errors.New("duplicate record")
