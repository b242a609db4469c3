package repository

import "github.com/Dhoini/subscription-commerce/internal/domain"

// Ошибки репозиториев совпадают с доменными, чтобы errors.Is работал на всех слоях
var (
	// ErrNotFound запись не найдена
	ErrNotFound = domain.ErrNotFound

	// ErrDuplicate дубликат записи
	ErrDuplicate = domain.ErrDuplicate
)
