package postgres

import (
	"errors"
	"fmt"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// mapError переводит ошибки драйвера в доменные
func mapError(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewNotFoundError(entity, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.NewDuplicateError(entity, pgErr.ConstraintName, id)
	}
	return fmt.Errorf("%s %s: %w", entity, id, err)
}

// nullable пустая строка хранится как NULL
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
