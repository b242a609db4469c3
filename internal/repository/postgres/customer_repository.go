package postgres

import (
	"context"
	"strings"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const customerColumns = `id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(phone_auth, ''),
	COALESCE(address, ''), COALESCE(auth_user_id, ''), created_at, updated_at`

// PostgresCustomerRepository реализация репозитория клиентов через PostgreSQL
type PostgresCustomerRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresCustomerRepository создает новый репозиторий клиентов через PostgreSQL
func NewPostgresCustomerRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresCustomerRepository {
	return &PostgresCustomerRepository{
		db:  db,
		log: log,
	}
}

func scanCustomer(row pgx.Row) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.PhoneAuth, &c.Address, &c.AuthUserID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetByID возвращает клиента по ID
func (r *PostgresCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	c, err := scanCustomer(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Customer{}, mapError(err, "customer", id.String())
	}
	return c, nil
}

// FindByAuthUserID ищет клиента по ID в провайдере идентификации
func (r *PostgresCustomerRepository) FindByAuthUserID(ctx context.Context, authUserID string) (domain.Customer, error) {
	if authUserID == "" {
		return domain.Customer{}, domain.ErrNotFound
	}
	query := `SELECT ` + customerColumns + ` FROM customers WHERE auth_user_id = $1`

	c, err := scanCustomer(r.db.QueryRow(ctx, query, authUserID))
	if err != nil {
		return domain.Customer{}, mapError(err, "customer", authUserID)
	}
	return c, nil
}

// FindByEmail ищет клиента по email без учета регистра
func (r *PostgresCustomerRepository) FindByEmail(ctx context.Context, email string) (domain.Customer, error) {
	if email == "" {
		return domain.Customer{}, domain.ErrNotFound
	}
	query := `SELECT ` + customerColumns + ` FROM customers WHERE LOWER(email) = $1 ORDER BY created_at LIMIT 1`

	c, err := scanCustomer(r.db.QueryRow(ctx, query, strings.ToLower(email)))
	if err != nil {
		return domain.Customer{}, mapError(err, "customer", email)
	}
	return c, nil
}

// FindByPhones ищет самого раннего клиента с одним из вариантов телефона
func (r *PostgresCustomerRepository) FindByPhones(ctx context.Context, phones []string) (domain.Customer, error) {
	if len(phones) == 0 {
		return domain.Customer{}, domain.ErrNotFound
	}
	query := `SELECT ` + customerColumns + ` FROM customers WHERE phone = ANY($1) ORDER BY created_at LIMIT 1`

	c, err := scanCustomer(r.db.QueryRow(ctx, query, phones))
	if err != nil {
		return domain.Customer{}, mapError(err, "customer", strings.Join(phones, ","))
	}
	return c, nil
}

// Create создает нового клиента
func (r *PostgresCustomerRepository) Create(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}

	query := `
		INSERT INTO customers (id, name, email, phone, phone_auth, address, auth_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + customerColumns

	created, err := scanCustomer(r.db.QueryRow(ctx, query,
		customer.ID,
		customer.Name,
		nullable(customer.Email),
		nullable(customer.Phone),
		nullable(customer.PhoneAuth),
		nullable(customer.Address),
		nullable(customer.AuthUserID),
	))
	if err != nil {
		r.log.Errorw("Failed to create customer", "error", err, "customerID", customer.ID)
		return domain.Customer{}, mapError(err, "customer", customer.ID.String())
	}

	r.log.Debugw("Customer created", "customerID", created.ID)
	return created, nil
}

// Update перезаписывает контактные данные клиента (последняя запись побеждает)
func (r *PostgresCustomerRepository) Update(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	query := `
		UPDATE customers
		SET name = $2, email = $3, phone = $4, address = $5,
		    auth_user_id = COALESCE($6, auth_user_id), phone_auth = COALESCE($7, phone_auth),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + customerColumns

	updated, err := scanCustomer(r.db.QueryRow(ctx, query,
		customer.ID,
		customer.Name,
		nullable(customer.Email),
		nullable(customer.Phone),
		nullable(customer.Address),
		nullable(customer.AuthUserID),
		nullable(customer.PhoneAuth),
	))
	if err != nil {
		return domain.Customer{}, mapError(err, "customer", customer.ID.String())
	}
	return updated, nil
}

// LinkAuthAccount сохраняет ID учетной записи и нормализованный телефон для входа
func (r *PostgresCustomerRepository) LinkAuthAccount(ctx context.Context, id uuid.UUID, authUserID, phoneAuth string) error {
	query := `UPDATE customers SET auth_user_id = $2, phone_auth = $3, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, authUserID, phoneAuth)
	if err != nil {
		return mapError(err, "customer", id.String())
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("customer", id.String())
	}
	return nil
}
