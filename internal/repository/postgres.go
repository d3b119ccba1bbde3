package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/rental-billing/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет fn при временных ошибках. Применяется только там,
// где повтор не может выдать номер или записать строку дважды.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if i == len(delays) || !isRetryable(err) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping проверяет доступность БД.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

const saleColumns = `id, house_id, client_name, client_tax_id, check_in, check_out, guests,
	contract_value, discount, housekeeper_value, concierge_value, additional_sales, status,
	nights, net_value, sales_commission, total_additional_sales, total_revenue, contribution_margin,
	created_at, updated_at`

func scanSale(row pgx.Row) (*model.Sale, error) {
	var (
		s          model.Sale
		status     string
		additional []byte
	)
	err := row.Scan(
		&s.ID, &s.HouseID, &s.ClientName, &s.ClientTaxID, &s.Stay.CheckIn, &s.Stay.CheckOut, &s.Guests,
		&s.ContractValue, &s.Discount, &s.HousekeeperValue, &s.ConciergeValue, &additional, &status,
		&s.Totals.Nights, &s.Totals.NetValue, &s.Totals.SalesCommission, &s.Totals.TotalAdditionalSales,
		&s.Totals.TotalRevenue, &s.Totals.ContributionMargin,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(additional, &s.Additional); err != nil {
		return nil, fmt.Errorf("decode additional sales: %w", err)
	}
	s.Status = model.SaleStatus(status)

	return &s, nil
}

// lockHouse сериализует записи договоров одного дома до конца транзакции
// и возвращает его активные договоры.
func (r *PostgresRepository) lockHouse(ctx context.Context, tx pgx.Tx, houseID string) ([]model.Sale, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, houseID); err != nil {
		return nil, fmt.Errorf("lock house: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT `+saleColumns+`
		 FROM sales
		 WHERE house_id = $1 AND status <> $2
		 ORDER BY check_in`,
		houseID, string(model.SaleStatusCancelled),
	)
	if err != nil {
		return nil, fmt.Errorf("select house sales: %w", err)
	}
	defer rows.Close()

	var res []model.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		res = append(res, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateSale сохраняет новый договор, если guard разрешает запись.
func (r *PostgresRepository) CreateSale(ctx context.Context, s *model.Sale, guard Guard) error {
	additional, err := json.Marshal(s.Additional)
	if err != nil {
		return fmt.Errorf("encode additional sales: %w", err)
	}

	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		existing, err := r.lockHouse(ctx, tx, s.HouseID)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(existing); err != nil {
				return err
			}
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO sales (id, house_id, client_name, client_tax_id, check_in, check_out, guests,
				contract_value, discount, housekeeper_value, concierge_value, additional_sales, status,
				nights, net_value, sales_commission, total_additional_sales, total_revenue, contribution_margin)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			 RETURNING created_at, updated_at`,
			s.ID, s.HouseID, s.ClientName, s.ClientTaxID, s.Stay.CheckIn, s.Stay.CheckOut, s.Guests,
			s.ContractValue, s.Discount, s.HousekeeperValue, s.ConciergeValue, additional, string(s.Status),
			s.Totals.Nights, s.Totals.NetValue, s.Totals.SalesCommission, s.Totals.TotalAdditionalSales,
			s.Totals.TotalRevenue, s.Totals.ContributionMargin,
		).Scan(&s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return ErrSaleExists
			}
			return fmt.Errorf("insert sale: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// UpdateSale перезаписывает базовые и производные поля договора, не трогая статус.
func (r *PostgresRepository) UpdateSale(ctx context.Context, s *model.Sale, guard Guard) error {
	additional, err := json.Marshal(s.Additional)
	if err != nil {
		return fmt.Errorf("encode additional sales: %w", err)
	}

	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		existing, err := r.lockHouse(ctx, tx, s.HouseID)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(existing); err != nil {
				return err
			}
		}

		var status string
		err = tx.QueryRow(ctx,
			`UPDATE sales SET house_id = $2, client_name = $3, client_tax_id = $4, check_in = $5, check_out = $6,
				guests = $7, contract_value = $8, discount = $9, housekeeper_value = $10, concierge_value = $11,
				additional_sales = $12, nights = $13, net_value = $14, sales_commission = $15,
				total_additional_sales = $16, total_revenue = $17, contribution_margin = $18, updated_at = NOW()
			 WHERE id = $1
			 RETURNING status, created_at, updated_at`,
			s.ID, s.HouseID, s.ClientName, s.ClientTaxID, s.Stay.CheckIn, s.Stay.CheckOut,
			s.Guests, s.ContractValue, s.Discount, s.HousekeeperValue, s.ConciergeValue,
			additional, s.Totals.Nights, s.Totals.NetValue, s.Totals.SalesCommission,
			s.Totals.TotalAdditionalSales, s.Totals.TotalRevenue, s.Totals.ContributionMargin,
		).Scan(&status, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrSaleNotFound
			}
			return fmt.Errorf("update sale: %w", err)
		}
		s.Status = model.SaleStatus(status)

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// UpdateSaleStatus меняет статус договора, проверяя допустимость перехода под блокировкой строки.
func (r *PostgresRepository) UpdateSaleStatus(ctx context.Context, id uuid.UUID, next model.SaleStatus) (*model.Sale, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	s, err := scanSale(tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("select sale: %w", err)
	}

	if !s.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidSaleTransition, s.Status, next)
	}

	err = tx.QueryRow(ctx,
		`UPDATE sales SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		id, string(next),
	).Scan(&s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update sale status: %w", err)
	}
	s.Status = next

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s, nil
}

// GetSale возвращает договор по идентификатору.
func (r *PostgresRepository) GetSale(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var s *model.Sale
	err := r.withRetry(ctx, func() error {
		var err error
		s, err = scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	return s, nil
}

// ListHouseSales возвращает договоры дома, упорядоченные по дате заезда.
func (r *PostgresRepository) ListHouseSales(ctx context.Context, houseID string, includeCancelled bool) ([]model.Sale, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+saleColumns+`
		 FROM sales
		 WHERE house_id = $1 AND ($2 OR status <> $3)
		 ORDER BY check_in`,
		houseID, includeCancelled, string(model.SaleStatusCancelled),
	)
	if err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	defer rows.Close()

	var res []model.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		res = append(res, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// NextNumber атомарно увеличивает счётчик пары (эмитент, серия) и возвращает новый номер.
// Первый вызов для новой пары возвращает 1. Повторов нет: при неясном исходе коммита номер
// мог быть выдан, и повтор оставил бы дыру в нумерации.
func (r *PostgresRepository) NextNumber(ctx context.Context, issuerID, series string) (int64, error) {
	var next int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sequence_counters (issuer_id, series, last_number, last_allocated_at)
		 VALUES ($1, $2, 1, NOW())
		 ON CONFLICT (issuer_id, series)
		 DO UPDATE SET last_number = sequence_counters.last_number + 1, last_allocated_at = NOW()
		 RETURNING last_number`,
		issuerID, series,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("allocate number: %w", err)
	}
	return next, nil
}

// GetSequence возвращает состояние счётчика, для неизвестной пары нулевой.
func (r *PostgresRepository) GetSequence(ctx context.Context, issuerID, series string) (*model.SequenceCounter, error) {
	c := model.SequenceCounter{IssuerID: issuerID, Series: series}
	err := r.pool.QueryRow(ctx,
		`SELECT last_number, last_allocated_at FROM sequence_counters WHERE issuer_id = $1 AND series = $2`,
		issuerID, series,
	).Scan(&c.LastNumber, &c.LastAllocatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get sequence: %w", err)
	}
	return &c, nil
}

const issuerColumns = `issuer_id, name, tax_id, registration_id, default_series, auto_issue,
	environment, tax_rate, region_code, created_at, updated_at`

func scanIssuerConfig(row pgx.Row) (*model.IssuerConfig, error) {
	var (
		c   model.IssuerConfig
		env string
	)
	err := row.Scan(&c.IssuerID, &c.Name, &c.TaxID, &c.RegistrationID, &c.DefaultSeries, &c.AutoIssue,
		&env, &c.TaxRate, &c.RegionCode, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Environment = model.Environment(env)
	return &c, nil
}

// GetOrCreateIssuerConfig возвращает настройки эмитента, создавая defaults при первом обращении.
func (r *PostgresRepository) GetOrCreateIssuerConfig(ctx context.Context, defaults model.IssuerConfig) (*model.IssuerConfig, bool, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`INSERT INTO issuer_configs (issuer_id, name, tax_id, registration_id, default_series, auto_issue,
			environment, tax_rate, region_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (issuer_id) DO NOTHING`,
		defaults.IssuerID, defaults.Name, defaults.TaxID, defaults.RegistrationID, defaults.DefaultSeries,
		defaults.AutoIssue, string(defaults.Environment), defaults.TaxRate, defaults.RegionCode,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert issuer config: %w", err)
	}

	c, err := scanIssuerConfig(r.pool.QueryRow(ctx,
		`SELECT `+issuerColumns+` FROM issuer_configs WHERE issuer_id = $1`, defaults.IssuerID))
	if err != nil {
		return nil, false, fmt.Errorf("select issuer config: %w", err)
	}

	return c, cmdTag.RowsAffected() == 1, nil
}

// SaveIssuerConfig создаёт или обновляет настройки эмитента.
func (r *PostgresRepository) SaveIssuerConfig(ctx context.Context, c *model.IssuerConfig) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO issuer_configs (issuer_id, name, tax_id, registration_id, default_series, auto_issue,
			environment, tax_rate, region_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (issuer_id) DO UPDATE SET
			name = EXCLUDED.name, tax_id = EXCLUDED.tax_id, registration_id = EXCLUDED.registration_id,
			default_series = EXCLUDED.default_series, auto_issue = EXCLUDED.auto_issue,
			environment = EXCLUDED.environment, tax_rate = EXCLUDED.tax_rate,
			region_code = EXCLUDED.region_code, updated_at = NOW()
		 RETURNING created_at, updated_at`,
		c.IssuerID, c.Name, c.TaxID, c.RegistrationID, c.DefaultSeries, c.AutoIssue,
		string(c.Environment), c.TaxRate, c.RegionCode,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save issuer config: %w", err)
	}
	return nil
}

const documentColumns = `id, sale_id, issuer_id, number, series, code, access_key,
	issuer_name, issuer_tax_id, recipient_name, recipient_tax_id,
	daily_rate_value, concierge_value, additional_services_value, discount_value,
	subtotal, tax_rate, tax_value, total_value, status,
	authority_number, authority_access_key, document_xml, document_pdf_url, authorized_at,
	failure_reason, failure_count, last_attempt_at, cancel_reason, issued_at, created_at, updated_at`

func scanDocument(row pgx.Row) (*model.FiscalDocument, error) {
	var (
		d            model.FiscalDocument
		status       string
		authNumber   *string
		authKey      *string
		xml          *string
		pdf          *string
		authorizedAt *time.Time
	)
	err := row.Scan(
		&d.ID, &d.SaleID, &d.IssuerID, &d.Number, &d.Series, &d.Code, &d.AccessKey,
		&d.Issuer.Name, &d.Issuer.TaxID, &d.Recipient.Name, &d.Recipient.TaxID,
		&d.Amounts.DailyRate, &d.Amounts.Concierge, &d.Amounts.AdditionalServices, &d.Amounts.Discount,
		&d.Amounts.Subtotal, &d.Amounts.TaxRate, &d.Amounts.Tax, &d.Amounts.Total, &status,
		&authNumber, &authKey, &xml, &pdf, &authorizedAt,
		&d.FailureReason, &d.FailureCount, &d.LastAttemptAt, &d.CancelReason, &d.IssuedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = model.DocumentStatus(status)
	if authNumber != nil {
		d.Authorization = &model.Authorization{
			Number:      *authNumber,
			AccessKey:   deref(authKey),
			DocumentXML: deref(xml),
			DocumentPDF: deref(pdf),
		}
		if authorizedAt != nil {
			d.Authorization.AuthorizedAt = *authorizedAt
		}
	}

	return &d, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CreateDocument сохраняет новый фискальный документ.
func (r *PostgresRepository) CreateDocument(ctx context.Context, d *model.FiscalDocument) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO fiscal_documents (id, sale_id, issuer_id, number, series, code, access_key,
			issuer_name, issuer_tax_id, recipient_name, recipient_tax_id,
			daily_rate_value, concierge_value, additional_services_value, discount_value,
			subtotal, tax_rate, tax_value, total_value, status, issued_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		 RETURNING created_at, updated_at`,
		d.ID, d.SaleID, d.IssuerID, d.Number, d.Series, d.Code, d.AccessKey,
		d.Issuer.Name, d.Issuer.TaxID, d.Recipient.Name, d.Recipient.TaxID,
		d.Amounts.DailyRate, d.Amounts.Concierge, d.Amounts.AdditionalServices, d.Amounts.Discount,
		d.Amounts.Subtotal, d.Amounts.TaxRate, d.Amounts.Tax, d.Amounts.Total, string(d.Status), d.IssuedAt,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateNumber, d.Code)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetDocument возвращает фискальный документ по идентификатору.
func (r *PostgresRepository) GetDocument(ctx context.Context, id uuid.UUID) (*model.FiscalDocument, error) {
	var d *model.FiscalDocument
	err := r.withRetry(ctx, func() error {
		var err error
		d, err = scanDocument(r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM fiscal_documents WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// ListSaleDocuments возвращает документы договора в порядке создания.
func (r *PostgresRepository) ListSaleDocuments(ctx context.Context, saleID uuid.UUID) ([]model.FiscalDocument, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM fiscal_documents WHERE sale_id = $1 ORDER BY created_at`,
		saleID,
	)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer rows.Close()

	var res []model.FiscalDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		res = append(res, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// BeginProcessing переводит документ из pending или error в processing одной командой.
// Если документ в другом статусе, возвращает его текущее состояние и started=false.
func (r *PostgresRepository) BeginProcessing(ctx context.Context, id uuid.UUID, at time.Time) (*model.FiscalDocument, bool, error) {
	d, err := scanDocument(r.pool.QueryRow(ctx,
		`UPDATE fiscal_documents SET status = $2, last_attempt_at = $3, updated_at = NOW()
		 WHERE id = $1 AND status IN ($4, $5)
		 RETURNING `+documentColumns,
		id, string(model.DocumentStatusProcessing), at,
		string(model.DocumentStatusPending), string(model.DocumentStatusError),
	))
	if err == nil {
		return d, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("begin processing: %w", err)
	}

	d, err = r.GetDocument(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return d, false, nil
}

// FinishProcessing фиксирует результат обработки документа, находящегося в processing.
func (r *PostgresRepository) FinishProcessing(ctx context.Context, d *model.FiscalDocument) error {
	var (
		authNumber, authKey, xml, pdf *string
		authorizedAt                  *time.Time
	)
	if a := d.Authorization; a != nil {
		authNumber, authKey, xml, pdf = &a.Number, &a.AccessKey, &a.DocumentXML, &a.DocumentPDF
		authorizedAt = &a.AuthorizedAt
	}

	err := r.pool.QueryRow(ctx,
		`UPDATE fiscal_documents SET status = $2, authority_number = $3, authority_access_key = $4,
			document_xml = $5, document_pdf_url = $6, authorized_at = $7,
			failure_reason = $8, failure_count = $9, last_attempt_at = $10, updated_at = NOW()
		 WHERE id = $1 AND status = $11
		 RETURNING updated_at`,
		d.ID, string(d.Status), authNumber, authKey, xml, pdf, authorizedAt,
		d.FailureReason, d.FailureCount, d.LastAttemptAt, string(model.DocumentStatusProcessing),
	).Scan(&d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStaleDocument
		}
		return fmt.Errorf("finish processing: %w", err)
	}
	return nil
}

// CancelDocument отменяет документ в любом статусе, кроме cancelled.
func (r *PostgresRepository) CancelDocument(ctx context.Context, id uuid.UUID, reason string) (*model.FiscalDocument, error) {
	d, err := scanDocument(r.pool.QueryRow(ctx,
		`UPDATE fiscal_documents SET status = $2, cancel_reason = $3, updated_at = NOW()
		 WHERE id = $1 AND status <> $2
		 RETURNING `+documentColumns,
		id, string(model.DocumentStatusCancelled), reason,
	))
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("cancel document: %w", err)
	}

	if _, err := r.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrAlreadyCancelled
}
