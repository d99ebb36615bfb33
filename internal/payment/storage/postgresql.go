package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"ms-checkout/internal/config"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQLStoreWithDB builds the link store on an existing connection.
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) (*PostgreSQLStore, error) {
	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize payment link tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize payment link tables: %w", err)
	}

	log.Info("DATABASE", "Payment link storage initialized with existing connection")
	return store, nil
}

func NewPostgreSQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*PostgreSQLStore, error) {
	log.LogDatabase("CONNECT", "postgresql", fmt.Sprintf("Connecting to PostgreSQL at %s:%s", cfg.Host, cfg.Port))

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Error("DATABASE", "Failed to open PostgreSQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		log.Error("DATABASE", "Failed to ping PostgreSQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "postgresql", "PostgreSQL connection established and payment link tables initialized")
	return store, nil
}

func (s *PostgreSQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "postgresql", "Creating payment_links table if not exists")

	linksQuery := `
    CREATE TABLE IF NOT EXISTS payment_links (
        payment_id VARCHAR(36) PRIMARY KEY,
        order_id VARCHAR(36) NOT NULL,
        order_code BIGINT NOT NULL,
        amount DECIMAL(12,2) NOT NULL,
        status VARCHAR(50) NOT NULL,
        url VARCHAR(500),
        created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );
    `

	if _, err := s.db.Exec(linksQuery); err != nil {
		return fmt.Errorf("failed to create payment_links table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_payment_links_order_id ON payment_links(order_id);",
		"CREATE INDEX IF NOT EXISTS idx_payment_links_order_code ON payment_links(order_code);",
		"CREATE INDEX IF NOT EXISTS idx_payment_links_status ON payment_links(status);",
	}

	for _, indexQuery := range indexes {
		if _, err := s.db.Exec(indexQuery); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	s.log.LogDatabase("SUCCESS", "postgresql", "Payment link tables and indexes ready")
	return nil
}

// SavePaymentLink records a checkout link handed to the user.
func (s *PostgreSQLStore) SavePaymentLink(link *models.PaymentLink) error {
	s.log.LogDatabase("INSERT", "postgresql", fmt.Sprintf("Saving payment link %s", link.PaymentID))

	query := `
    INSERT INTO payment_links (
        payment_id, order_id, order_code, amount, status, url, created_date
    ) VALUES ($1, $2, $3, $4, $5, $6, $7)
    `

	_, err := s.db.Exec(query,
		link.PaymentID, link.OrderID, link.OrderCode, link.Amount, link.Status, link.URL, link.CreatedDate,
	)

	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save payment link %s: %s", link.PaymentID, err.Error()))
		return fmt.Errorf("failed to save payment link: %w", err)
	}

	return nil
}

// GetPaymentLinkByOrderCode retrieves the link record for a gateway order code.
func (s *PostgreSQLStore) GetPaymentLinkByOrderCode(orderCode int64) (*models.PaymentLink, error) {
	query := `
    SELECT payment_id, order_id, order_code, amount, status, url, created_date
    FROM payment_links WHERE order_code = $1
    `

	link := &models.PaymentLink{}
	err := s.db.QueryRow(query, orderCode).Scan(
		&link.PaymentID, &link.OrderID, &link.OrderCode, &link.Amount, &link.Status, &link.URL, &link.CreatedDate,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("payment link not found")
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get payment link for order code %d: %s", orderCode, err.Error()))
		return nil, fmt.Errorf("failed to get payment link: %w", err)
	}

	return link, nil
}

// UpdatePaymentLinkStatus mirrors the transaction status onto the audit row.
func (s *PostgreSQLStore) UpdatePaymentLinkStatus(id, status string) error {
	s.log.LogDatabase("UPDATE", "postgresql", fmt.Sprintf("Updating payment link %s to %s", id, status))

	query := `UPDATE payment_links SET status = $1 WHERE payment_id = $2`

	_, err := s.db.Exec(query, status, id)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update payment link %s: %s", id, err.Error()))
		return fmt.Errorf("failed to update payment link: %w", err)
	}

	return nil
}

func (s *PostgreSQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "postgresql", "Closing PostgreSQL connection")
	return s.db.Close()
}

func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}
