package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate.  Every statement is idempotent.
// The unique keys on users.email and stores.subdomain are what make
// registration and store creation safe under concurrency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                 CHAR(36)     NOT NULL PRIMARY KEY,
		email              VARCHAR(255) NOT NULL,
		name               VARCHAR(255) NOT NULL,
		password_hash      VARCHAR(255) NULL,
		refresh_token_hash VARCHAR(255) NULL,
		role               ENUM('OWNER','MANAGER','CUSTOMER') NOT NULL DEFAULT 'OWNER',
		provider           ENUM('LOCAL','GOOGLE') NOT NULL DEFAULT 'LOCAL',
		created_at         DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		updated_at         DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,

	`CREATE TABLE IF NOT EXISTS stores (
		id          CHAR(36)     NOT NULL PRIMARY KEY,
		owner_id    CHAR(36)     NOT NULL,
		subdomain   VARCHAR(63)  NOT NULL,
		name        VARCHAR(100) NOT NULL,
		description VARCHAR(500) NULL,
		logo        VARCHAR(2048) NULL,
		is_active   BOOLEAN      NOT NULL DEFAULT TRUE,
		created_at  DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		updated_at  DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		UNIQUE KEY uq_stores_subdomain (subdomain),
		KEY idx_stores_owner (owner_id),
		CONSTRAINT fk_stores_owner FOREIGN KEY (owner_id) REFERENCES users (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS products (
		id          CHAR(36)      NOT NULL PRIMARY KEY,
		store_id    CHAR(36)      NOT NULL,
		name        VARCHAR(255)  NOT NULL,
		category    VARCHAR(255)  NOT NULL,
		description TEXT          NULL,
		price       DECIMAL(12,2) NOT NULL DEFAULT 0,
		created_at  DATETIME(3)   NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		updated_at  DATETIME(3)   NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		KEY idx_products_store (store_id),
		CONSTRAINT fk_products_store FOREIGN KEY (store_id) REFERENCES stores (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables when they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
