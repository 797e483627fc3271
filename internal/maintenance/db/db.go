// Package db implements the Entity Store on top of GORM: typed CRUD and
// filtered queries over teams, profiles, equipment and maintenance requests.
package db

import (
	"context"
	"errors"
	"fmt"

	dbm "github.com/gartstein/maintenance/internal/maintenance/db/models"
	e "github.com/gartstein/maintenance/internal/maintenance/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func NewRepository(cfg *Config) (*Repository, error) {
	return Open(postgres.Open(cfg.DSN()))
}

// Open connects through any GORM dialector and migrates the schema.
func Open(dialector gorm.Dialector) (*Repository, error) {
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(dbm.All()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) Exec(ctx context.Context, query string, params ...interface{}) error {
	result := r.db.WithContext(ctx).Exec(query, params...)
	if result.Error != nil {
		return e.Remote(result.Error)
	}
	return nil
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// mapError translates GORM errors into the domain taxonomy.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return e.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", e.ErrConflict, err)
	default:
		return e.Remote(err)
	}
}

// Health reports which tables answered a one-row count.
type Health struct {
	Tables map[string]bool
	Errors []string
}

// Healthy is true when every table answered.
func (h Health) Healthy() bool {
	return len(h.Errors) == 0
}

// CheckHealth runs a one-row count against every table.
func (r *Repository) CheckHealth(ctx context.Context) Health {
	h := Health{Tables: map[string]bool{}}
	for _, row := range dbm.All() {
		stmt := &gorm.Statement{DB: r.db}
		if err := stmt.Parse(row); err != nil {
			h.Errors = append(h.Errors, err.Error())
			continue
		}
		table := stmt.Schema.Table

		var count int64
		if err := r.db.WithContext(ctx).Model(row).Limit(1).Count(&count).Error; err != nil {
			h.Tables[table] = false
			h.Errors = append(h.Errors, fmt.Sprintf("%s: %v", table, err))
			continue
		}
		h.Tables[table] = true
	}
	return h
}
