// Package sqlstore is the relational Store: users, links and clicks in tables with foreign
// keys, counters kept by SQL increments and aggregates computed by the database.
// It speaks SQLite (modernc), libsql/Turso and PostgreSQL (pgx) through sqlx.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/jmoiron/sqlx"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"modernc.org/sqlite"                                 // Local SQLite driver
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

const (
	driverSQLite   = "sqlite"
	driverLibSQL   = "libsql"
	driverPostgres = "pgx"
)

type SQLStore struct {
	db *sqlx.DB
}

// Open connects to dbURL, picking the driver from its scheme, and applies migrations
func Open(dbURL string) (*SQLStore, error) {
	driverName := driverFor(dbURL)
	if driverName == driverSQLite {
		dbURL = sqliteDSN(dbURL)
	}

	db, err := sqlx.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}

	if driverName == driverSQLite {
		// one writer at a time; also keeps shared-cache memory databases alive
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(driverName, dbURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLStore{db: db}, nil
}

func driverFor(dbURL string) string {
	switch {
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		return driverPostgres
	case strings.Contains(dbURL, "libsql://"), strings.Contains(dbURL, "wss://"):
		return driverLibSQL
	default:
		return driverSQLite
	}
}

// sqliteDSN turns on foreign keys, waits on locks and writes sortable timestamps
func sqliteDSN(dsn string) string {
	params := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_time_format=sqlite",
	}
	for _, p := range params {
		if strings.Contains(dsn, p) {
			continue
		}
		if strings.Contains(dsn, "?") {
			dsn += "&" + p
		} else {
			dsn += "?" + p
		}
	}
	return dsn
}

// runMigrations uses its own pool since closing the migrator closes the database handle.
// In-memory SQLite therefore needs cache=shared to be visible to both pools.
func runMigrations(driverName, dbURL string) error {
	dir := "migrations/sqlite"
	if driverName == driverPostgres {
		dir = "migrations/postgres"
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return err
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return err
	}

	var driver database.Driver
	if driverName == driverPostgres {
		driver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	} else {
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	}
	if err != nil {
		db.Close()
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		db.Close()
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type userRow struct {
	ID         int64     `db:"id"`
	Email      string    `db:"email"`
	Credential string    `db:"credential"`
	CreatedAt  time.Time `db:"created_at"`
}

type linkRow struct {
	ID             int64     `db:"id"`
	OwnerID        int64     `db:"owner_id"`
	DestinationURL string    `db:"destination_url"`
	ShortCode      string    `db:"short_code"`
	ClickCount     int64     `db:"click_count"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r linkRow) toDomain() domain.Link {
	return domain.Link{
		ID:             strconv.FormatInt(r.ID, 10),
		OwnerID:        strconv.FormatInt(r.OwnerID, 10),
		DestinationURL: r.DestinationURL,
		ShortCode:      r.ShortCode,
		Clicks:         r.ClickCount,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

type clickRow struct {
	LinkID    int64     `db:"link_id"`
	Origin    string    `db:"origin"`
	Country   string    `db:"country"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *SQLStore) CreateUser(ctx context.Context, email, credential string) (string, error) {
	query := s.db.Rebind(`INSERT INTO users (email, credential, created_at) VALUES (?, ?, ?) RETURNING id`)

	var id int64
	err := s.db.QueryRowxContext(ctx, query, email, credential, time.Now().UTC()).Scan(&id)
	if isUniqueViolation(err) {
		return "", domain.ErrDuplicateEmail
	}
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := s.db.Rebind(`SELECT id, email, credential, created_at FROM users WHERE email = ?`)

	var row userRow
	err := s.db.GetContext(ctx, &row, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Wrap(err, domain.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, err
	}

	return &domain.User{
		ID:         strconv.FormatInt(row.ID, 10),
		Email:      row.Email,
		Credential: row.Credential,
		CreatedAt:  row.CreatedAt.UTC(),
	}, nil
}

func (s *SQLStore) CreateLink(ctx context.Context, ownerID, destinationURL, code string) (string, error) {
	owner, err := strconv.ParseInt(ownerID, 10, 64)
	if err != nil {
		return "", domain.NewError(domain.KindNotFound, "owner not found")
	}

	query := s.db.Rebind(`INSERT INTO links (owner_id, destination_url, short_code, click_count, created_at)
			  VALUES (?, ?, ?, 0, ?) RETURNING id`)

	var id int64
	err = s.db.QueryRowxContext(ctx, query, owner, destinationURL, code, time.Now().UTC()).Scan(&id)
	switch {
	case isUniqueViolation(err):
		return "", domain.ErrDuplicateCode
	case isForeignKeyViolation(err):
		return "", domain.Wrap(err, domain.KindNotFound, "owner not found")
	case err != nil:
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *SQLStore) GetLinkByCode(ctx context.Context, code string) (*domain.Link, error) {
	query := s.db.Rebind(`SELECT id, owner_id, destination_url, short_code, click_count, created_at
			  FROM links WHERE short_code = ?`)

	var row linkRow
	err := s.db.GetContext(ctx, &row, query, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Wrap(err, domain.KindNotFound, "link not found")
	}
	if err != nil {
		return nil, err
	}

	link := row.toDomain()
	return &link, nil
}

func (s *SQLStore) ListLinksByOwner(ctx context.Context, ownerID string) ([]domain.Link, error) {
	owner, err := strconv.ParseInt(ownerID, 10, 64)
	if err != nil {
		return []domain.Link{}, nil
	}

	query := s.db.Rebind(`SELECT id, owner_id, destination_url, short_code, click_count, created_at
			  FROM links WHERE owner_id = ? ORDER BY created_at DESC, id DESC`)

	var rows []linkRow
	if err := s.db.SelectContext(ctx, &rows, query, owner); err != nil {
		return nil, err
	}

	links := make([]domain.Link, 0, len(rows))
	for _, r := range rows {
		links = append(links, r.toDomain())
	}
	return links, nil
}

func (s *SQLStore) AppendClick(ctx context.Context, click *domain.Click) error {
	linkID, err := strconv.ParseInt(click.LinkID, 10, 64)
	if err != nil {
		return domain.NewError(domain.KindNotFound, "link not found")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 1. Increment Link Clicks Counter (Atomic)
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE links SET click_count = click_count + 1 WHERE id = ?`), linkID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NewError(domain.KindNotFound, "link not found")
	}

	// 2. Insert Click Record
	_, err = tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO clicks (link_id, origin, country, created_at) VALUES (?, ?, ?, ?)`),
		linkID, click.Origin, click.Country, click.CreatedAt.UTC(),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLStore) ListClicksByLink(ctx context.Context, linkID string) ([]domain.Click, error) {
	id, err := strconv.ParseInt(linkID, 10, 64)
	if err != nil {
		return []domain.Click{}, nil
	}

	query := s.db.Rebind(`SELECT link_id, origin, country, created_at
			  FROM clicks WHERE link_id = ? ORDER BY created_at DESC, id DESC`)

	var rows []clickRow
	if err := s.db.SelectContext(ctx, &rows, query, id); err != nil {
		return nil, err
	}

	clicks := make([]domain.Click, 0, len(rows))
	for _, r := range rows {
		clicks = append(clicks, domain.Click{
			LinkID:    strconv.FormatInt(r.LinkID, 10),
			Origin:    r.Origin,
			Country:   r.Country,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return clicks, nil
}

// SumClicksAllLinks sums the counter column instead of scanning clicks
func (s *SQLStore) SumClicksAllLinks(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(click_count), 0) FROM links`)
	return total, err
}

func (s *SQLStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, err
}

func (s *SQLStore) CountLinks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM links`)
	return n, err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	// libsql reports constraint failures as plain text
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// Ensure interface compliance
var _ ports.Store = (*SQLStore)(nil)
