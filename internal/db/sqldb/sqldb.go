// Package sqldb implements the directory storage on top of database/sql.
// PostgreSQL (through the pgx or lib/pq driver) and SQLite (through the
// pure Go modernc driver) are supported. The schema is managed with goose
// migrations embedded into the binary.
package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/patric-chuzhbe/rango/internal/models"
	"github.com/patric-chuzhbe/rango/internal/user"
)

// Supported database/sql driver names.
const (
	DriverPgx    = "pgx"
	DriverPq     = "postgres"
	DriverSQLite = "sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// SQLDB is a database/sql backed implementation of the directory storage.
type SQLDB struct {
	database          *sql.DB
	driverName        string
	connectionTimeout time.Duration
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset rolls every migration back before applying them again.
// It is meant for tests and development databases.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New opens the database, applies the schema migrations and returns a
// ready SQLDB. For SQLite the dsn is a file path.
func New(
	ctx context.Context,
	driverName string,
	dsn string,
	connectionTimeout time.Duration,
	optionsProto ...InitOption,
) (*SQLDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	dialect, migrationsDir, err := dialectOf(driverName)
	if err != nil {
		return nil, err
	}

	if driverName == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	database, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("in internal/db/sqldb/sqldb.go/New(): error while `sql.Open()` calling: %w", err)
	}

	if driverName == DriverSQLite {
		// SQLite allows a single writer; one connection keeps writers serialized.
		database.SetMaxOpenConns(1)
	}

	result := &SQLDB{
		database:          database,
		driverName:        driverName,
		connectionTimeout: connectionTimeout,
	}

	if err := result.Ping(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("in internal/db/sqldb/sqldb.go/New(): error while `result.Ping()` calling: %w", err)
	}

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect(dialect); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/sqldb/sqldb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if options.DBPreReset {
		if err := goose.Reset(database, migrationsDir); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/sqldb/sqldb.go/New(): error while `goose.Reset()` calling: %w",
					err,
				)
		}
	}

	if err := goose.UpContext(ctx, database, migrationsDir); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/sqldb/sqldb.go/New(): error while `goose.Up()` calling: %w",
				err,
			)
	}

	return result, nil
}

func dialectOf(driverName string) (string, string, error) {
	switch driverName {
	case DriverPgx, DriverPq:
		return "postgres", "migrations/postgres", nil
	case DriverSQLite:
		return "sqlite3", "migrations/sqlite", nil
	}

	return "", "", fmt.Errorf("unsupported database driver %q", driverName)
}

func sqliteDSN(path string) string {
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}

	return path + separator + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// rebind turns the ? placeholders used by the queries of this package into
// $n placeholders for PostgreSQL.
func (db *SQLDB) rebind(query string) string {
	if db.driverName == DriverSQLite {
		return query
	}

	var builder strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			builder.WriteString("$" + strconv.Itoa(n))
			continue
		}
		builder.WriteRune(r)
	}

	return builder.String()
}

func (db *SQLDB) conn(transaction *sql.Tx) queryer {
	if transaction == nil {
		return db.database
	}

	return transaction
}

// insertReturningID runs an INSERT ... ON CONFLICT DO NOTHING RETURNING id
// statement. An insert skipped because of a conflict is reported as
// models.ErrConflict.
func (db *SQLDB) insertReturningID(
	ctx context.Context,
	transaction *sql.Tx,
	query string,
	args ...interface{},
) (int64, error) {
	var id int64
	err := db.conn(transaction).QueryRowContext(ctx, db.rebind(query), args...).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, models.ErrConflict
		}
		return 0, err
	}

	return id, nil
}

// InsertCategory stores category and assigns its ID.
func (db *SQLDB) InsertCategory(ctx context.Context, category *models.Category, transaction *sql.Tx) error {
	id, err := db.insertReturningID(
		ctx,
		transaction,
		`
			INSERT INTO categories (name, slug, views, likes)
				VALUES (?, ?, ?, ?)
				ON CONFLICT DO NOTHING
				RETURNING id
		`,
		category.Name,
		category.Slug,
		category.Views,
		category.Likes,
	)
	if err != nil {
		return err
	}
	category.ID = id

	return nil
}

func (db *SQLDB) findCategory(
	ctx context.Context,
	transaction *sql.Tx,
	column string,
	value string,
) (*models.Category, error) {
	row := db.conn(transaction).QueryRowContext(
		ctx,
		db.rebind(`SELECT id, name, slug, views, likes FROM categories WHERE `+column+` = ?`),
		value,
	)

	var category models.Category
	err := row.Scan(&category.ID, &category.Name, &category.Slug, &category.Views, &category.Likes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &category, nil
}

// FindCategoryByName returns the category named name.
func (db *SQLDB) FindCategoryByName(ctx context.Context, name string, transaction *sql.Tx) (*models.Category, error) {
	return db.findCategory(ctx, transaction, "name", name)
}

// FindCategoryBySlug returns the category with the given slug.
func (db *SQLDB) FindCategoryBySlug(ctx context.Context, slug string, transaction *sql.Tx) (*models.Category, error) {
	return db.findCategory(ctx, transaction, "slug", slug)
}

// TopCategoriesByLikes returns up to limit categories, most liked first.
// Ties keep insertion order.
func (db *SQLDB) TopCategoriesByLikes(ctx context.Context, limit int) ([]models.Category, error) {
	if limit <= 0 {
		return []models.Category{}, nil
	}

	rows, err := db.database.QueryContext(
		ctx,
		db.rebind(`SELECT id, name, slug, views, likes FROM categories ORDER BY likes DESC, id ASC LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.Category{}
	for rows.Next() {
		var category models.Category
		err = rows.Scan(&category.ID, &category.Name, &category.Slug, &category.Views, &category.Likes)
		if err != nil {
			return nil, err
		}
		result = append(result, category)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteCategory removes a category; its pages are removed by the
// ON DELETE CASCADE constraint.
func (db *SQLDB) DeleteCategory(ctx context.Context, categoryID int64, transaction *sql.Tx) error {
	_, err := db.conn(transaction).ExecContext(
		ctx,
		db.rebind(`DELETE FROM categories WHERE id = ?`),
		categoryID,
	)

	return err
}

// InsertPage stores page and assigns its ID.
func (db *SQLDB) InsertPage(ctx context.Context, page *models.Page, transaction *sql.Tx) error {
	id, err := db.insertReturningID(
		ctx,
		transaction,
		`
			INSERT INTO pages (category_id, title, url, views)
				VALUES (?, ?, ?, ?)
				ON CONFLICT DO NOTHING
				RETURNING id
		`,
		page.CategoryID,
		page.Title,
		page.URL,
		page.Views,
	)
	if err != nil {
		return err
	}
	page.ID = id

	return nil
}

func scanPages(rows *sql.Rows) ([]models.Page, error) {
	defer rows.Close()

	result := []models.Page{}
	for rows.Next() {
		var page models.Page
		err := rows.Scan(&page.ID, &page.CategoryID, &page.Title, &page.URL, &page.Views)
		if err != nil {
			return nil, err
		}
		result = append(result, page)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// FindPage returns the page identified by the (category, title, url) triple.
func (db *SQLDB) FindPage(
	ctx context.Context,
	categoryID int64,
	title,
	url string,
	transaction *sql.Tx,
) (*models.Page, error) {
	row := db.conn(transaction).QueryRowContext(
		ctx,
		db.rebind(`
			SELECT id, category_id, title, url, views
				FROM pages
				WHERE category_id = ? AND title = ? AND url = ?
		`),
		categoryID,
		title,
		url,
	)

	var page models.Page
	err := row.Scan(&page.ID, &page.CategoryID, &page.Title, &page.URL, &page.Views)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &page, nil
}

// ListPagesForCategory returns the pages of a category.
func (db *SQLDB) ListPagesForCategory(ctx context.Context, categoryID int64) ([]models.Page, error) {
	rows, err := db.database.QueryContext(
		ctx,
		db.rebind(`SELECT id, category_id, title, url, views FROM pages WHERE category_id = ? ORDER BY id`),
		categoryID,
	)
	if err != nil {
		return nil, err
	}

	return scanPages(rows)
}

// TopPagesByViews returns up to limit pages, most viewed first.
// Ties keep insertion order.
func (db *SQLDB) TopPagesByViews(ctx context.Context, limit int) ([]models.Page, error) {
	if limit <= 0 {
		return []models.Page{}, nil
	}

	rows, err := db.database.QueryContext(
		ctx,
		db.rebind(`SELECT id, category_id, title, url, views FROM pages ORDER BY views DESC, id ASC LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, err
	}

	return scanPages(rows)
}

// CreateUser inserts a new account and returns its ID.
func (db *SQLDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error) {
	if usr.DateJoined.IsZero() {
		usr.DateJoined = time.Now().UTC()
	}

	id, err := db.insertReturningID(
		ctx,
		transaction,
		`
			INSERT INTO users (username, email, password, is_active, date_joined)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT DO NOTHING
				RETURNING id
		`,
		usr.Username,
		usr.Email,
		usr.Password,
		usr.IsActive,
		usr.DateJoined,
	)
	if err != nil {
		return 0, err
	}
	usr.ID = id

	return id, nil
}

// UpdateUser overwrites the stored account with usr.
func (db *SQLDB) UpdateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) error {
	result, err := db.conn(transaction).ExecContext(
		ctx,
		db.rebind(`
			UPDATE users
				SET username = ?, email = ?, password = ?, is_active = ?
				WHERE id = ?
		`),
		usr.Username,
		usr.Email,
		usr.Password,
		usr.IsActive,
		usr.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("user %d does not exist", usr.ID)
	}

	return nil
}

func (db *SQLDB) getUser(
	ctx context.Context,
	transaction *sql.Tx,
	column string,
	value interface{},
) (*user.User, error) {
	row := db.conn(transaction).QueryRowContext(
		ctx,
		db.rebind(`
			SELECT id, username, email, password, is_active, date_joined
				FROM users
				WHERE `+column+` = ?
		`),
		value,
	)

	var usr user.User
	err := row.Scan(&usr.ID, &usr.Username, &usr.Email, &usr.Password, &usr.IsActive, &usr.DateJoined)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &usr, nil
}

// GetUserByID returns the account with the given ID.
func (db *SQLDB) GetUserByID(ctx context.Context, userID int64, transaction *sql.Tx) (*user.User, error) {
	return db.getUser(ctx, transaction, "id", userID)
}

// GetUserByUsername returns the account with the given username.
func (db *SQLDB) GetUserByUsername(ctx context.Context, username string, transaction *sql.Tx) (*user.User, error) {
	return db.getUser(ctx, transaction, "username", username)
}

// InsertUserProfile stores the profile of an existing account.
func (db *SQLDB) InsertUserProfile(ctx context.Context, profile *models.UserProfile, transaction *sql.Tx) error {
	_, err := db.insertReturningID(
		ctx,
		transaction,
		`
			INSERT INTO user_profiles (user_id, website, picture)
				VALUES (?, ?, ?)
				ON CONFLICT DO NOTHING
				RETURNING user_id
		`,
		profile.UserID,
		profile.Website,
		profile.Picture,
	)

	return err
}

// GetUserProfile returns the profile of an account.
func (db *SQLDB) GetUserProfile(ctx context.Context, userID int64, transaction *sql.Tx) (*models.UserProfile, error) {
	row := db.conn(transaction).QueryRowContext(
		ctx,
		db.rebind(`SELECT user_id, website, picture FROM user_profiles WHERE user_id = ?`),
		userID,
	)

	var profile models.UserProfile
	err := row.Scan(&profile.UserID, &profile.Website, &profile.Picture)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &profile, nil
}

func (db *SQLDB) count(ctx context.Context, table string) (int64, error) {
	var count int64
	err := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// GetNumberOfCategories returns the number of stored categories.
func (db *SQLDB) GetNumberOfCategories(ctx context.Context) (int64, error) {
	return db.count(ctx, "categories")
}

// GetNumberOfPages returns the number of stored pages.
func (db *SQLDB) GetNumberOfPages(ctx context.Context) (int64, error) {
	return db.count(ctx, "pages")
}

// GetNumberOfUsers returns the number of stored accounts.
func (db *SQLDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	return db.count(ctx, "users")
}

// CommitTransaction commits the given SQL transaction.
func (db *SQLDB) CommitTransaction(transaction *sql.Tx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred while committing transaction: %v", r)
		}
	}()

	return transaction.Commit()
}

// RollbackTransaction rolls back the given SQL transaction.
// Rolling back a finished transaction is not an error.
func (db *SQLDB) RollbackTransaction(transaction *sql.Tx) error {
	err := transaction.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}

	return err
}

// BeginTransaction starts a new SQL transaction and returns it.
// The caller is responsible for committing or rolling it back.
func (db *SQLDB) BeginTransaction() (*sql.Tx, error) {
	return db.database.Begin()
}

// Ping verifies connectivity with the database within the configured timeout.
func (db *SQLDB) Ping(ctx context.Context) error {
	if db.connectionTimeout <= 0 {
		return db.database.PingContext(ctx)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *SQLDB) Close() error {
	return db.database.Close()
}
