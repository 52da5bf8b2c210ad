package migration

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"net/url"
	"regexp"
	"time"

	"github.com/couchdir/couchdir/config"
	_ "github.com/lib/pq"
)

const (
	legacyDBDriver     = "postgres"
	legacyPingTimeout  = 5 * time.Second
	legacyConnMaxIdle  = 2 * time.Minute
	legacyConnMaxLife  = 30 * time.Minute
	legacyMaxIdleConns = 2
	legacyMaxOpenConns = 5
	defaultLegacyTable = "auth_user"
	legacyUserColumns  = "id, username, first_name, last_name, email, password, is_staff, is_active, is_superuser, last_login, date_joined"
)

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// OpenLegacyDB opens a read-only-by-convention connection to the
// legacy relational database.
func OpenLegacyDB(ctx context.Context, cfg config.LegacyDBConfig) (*sql.DB, error) {
	sslmode := "disable"
	if cfg.UseSSL {
		sslmode = "require"
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		User:   url.UserPassword(cfg.User, cfg.Password),
		Path:   cfg.DBName,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()

	db, err := sql.Open(legacyDBDriver, u.String())
	if err != nil {
		return nil, err
	}

	db.SetConnMaxIdleTime(legacyConnMaxIdle)
	db.SetConnMaxLifetime(legacyConnMaxLife)
	db.SetMaxIdleConns(legacyMaxIdleConns)
	db.SetMaxOpenConns(legacyMaxOpenConns)

	ctx, cancel := context.WithTimeout(ctx, legacyPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// PostgresSource reads the legacy users table.
type PostgresSource struct {
	db    *sql.DB
	table string
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db, table: defaultLegacyTable}
}

func (s *PostgresSource) Count(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PostgresSource) Users(ctx context.Context) iter.Seq2[LegacyUser, error] {
	return func(yield func(LegacyUser, error) bool) {
		query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", legacyUserColumns, s.table)
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			yield(LegacyUser{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				u         LegacyUser
				lastLogin sql.NullTime
			)
			err := rows.Scan(
				&u.ID,
				&u.Username,
				&u.FirstName,
				&u.LastName,
				&u.Email,
				&u.Password,
				&u.IsStaff,
				&u.IsActive,
				&u.IsSuperuser,
				&lastLogin,
				&u.DateJoined,
			)
			if err != nil {
				yield(LegacyUser{}, err)
				return
			}
			if lastLogin.Valid {
				t := lastLogin.Time
				u.LastLogin = &t
			}
			if !yield(u, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(LegacyUser{}, err)
		}
	}
}

// PostgresProfiles builds a ProfileFunc reading the named profile table
// by user_id. The row's columns become the profile's attribute
// contribution; a missing row contributes nothing. The table name is
// validated because it is interpolated into the query.
func PostgresProfiles(db *sql.DB, table string) (ProfileFunc, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid profile table name %q", table)
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE user_id = $1", table)

	return func(ctx context.Context, row LegacyUser) (map[string]any, error) {
		rows, err := db.QueryContext(ctx, query, row.ID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		if !rows.Next() {
			return nil, rows.Err()
		}

		columns, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		profile := make(map[string]any, len(columns))
		for i, column := range columns {
			if raw, ok := values[i].([]byte); ok {
				profile[column] = string(raw)
				continue
			}
			profile[column] = values[i]
		}
		return profile, nil
	}, nil
}
