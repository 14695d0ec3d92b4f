package postgres

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// queryArgs accumulates positional arguments and hands out their placeholders.
type queryArgs struct {
	values []any
}

func (a *queryArgs) add(v any) string {
	a.values = append(a.values, v)
	return "$" + strconv.Itoa(len(a.values))
}

// in renders "col IN ($n,...)" for a non-empty set.
func (a *queryArgs) in(column string, set []string) string {
	placeholders := make([]string, 0, len(set))
	for _, v := range set {
		placeholders = append(placeholders, a.add(v))
	}
	return column + " IN (" + strings.Join(placeholders, ",") + ")"
}
