package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"access-gate/middleware/accessctl/domain"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLBanRepository lê e grava o estado de banimento na tabela de usuários
// da aplicação (por padrão "users").
//
// Só as colunas id, role, is_banned, ban_expires e ban_reason são tocadas.
type SQLBanRepository struct {
	db      *sql.DB
	dialect Dialect
	table   string
}

var _ domain.BanRepository = (*SQLBanRepository)(nil)

type SQLBanOption func(*SQLBanRepository)

func WithTable(name string) SQLBanOption {
	return func(r *SQLBanRepository) { r.table = name }
}

func NewSQLBanRepository(db *sql.DB, dialect Dialect, opts ...SQLBanOption) (*SQLBanRepository, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}
	if _, err := dialect.DriverName(); err != nil {
		return nil, err
	}

	r := &SQLBanRepository{db: db, dialect: dialect, table: "users"}
	for _, opt := range opts {
		opt(r)
	}
	if !tableNamePattern.MatchString(r.table) {
		return nil, fmt.Errorf("invalid table name %q", r.table)
	}
	return r, nil
}

// Migrate cria a tabela quando ela não existe. Em produção a tabela pertence
// à aplicação e isto é um no-op.
func (r *SQLBanRepository) Migrate(ctx context.Context) error {
	ts := "TIMESTAMP"
	if r.dialect == DialectPostgres {
		ts = "TIMESTAMPTZ"
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id VARCHAR(64) PRIMARY KEY,
    role VARCHAR(32) NOT NULL DEFAULT 'user',
    is_banned BOOLEAN NOT NULL DEFAULT FALSE,
    ban_expires %s NULL,
    ban_reason TEXT NULL
)`, r.table, ts)

	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create %s table: %w", r.table, err)
	}
	return nil
}

// rebind troca os placeholders "?" por "$n" no Postgres.
func (r *SQLBanRepository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r *SQLBanRepository) Get(ctx context.Context, userID string) (domain.Account, error) {
	query := r.rebind(fmt.Sprintf(`SELECT id, role, is_banned, ban_expires, ban_reason FROM %s WHERE id = ?`, r.table))

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("failed to query account: %w", err)
	}
	return acc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		acc     domain.Account
		expires sql.NullTime
		reason  sql.NullString
	)
	if err := row.Scan(&acc.ID, &acc.Role, &acc.Ban.IsBanned, &expires, &reason); err != nil {
		return domain.Account{}, err
	}
	if expires.Valid {
		t := expires.Time
		acc.Ban.ExpiresAt = &t
	}
	if reason.Valid {
		s := reason.String
		acc.Ban.Reason = &s
	}
	return acc, nil
}

func (r *SQLBanRepository) SaveBan(ctx context.Context, userID string, rec domain.BanRecord) error {
	query := r.rebind(fmt.Sprintf(`UPDATE %s SET is_banned = ?, ban_expires = ?, ban_reason = ? WHERE id = ?`, r.table))

	var expires sql.NullTime
	if rec.ExpiresAt != nil {
		expires = sql.NullTime{Time: rec.ExpiresAt.UTC(), Valid: true}
	}
	var reason sql.NullString
	if rec.Reason != nil {
		reason = sql.NullString{String: *rec.Reason, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query, rec.IsBanned, expires, reason, userID)
	if err != nil {
		return fmt.Errorf("failed to update ban: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// LiftExpired limpa o banimento com um UPDATE condicional; um banimento
// gravado depois da leitura do gate não casa com o WHERE.
func (r *SQLBanRepository) LiftExpired(ctx context.Context, userID string, now time.Time) (bool, error) {
	query := r.rebind(fmt.Sprintf(`UPDATE %s SET is_banned = ?, ban_expires = NULL, ban_reason = NULL
WHERE id = ? AND is_banned = ? AND ban_expires IS NOT NULL AND ban_expires <= ?`, r.table))

	res, err := r.db.ExecContext(ctx, query, false, userID, true, now.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to lift ban: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// CreateAccount insere uma conta sem banimento. Usado pela CLI e nos testes;
// na aplicação real as contas nascem no cadastro.
func (r *SQLBanRepository) CreateAccount(ctx context.Context, id, role string) error {
	if role == "" {
		role = "user"
	}
	query := r.rebind(fmt.Sprintf(`INSERT INTO %s (id, role, is_banned) VALUES (?, ?, ?)`, r.table))
	if _, err := r.db.ExecContext(ctx, query, id, role, false); err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// ListBanned devolve as contas marcadas como banidas, expiradas ou não.
func (r *SQLBanRepository) ListBanned(ctx context.Context, limit int) ([]domain.Account, error) {
	if limit <= 0 {
		limit = 100
	}
	query := r.rebind(fmt.Sprintf(`SELECT id, role, is_banned, ban_expires, ban_reason FROM %s WHERE is_banned = ? ORDER BY id LIMIT ?`, r.table))

	rows, err := r.db.QueryContext(ctx, query, true, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bans: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	var out []domain.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ban: %w", err)
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}
