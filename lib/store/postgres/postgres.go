// Package postgres implements the store interface for PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/corralhq/corral/lib/store"
)

type Postgres struct {
	db *sql.DB
}

// New returns a postgres client connection to the specified database in 'connection'.
func New(connection string) (*Postgres, error) {
	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB in %s: %w", connection, err)
	}

	return &Postgres{db: db}, nil
}

// NewWithDB wraps an already-open handle. Used by tests.
func NewWithDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// ClosePostgres will close any database connection. Must be called at termination time.
func (p *Postgres) ClosePostgres() error {
	return p.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		ethereum_address TEXT UNIQUE NOT NULL,
		profile_image_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now())`,
	`CREATE TABLE IF NOT EXISTS groups (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		space_contract_address TEXT UNIQUE NOT NULL,
		invite_contract_address TEXT NOT NULL,
		shares_contract_address TEXT NOT NULL,
		treasury_contract_address TEXT NOT NULL,
		created_by INTEGER REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now())`,
	`CREATE TABLE IF NOT EXISTS group_members (
		group_id INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role TEXT NOT NULL DEFAULT 'member',
		joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (group_id, user_id))`,
	`CREATE TABLE IF NOT EXISTS messages (
		id SERIAL PRIMARY KEY,
		group_id INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		sender_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
		content TEXT NOT NULL,
		notification TEXT,
		sent_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		edited_at TIMESTAMPTZ)`,
}

// Migrate creates the tables if they do not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("cannot apply schema: %w", err)
		}
	}

	return nil
}

// mapErr translates driver errors into store errors.
func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}

	var pqe *pq.Error
	if errors.As(err, &pqe) && pqe.Code.Name() == "unique_violation" {
		return store.ErrDuplicate
	}

	return err
}

func (p *Postgres) AddUser(ctx context.Context, u store.User) (store.User, error) {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, ethereum_address, profile_image_url)
		 VALUES ($1, $2, $3, NULLIF($4, '')) RETURNING id, created_at`,
		u.Username, u.Email, u.EthereumAddress, u.ProfileImageURL).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return store.User{}, mapErr(err)
	}

	return u, nil
}

func (p *Postgres) GetUserByAddress(ctx context.Context, address string) (store.User, error) {
	return p.getUser(ctx, `WHERE ethereum_address = $1`, address)
}

func (p *Postgres) GetUser(ctx context.Context, id int64) (store.User, error) {
	return p.getUser(ctx, `WHERE id = $1`, id)
}

func (p *Postgres) getUser(ctx context.Context, where string, arg interface{}) (store.User, error) {
	var (
		u   store.User
		img sql.NullString
	)

	err := p.db.QueryRowContext(ctx,
		`SELECT id, username, email, ethereum_address, profile_image_url, created_at FROM users `+where, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.EthereumAddress, &img, &u.CreatedAt)
	if err != nil {
		return store.User{}, mapErr(err)
	}

	u.ProfileImageURL = img.String

	return u, nil
}

func (p *Postgres) AddGroup(ctx context.Context, g store.Group) (store.Group, error) {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO groups (name, description, space_contract_address, invite_contract_address,
		 shares_contract_address, treasury_contract_address, created_by)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, NULLIF($7, 0)) RETURNING id, created_at`,
		g.Name, g.Description, g.Space, g.Invite, g.Shares, g.Treasury, g.CreatedBy).
		Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return store.Group{}, mapErr(err)
	}

	return g, nil
}

const groupCols = `id, name, COALESCE(description, ''), space_contract_address, invite_contract_address,
	shares_contract_address, treasury_contract_address, COALESCE(created_by, 0), created_at`

func scanGroup(row interface{ Scan(...interface{}) error }) (store.Group, error) {
	var g store.Group

	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Space, &g.Invite, &g.Shares, &g.Treasury,
		&g.CreatedBy, &g.CreatedAt)
	if err != nil {
		return store.Group{}, mapErr(err)
	}

	return g, nil
}

func (p *Postgres) GetGroup(ctx context.Context, id int64) (store.Group, error) {
	return scanGroup(p.db.QueryRowContext(ctx, `SELECT `+groupCols+` FROM groups WHERE id = $1`, id))
}

func (p *Postgres) GetGroupBySpace(ctx context.Context, space string) (store.Group, error) {
	return scanGroup(p.db.QueryRowContext(ctx,
		`SELECT `+groupCols+` FROM groups WHERE space_contract_address = $1`, space))
}

func (p *Postgres) GetGroups(ctx context.Context) ([]store.Group, error) {
	return p.queryGroups(ctx, `SELECT `+groupCols+` FROM groups ORDER BY id`)
}

func (p *Postgres) GetUserGroups(ctx context.Context, userID int64) ([]store.Group, error) {
	cols := `g.id, g.name, COALESCE(g.description, ''), g.space_contract_address, g.invite_contract_address,
		g.shares_contract_address, g.treasury_contract_address, COALESCE(g.created_by, 0), g.created_at`

	return p.queryGroups(ctx,
		`SELECT `+cols+` FROM group_members m INNER JOIN groups g ON m.group_id = g.id WHERE m.user_id = $1`,
		userID)
}

func (p *Postgres) queryGroups(ctx context.Context, query string, args ...interface{}) ([]store.Group, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var gs []store.Group

	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}

		gs = append(gs, g)
	}

	return gs, rows.Err()
}

func (p *Postgres) AddMember(ctx context.Context, groupID, userID int64, role string) (store.Member, error) {
	m := store.Member{GroupID: groupID, UserID: userID, Role: role}

	err := p.db.QueryRowContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (group_id, user_id) DO UPDATE SET role = group_members.role RETURNING joined_at`,
		groupID, userID, role).
		Scan(&m.JoinedAt)
	if err != nil {
		return store.Member{}, mapErr(err)
	}

	return m, nil
}

func (p *Postgres) GetMembers(ctx context.Context, groupID int64) ([]store.Member, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT group_id, user_id, role, joined_at FROM group_members WHERE group_id = $1`, groupID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var ms []store.Member

	for rows.Next() {
		var m store.Member
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, mapErr(err)
		}

		ms = append(ms, m)
	}

	return ms, rows.Err()
}

func (p *Postgres) AddMessage(ctx context.Context, m store.Message) (store.Message, error) {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO messages (group_id, sender_id, content, notification)
		 VALUES ($1, NULLIF($2, 0), $3, NULLIF($4, '')) RETURNING id, sent_at`,
		m.GroupID, m.SenderID, m.Content, m.Notification).
		Scan(&m.ID, &m.SentAt)
	if err != nil {
		return store.Message{}, mapErr(err)
	}

	return m, nil
}

const messageCols = `id, group_id, COALESCE(sender_id, 0), content, COALESCE(notification, ''), sent_at, edited_at`

func scanMessage(row interface{ Scan(...interface{}) error }) (store.Message, error) {
	var (
		m      store.Message
		edited sql.NullTime
	)

	err := row.Scan(&m.ID, &m.GroupID, &m.SenderID, &m.Content, &m.Notification, &m.SentAt, &edited)
	if err != nil {
		return store.Message{}, mapErr(err)
	}

	if edited.Valid {
		m.EditedAt = &edited.Time
	}

	return m, nil
}

func (p *Postgres) GetMessage(ctx context.Context, id int64) (store.Message, error) {
	return scanMessage(p.db.QueryRowContext(ctx, `SELECT `+messageCols+` FROM messages WHERE id = $1`, id))
}

func (p *Postgres) GetMessages(ctx context.Context, groupID int64) ([]store.Message, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+messageCols+` FROM messages WHERE group_id = $1 ORDER BY sent_at ASC`, groupID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var ms []store.Message

	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}

		ms = append(ms, m)
	}

	return ms, rows.Err()
}
