package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"campus-chat/models"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository is the portal's account directory. The messaging core
// uses it for credential checks and display enrichment; ids are assigned
// per role, so every lookup takes the full (id, role) identity.
type ProfileRepository interface {
	Create(name, email string, role models.Role, passwordHash string) (*models.Profile, error)
	FindByEmail(email string) (*models.Profile, error)
	FindByIdentity(identity models.Identity) (*models.Profile, error)
}

type SQLiteProfileRepo struct {
	db *sqlx.DB
}

func NewSQLiteProfileRepo(db *sqlx.DB) *SQLiteProfileRepo {
	return &SQLiteProfileRepo{db: db}
}

type profileRow struct {
	ID        int    `db:"id"`
	Role      string `db:"role"`
	Name      string `db:"name"`
	Email     string `db:"email"`
	Password  string `db:"password_hash"`
	CreatedAt int64  `db:"created_at"`
}

func (r profileRow) toModel() models.Profile {
	return models.Profile{
		ID:        r.ID,
		Role:      models.Role(r.Role),
		Name:      r.Name,
		Email:     r.Email,
		Password:  r.Password,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
	}
}

func (r *SQLiteProfileRepo) Create(name, email string, role models.Role, passwordHash string) (*models.Profile, error) {
	now := time.Now().UTC()

	// Ids are sequential within a role, not globally.
	var row profileRow
	err := r.db.Get(&row, `
		INSERT INTO profiles (id, role, name, email, password_hash, created_at)
		VALUES (
			(SELECT COALESCE(MAX(id), 0) + 1 FROM profiles WHERE role = ?),
			?, ?, ?, ?, ?
		)
		RETURNING id, role, name, email, password_hash, created_at`,
		string(role), string(role), name, email, passwordHash, now.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	profile := row.toModel()
	return &profile, nil
}

func (r *SQLiteProfileRepo) FindByEmail(email string) (*models.Profile, error) {
	var row profileRow
	err := r.db.Get(&row, `
		SELECT id, role, name, email, password_hash, created_at
		FROM profiles WHERE email = ?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find profile by email: %w", err)
	}

	profile := row.toModel()
	return &profile, nil
}

func (r *SQLiteProfileRepo) FindByIdentity(identity models.Identity) (*models.Profile, error) {
	var row profileRow
	err := r.db.Get(&row, `
		SELECT id, role, name, email, password_hash, created_at
		FROM profiles WHERE id = ? AND role = ?`,
		identity.ID, string(identity.Role))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find profile by identity: %w", err)
	}

	profile := row.toModel()
	return &profile, nil
}
