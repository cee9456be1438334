// Package settings persists the portal account, sealed at rest.
package settings

import (
	"context"
	"time"

	"github.com/example/court-scheduler/internal/crypto"
	"github.com/example/court-scheduler/internal/db"
)

// PortalCredentials is the single account the booking engine signs in with.
type PortalCredentials struct {
	URL       string
	Username  string
	Password  string
	UpdatedAt time.Time
}

type Store struct {
	db   *db.DB
	aead *crypto.AEAD
}

func NewStore(d *db.DB, a *crypto.AEAD) *Store {
	return &Store{db: d, aead: a}
}

// SavePortal upserts the singleton credential row. The password is sealed
// before it reaches the database.
func (s *Store) SavePortal(ctx context.Context, pc PortalCredentials) error {
	enc, err := s.aead.EncryptToString(pc.Password)
	if err != nil {
		return err
	}
	return s.db.Exec(ctx, `
INSERT INTO portal_credentials(id, url, username, password_enc, updated_at)
VALUES (1, $1, $2, $3, now())
ON CONFLICT (id) DO UPDATE
SET url=EXCLUDED.url, username=EXCLUDED.username, password_enc=EXCLUDED.password_enc, updated_at=now()`,
		pc.URL, pc.Username, enc)
}

// Portal returns the stored credentials with the password opened. A missing
// row surfaces as db.ErrNotFound.
func (s *Store) Portal(ctx context.Context) (PortalCredentials, error) {
	var pc PortalCredentials
	var enc string
	err := s.db.QueryRow(ctx, `
SELECT url, username, password_enc, updated_at
FROM portal_credentials
WHERE id=1`).Scan(&pc.URL, &pc.Username, &enc, &pc.UpdatedAt)
	if err != nil {
		return PortalCredentials{}, db.WrapNotFound(err)
	}
	pc.Password, err = s.aead.DecryptString(enc)
	if err != nil {
		return PortalCredentials{}, err
	}
	return pc, nil
}
