package store

import (
	"context"
	"database/sql"

	"tradebotengine/internal/enginerr"
	"tradebotengine/internal/models"
	"tradebotengine/pkg/crypto"
)

// UserRepo reads tenant identity and exchange credentials. Secrets are
// stored encrypted at rest and decrypted here, never by a strategy
// directly (spec §2.4, §4.2 getUser).
type UserRepo struct {
	db *sql.DB
}

// Get returns the user's credentials with the API secret still encrypted;
// DecryptedSecret decrypts it, and encryptionKey is not used here.
// Returns a ConfigError if the user is missing or disabled,
// since a missing/disabled user is a configuration problem for the bot
// that references it, not a transient failure.
func (r *UserRepo) Get(ctx context.Context, userID int, encryptionKey []byte) (*models.User, error) {
	var u models.User
	query := `SELECT id, exchange, api_key, api_secret_encrypted, bot_enabled FROM users WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&u.ID, &u.Exchange, &u.APIKey, &u.APISecretEncrypted, &u.BotEnabled)
	if err == sql.ErrNoRows {
		return nil, enginerr.Config(sql.ErrNoRows)
	}
	if err != nil {
		return nil, enginerr.Store(err)
	}
	if !u.Eligible() {
		return nil, enginerr.Config(sql.ErrNoRows)
	}
	return &u, nil
}

// DecryptedSecret decrypts the user's at-rest API secret.
func (r *UserRepo) DecryptedSecret(u *models.User, encryptionKey []byte) (string, error) {
	return crypto.Decrypt(u.APISecretEncrypted, encryptionKey)
}
