package models

// User holds per-tenant identity and exchange credentials. Credentials are
// read-only to the engine; issuance and rotation happen outside the core.
type User struct {
	ID                 int    `json:"id"`
	Exchange           string `json:"exchange"`
	APIKey             string `json:"apiKey"`
	APISecretEncrypted string `json:"apiSecretEncrypted"`
	BotEnabled         bool   `json:"botEnabled"`
}

// Eligible reports whether the user's credentials may be used to build an
// ExchangeClient: present and not globally disabled.
func (u *User) Eligible() bool {
	return u.BotEnabled && u.APIKey != "" && u.APISecretEncrypted != ""
}
