package exchange

import "time"

// Family selects which signed header convention a deployment's exchange
// speaks (spec §6).
type Family string

const (
	FamilyCH Family = "ch"
	FamilyXT Family = "xt"
)

// factory builds Clients for one configured exchange family and base URL.
type factory struct {
	family     Family
	baseURL    string
	timeout    time.Duration
	maxRetries int
}

// NewFactory returns a Factory bound to one exchange family/base URL pair.
// The engine constructs one factory per deployment and hands it to every
// BotRunner so each bot's strategy gets a client bound to its own user's
// credentials.
func NewFactory(family Family, baseURL string, timeout time.Duration, maxRetries int) Factory {
	return &factory{family: family, baseURL: baseURL, timeout: timeout, maxRetries: maxRetries}
}

func (f *factory) NewClient(creds Credentials) Client {
	switch f.family {
	case FamilyXT:
		return NewXTFamilyClient(f.baseURL, creds, f.timeout, f.maxRetries)
	default:
		return NewCHFamilyClient(f.baseURL, creds, f.timeout, f.maxRetries)
	}
}
