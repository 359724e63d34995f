package identity

import (
	"encoding/json"
	"net/url"
	"strings"

	"glassmind-quiz-service/internal/domain"
)

// ParseInitData extracts the user from a Telegram initData query string.
// The hash is not verified; ids are opaque and carry no authority.
func ParseInitData(raw string) (domain.HostUser, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.HostUser{}, ErrNoHostContext
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return domain.HostUser{}, ErrNoHostContext
	}
	payload := values.Get("user")
	if payload == "" {
		return domain.HostUser{}, ErrNoHostContext
	}

	var user domain.HostUser
	if err := json.Unmarshal([]byte(payload), &user); err != nil || user.ID == 0 {
		return domain.HostUser{}, ErrNoHostContext
	}
	return user, nil
}
