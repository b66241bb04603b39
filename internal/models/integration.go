package models

import "strings"

// MaxDestinations is the number of chats a user can broadcast to
const MaxDestinations = 3

// MessagingCredentials are a user's WhatsApp gateway settings
type MessagingCredentials struct {
	UserID       string   `json:"user_id"`
	Enabled      bool     `json:"enabled"`
	InstanceID   string   `json:"instance_id"`
	Token        string   `json:"token,omitempty"`
	BaseURL      string   `json:"base_url,omitempty"`
	Destinations []string `json:"destinations"`
}

// Complete reports whether the credentials are usable for a send
func (c *MessagingCredentials) Complete() bool {
	return c != nil && c.Enabled && c.InstanceID != "" && c.Token != "" && len(c.ChatIDs()) > 0
}

// EndpointBase returns the instance-scoped gateway URL
func (c *MessagingCredentials) EndpointBase(defaultBaseURL string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = strings.TrimRight(defaultBaseURL, "/")
	}
	return base + "/waInstance" + c.InstanceID
}

// ChatIDs returns up to MaxDestinations normalized, non-empty chat ids in order
func (c *MessagingCredentials) ChatIDs() []string {
	var out []string
	for _, d := range c.Destinations {
		id := NormalizeChatID(d)
		if id == "" {
			continue
		}
		out = append(out, id)
		if len(out) == MaxDestinations {
			break
		}
	}
	return out
}

// NormalizeChatID turns a bare phone number into a personal chat id.
// Ids that already carry a domain (groups, channels) are kept as is.
func NormalizeChatID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "@") {
		return s
	}
	return s + "@c.us"
}

// AppSettings holds per-user dashboard preferences used by dispatch
type AppSettings struct {
	UserID        string `json:"user_id"`
	SalesTemplate string `json:"sales_template"`
	DisplayName   string `json:"display_name"`
}
