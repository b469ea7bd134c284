package config

import (
	"fmt"
	"strings"
)

// Credential is one configured API key and the identity it authenticates.
type Credential struct {
	Key    string
	UserID string
	Roles  []string
}

// Credentials parses the API_KEYS entries. Each entry has the form
// key:user_id:role[|role]; the role list may be empty.
func (c *SecurityConfig) Credentials() ([]Credential, error) {
	creds := make([]Credential, 0, len(c.APIKeys))
	seen := make(map[string]bool, len(c.APIKeys))
	for i, entry := range c.APIKeys {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("API_KEYS entry %d: want key:user_id:role[|role]", i+1)
		}
		if seen[parts[0]] {
			return nil, fmt.Errorf("API_KEYS entry %d: duplicate key", i+1)
		}
		seen[parts[0]] = true

		cred := Credential{Key: parts[0], UserID: parts[1]}
		if len(parts) == 3 {
			for _, role := range strings.Split(parts[2], "|") {
				if role = strings.TrimSpace(role); role != "" {
					cred.Roles = append(cred.Roles, role)
				}
			}
		}
		creds = append(creds, cred)
	}
	return creds, nil
}
