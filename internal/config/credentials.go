package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Alzter/EmpKiller/internal/portal"
)

// LoadCredentials reads the portal login pair from a JSON file of the form
// {"username": "...", "password": "..."} (the original token.json layout).
// The file should be mode 0600; the credentials are read once and handed
// to the portal client, never written back or logged.
func LoadCredentials(path string) (portal.Credentials, error) {
	if path == "" {
		return portal.Credentials{}, errors.New("credentials path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return portal.Credentials{}, fmt.Errorf("reading credentials file: %w", err)
	}

	var creds portal.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return portal.Credentials{}, fmt.Errorf("parsing credentials file %s: %w", path, err)
	}
	if creds.Username == "" || creds.Password == "" {
		return portal.Credentials{}, fmt.Errorf("credentials file %s is missing username or password", path)
	}
	return creds, nil
}
