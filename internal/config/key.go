// ABOUTME: Shared secret loading from the key file
// ABOUTME: The trimmed file contents are the HMAC key

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ReadKey reads the shared secret from path.
func ReadKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return nil, errors.New("key file is empty")
	}
	return []byte(key), nil
}
