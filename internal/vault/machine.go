package vault

import (
	"crypto/sha256"
	"os"
	"os/user"
	"strings"
)

// MachineMaterial derives key material from identifiers local to this
// machine and user. The material is never persisted or transmitted, so a
// vault record copied to another host decrypts to an authentication error
// rather than the token.
func MachineMaterial() []byte {
	var factors []string

	if host, err := os.Hostname(); err == nil {
		factors = append(factors, host)
	}
	if u, err := user.Current(); err == nil {
		factors = append(factors, u.Uid, u.Username)
	}
	if home, err := os.UserHomeDir(); err == nil {
		factors = append(factors, home)
	}

	sum := sha256.Sum256([]byte(strings.Join(factors, "|")))
	return sum[:]
}
