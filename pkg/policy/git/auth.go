package git

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"mercator-hq/mixer/pkg/config"
)

// Auth types.
const (
	AuthNone  = "none"
	AuthToken = "token"
	AuthSSH   = "ssh"
)

// ErrUnknownAuthType is returned for an unsupported auth type.
var ErrUnknownAuthType = errors.New("unknown auth type")

// authMethod resolves the transport credentials described by cfg. A nil
// method with a nil error means anonymous access.
func authMethod(cfg config.GitAuthConfig) (transport.AuthMethod, error) {
	switch cfg.Type {
	case AuthNone, "":
		return nil, nil

	case AuthToken:
		if cfg.Token == "" {
			return nil, fmt.Errorf("token auth requires non-empty token")
		}
		// Any username works with personal access tokens.
		return &http.BasicAuth{Username: "git", Password: cfg.Token}, nil

	case AuthSSH:
		if cfg.SSHKeyPath == "" {
			return nil, fmt.Errorf("ssh auth requires ssh_key_path")
		}
		if err := checkKeyFile(cfg.SSHKeyPath); err != nil {
			return nil, err
		}
		keys, err := ssh.NewPublicKeysFromFile("git", cfg.SSHKeyPath, cfg.SSHKeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key: %w", err)
		}
		return keys, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAuthType, cfg.Type)
	}
}

// checkKeyFile rejects a missing key or one readable by group or others.
func checkKeyFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to access SSH key file: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0o077 != 0 {
		return fmt.Errorf("SSH key file permissions too open (%o), should be 0600", mode)
	}
	return nil
}
