package gitfs

import (
	"errors"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/go-logr/logr"
	gossh "golang.org/x/crypto/ssh"
)

// Credentials carries everything needed to authenticate against a
// remote: HTTP basic-auth fields and SSH key material.
type Credentials struct {
	Username       string
	Password       string
	SSHPrivateKey  string
	SSHKeyPassword string
	KnownHosts     string
}

// AuthMethod builds a transport.AuthMethod from Credentials, preferring
// SSH key material over HTTP basic auth when both are present.
func AuthMethod(logger logr.Logger, creds Credentials) (transport.AuthMethod, error) {
	if creds.SSHPrivateKey != "" {
		return getSSHAuthMethod(logger, creds.SSHPrivateKey, creds.SSHKeyPassword, creds.KnownHosts)
	}
	if creds.Username != "" && creds.Password != "" {
		return getHTTPAuthMethod(creds.Username, creds.Password)
	}
	return nil, nil //nolint:nilnil // nil auth is valid for a public repository
}

func getHTTPAuthMethod(username, password string) (transport.AuthMethod, error) {
	if username == "" {
		return nil, errors.New("username cannot be empty")
	}
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}
	return &http.BasicAuth{Username: username, Password: password}, nil
}

func getSSHAuthMethod(logger logr.Logger, privateKey, password, knownHosts string) (transport.AuthMethod, error) {
	if privateKey == "" {
		return nil, errors.New("private key cannot be empty")
	}

	publicKeys, err := ssh.NewPublicKeys("git", []byte(privateKey), password)
	if err != nil {
		return nil, err
	}

	if knownHosts == "" {
		logger.Info("no known_hosts provided, using insecure SSH host key verification")
		//nolint:gosec // deliberate fallback when known_hosts is absent
		publicKeys.HostKeyCallback = gossh.InsecureIgnoreHostKey()
		return publicKeys, nil
	}

	callback, err := knownHostsCallback(knownHosts)
	if err != nil {
		logger.Info("failed to parse known_hosts, falling back to insecure verification", "error", err)
		//nolint:gosec // deliberate fallback when known_hosts is unparsable
		publicKeys.HostKeyCallback = gossh.InsecureIgnoreHostKey()
		return publicKeys, nil
	}
	publicKeys.HostKeyCallback = callback
	return publicKeys, nil
}

func knownHostsCallback(knownHosts string) (gossh.HostKeyCallback, error) {
	tmpFile, err := os.CreateTemp("", "vfscore_known_hosts_*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.WriteString(knownHosts); err != nil {
		return nil, err
	}
	if err := tmpFile.Close(); err != nil {
		return nil, err
	}

	return ssh.NewKnownHostsCallback(tmpFile.Name())
}
