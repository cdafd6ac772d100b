package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// AgentKeySource is the --ssh-key value that selects the running SSH agent.
const AgentKeySource = "agent"

// AgentAvailable reports whether SSH_AUTH_SOCK is set.
func AgentAvailable() bool {
	return os.Getenv("SSH_AUTH_SOCK") != ""
}

// LoadSigners resolves a key source into signers.
//
// An empty source yields no signers, AgentKeySource asks the SSH agent, and
// anything else is read as an OpenSSH private key file.
func LoadSigners(source string) ([]ssh.Signer, error) {
	switch source {
	case "":
		return nil, nil
	case AgentKeySource:
		return agentSigners()
	}

	pem, err := os.ReadFile(source) //nolint:gosec // Path is from user config.
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", source, err)
	}
	return []ssh.Signer{signer}, nil
}

// agentSigners lists the agent's keys. The agent connection stays open for
// the life of the process because the signers sign through it.
func agentSigners() ([]ssh.Signer, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, errors.New("ssh agent: SSH_AUTH_SOCK not set")
	}

	var d net.Dialer
	conn, err := d.DialContext(context.Background(), "unix", sock)
	if err != nil {
		return nil, fmt.Errorf("ssh agent: %w", err)
	}

	signers, err := agent.NewClient(conn).Signers()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh agent signers: %w", err)
	}
	if len(signers) == 0 {
		_ = conn.Close()
		return nil, errors.New("ssh agent: no keys loaded")
	}
	return signers, nil
}
