package remote

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/opsfab/opsfab/types"
)

// SSHRunner executes commands on a remote host over SSH. Each operation
// dials a fresh connection; deployment runs are command-sparse enough
// that connection reuse isn't worth the lifecycle bookkeeping.
type SSHRunner struct {
	Host                        string
	Port                        string
	User                        string
	KeyPath                     string
	Passphrase                  []byte
	KnownHostsPath              string
	InsecureSkipHostKeyChecking bool
	Timeout                     time.Duration
}

// NewSSHRunner builds an SSHRunner for a parsed host
func NewSSHRunner(host types.Host, keyPath string) *SSHRunner {
	return &SSHRunner{
		Host:    host.Addr,
		Port:    host.Port,
		User:    host.User,
		KeyPath: keyPath,
	}
}

func (r *SSHRunner) Run(ctx context.Context, cmd string, args ...string) (string, error) {
	return r.run(ctx, joinCommand(cmd, args))
}

func (r *SSHRunner) Sudo(ctx context.Context, cmd string, args ...string) (string, error) {
	return r.run(ctx, "sudo "+joinCommand(cmd, args))
}

func (r *SSHRunner) run(ctx context.Context, commandLine string) (string, error) {
	client, err := r.dial(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	out, err := session.CombinedOutput(commandLine)
	return string(out), err
}

func (r *SSHRunner) RunStreaming(ctx context.Context, cmd string, args []string, stdout, stderr io.Writer) error {
	client, err := r.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	if stdout != nil {
		session.Stdout = stdout
	}
	if stderr != nil {
		session.Stderr = stderr
	}

	return session.Run(joinCommand(cmd, args))
}

// Put uploads src over SFTP, creating parent directories as needed
func (r *SSHRunner) Put(ctx context.Context, src io.Reader, dest string, mode os.FileMode) error {
	if mode == 0 {
		mode = 0644
	}

	client, sftpClient, err := r.dialSFTP(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	defer sftpClient.Close()

	if dir := path.Dir(dest); dir != "." && dir != "/" {
		if err := sftpClient.MkdirAll(dir); err != nil {
			return fmt.Errorf("failed to create parent directory %s: %w", dir, err)
		}
	}

	f, err := sftpClient.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dest, err)
	}

	if err := sftpClient.Chmod(dest, mode); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", dest, err)
	}
	return nil
}

func (r *SSHRunner) Get(ctx context.Context, src string, dst io.Writer) error {
	client, sftpClient, err := r.dialSFTP(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	defer sftpClient.Close()

	f, err := sftpClient.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()

	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	return nil
}

func (r *SSHRunner) Exists(ctx context.Context, p string) (bool, error) {
	client, sftpClient, err := r.dialSFTP(ctx)
	if err != nil {
		return false, err
	}
	defer client.Close()
	defer sftpClient.Close()

	if _, err := sftpClient.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *SSHRunner) dialSFTP(ctx context.Context) (*ssh.Client, *sftp.Client, error) {
	client, err := r.dial(ctx)
	if err != nil {
		return nil, nil, err
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to start sftp subsystem: %w", err)
	}
	return client, sftpClient, nil
}

func (r *SSHRunner) dial(ctx context.Context) (*ssh.Client, error) {
	address, err := r.address()
	if err != nil {
		return nil, err
	}

	config, err := r.clientConfig()
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: r.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", address, err)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", address, err)
	}

	return ssh.NewClient(clientConn, chans, reqs), nil
}

func (r *SSHRunner) address() (string, error) {
	host := strings.TrimSpace(r.Host)
	if host == "" {
		return "", fmt.Errorf("ssh host is required")
	}

	if r.Port != "" {
		return net.JoinHostPort(host, r.Port), nil
	}

	if _, _, err := net.SplitHostPort(host); err == nil {
		return host, nil
	}

	return net.JoinHostPort(host, "22"), nil
}

func (r *SSHRunner) clientConfig() (*ssh.ClientConfig, error) {
	if r.User == "" {
		return nil, fmt.Errorf("ssh user is required")
	}

	signer, err := r.signer()
	if err != nil {
		return nil, err
	}

	var hostKeyCallback ssh.HostKeyCallback
	if r.InsecureSkipHostKeyChecking {
		hostKeyCallback = ssh.InsecureIgnoreHostKey() // #nosec G106 -- explicit opt-in
	} else {
		callback, err := r.knownHostsCallback()
		if err != nil {
			return nil, err
		}
		hostKeyCallback = callback
	}

	return &ssh.ClientConfig{
		User:            r.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         r.Timeout,
	}, nil
}

func (r *SSHRunner) signer() (ssh.Signer, error) {
	if r.KeyPath == "" {
		return nil, fmt.Errorf("ssh key path is required")
	}

	privateKey, err := os.ReadFile(r.KeyPath)
	if err != nil {
		return nil, err
	}

	if len(r.Passphrase) > 0 {
		return ssh.ParsePrivateKeyWithPassphrase(privateKey, r.Passphrase)
	}

	return ssh.ParsePrivateKey(privateKey)
}

func (r *SSHRunner) knownHostsCallback() (ssh.HostKeyCallback, error) {
	p := strings.TrimSpace(r.KnownHostsPath)
	if p == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("known hosts path not set and home dir unavailable")
		}
		p = filepath.Join(home, ".ssh", "known_hosts")
	}

	return knownhosts.New(p)
}
