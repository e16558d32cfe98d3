package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// NativeOptions configures the built-in SSH client.
type NativeOptions struct {
	User           string
	Port           string
	KnownHostsPath string
	IdentityFiles  []string
}

// NativeSSH runs the peer command over an SSH session opened with
// golang.org/x/crypto/ssh instead of the ssh binary.
type NativeSSH struct {
	host string
	opts NativeOptions

	dial func(network, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error)
}

func NewNativeSSH(host string, opts NativeOptions) *NativeSSH {
	return &NativeSSH{host: host, opts: opts, dial: ssh.Dial}
}

// target splits "user@host" and fills in defaults.
func (s *NativeSSH) target() (user, addr string) {
	host := s.host
	user = s.opts.User
	if u, h, ok := strings.Cut(host, "@"); ok {
		user, host = u, h
	}
	if user == "" {
		user = os.Getenv("USER")
	}
	port := s.opts.Port
	if port == "" {
		port = "22"
	}
	return user, net.JoinHostPort(host, port)
}

func defaultSSHPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", name)
}

func (s *NativeSSH) authMethods() ([]ssh.AuthMethod, io.Closer) {
	var methods []ssh.AuthMethod
	var agentConn io.Closer

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			agentConn = conn
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	files := s.opts.IdentityFiles
	if len(files) == 0 {
		files = []string{defaultSSHPath("id_ed25519"), defaultSSHPath("id_ecdsa"), defaultSSHPath("id_rsa")}
	}
	var signers []ssh.Signer
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	return methods, agentConn
}

func (s *NativeSSH) clientConfig() (*ssh.ClientConfig, io.Closer, error) {
	knownHosts := s.opts.KnownHostsPath
	if knownHosts == "" {
		knownHosts = defaultSSHPath("known_hosts")
	}
	hostKeyCallback, err := knownhosts.New(knownHosts)
	if err != nil {
		return nil, nil, fmt.Errorf("known hosts %s: %w", knownHosts, err)
	}

	user, _ := s.target()
	methods, agentConn := s.authMethods()
	if len(methods) == 0 {
		return nil, nil, fmt.Errorf("no ssh credentials: start an agent or provide an identity file")
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            methods,
		HostKeyCallback: hostKeyCallback,
	}, agentConn, nil
}

type nativeProcess struct {
	client    *ssh.Client
	session   *ssh.Session
	agentConn io.Closer
	stdin     io.WriteCloser
	stdout    io.Reader
}

func (p *nativeProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *nativeProcess) Stdout() io.Reader     { return p.stdout }

func (p *nativeProcess) Wait() error {
	err := p.session.Wait()
	p.close()
	return err
}

func (p *nativeProcess) Kill() error {
	_ = p.session.Signal(ssh.SIGKILL)
	return p.session.Close()
}

func (p *nativeProcess) close() {
	_ = p.session.Close()
	_ = p.client.Close()
	if p.agentConn != nil {
		_ = p.agentConn.Close()
	}
}

func (s *NativeSSH) Spawn(_ context.Context, command string) (Process, error) {
	cfg, agentConn, err := s.clientConfig()
	if err != nil {
		return nil, err
	}

	_, addr := s.target()
	client, err := s.dial("tcp", addr, cfg)
	if err != nil {
		if agentConn != nil {
			agentConn.Close()
		}
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		if agentConn != nil {
			agentConn.Close()
		}
		return nil, fmt.Errorf("ssh session: %w", err)
	}

	p := &nativeProcess{client: client, session: session, agentConn: agentConn}

	if p.stdin, err = session.StdinPipe(); err != nil {
		p.close()
		return nil, fmt.Errorf("ssh stdin: %w", err)
	}
	if p.stdout, err = session.StdoutPipe(); err != nil {
		p.close()
		return nil, fmt.Errorf("ssh stdout: %w", err)
	}
	session.Stderr = os.Stderr

	if err := session.Start(command); err != nil {
		p.close()
		return nil, fmt.Errorf("ssh start: %w", err)
	}
	return p, nil
}
