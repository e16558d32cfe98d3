package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// ExecSpawner runs the peer command through a local program.
type ExecSpawner struct {
	argv   func(command string) []string
	stderr io.Writer
}

// NewLocal runs the command with sh -c on this host.
func NewLocal() *ExecSpawner {
	return &ExecSpawner{
		argv:   func(command string) []string { return []string{"sh", "-c", command} },
		stderr: os.Stderr,
	}
}

// NewSSH runs the command on host through the ssh binary, so the user's
// ssh configuration, agent and known_hosts apply unchanged.
func NewSSH(host string) *ExecSpawner {
	return &ExecSpawner{
		argv:   func(command string) []string { return []string{"ssh", "--", host, command} },
		stderr: os.Stderr,
	}
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (p *execProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *execProcess) Stdout() io.Reader     { return p.stdout }
func (p *execProcess) Wait() error           { return p.cmd.Wait() }
func (p *execProcess) Kill() error           { return p.cmd.Process.Kill() }

// Spawn starts the program. The context is not tied to the process: the
// peer ends when its stdin is closed.
func (s *ExecSpawner) Spawn(_ context.Context, command string) (Process, error) {
	argv := s.argv(command)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stderr = s.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}

	return &execProcess{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}
