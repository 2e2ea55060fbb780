package mcp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"convo/logging"
)

// ServerConfig describes how to launch an MCP server subprocess.
type ServerConfig struct {
	// Name identifies the server in logs and tool metadata.
	Name string
	// Command is the executable to run.
	Command string
	// Args are passed to the command.
	Args []string
	// Env holds extra environment variables (KEY=VALUE resolution applied).
	Env map[string]string
}

// process owns one MCP server subprocess and its stdio pipes.
type process struct {
	cfg    ServerConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	logger logging.Logger

	mu      sync.Mutex
	running bool
	exited  chan error
}

// buildEnv layers configured overrides on top of the inherited environment
// so the child keeps PATH, HOME and friends. exec.Cmd resolves duplicate
// keys to the last occurrence, which makes the overrides win.
func buildEnv(overrides map[string]string) []string {
	env := os.Environ()
	for k, v := range overrides {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

func newProcess(cfg ServerConfig, logger logging.Logger) *process {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &process{cfg: cfg, logger: logger}
}

// start spawns the subprocess and wires its pipes. The process is not tied
// to a context: its lifetime is managed explicitly through stop so an MCP
// server outlives individual turns.
func (p *process) start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("mcp server %q already running", p.cfg.Name)
	}

	command := strings.TrimSpace(p.cfg.Command)
	if command == "" {
		return fmt.Errorf("mcp server %q: command is required", p.cfg.Name)
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		return fmt.Errorf("mcp server %q: command not found: %w", p.cfg.Name, err)
	}

	cmd := exec.Command(resolved, p.cfg.Args...)
	cmd.Env = buildEnv(p.cfg.Env)

	if p.stdin, err = cmd.StdinPipe(); err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	if p.stdout, err = cmd.StdoutPipe(); err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if p.stderr, err = cmd.StderrPipe(); err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start mcp server %q: %w", p.cfg.Name, err)
	}

	p.cmd = cmd
	p.running = true
	p.exited = make(chan error, 1)
	p.logger.Info("mcp.server.started", "server", p.cfg.Name, "pid", cmd.Process.Pid)

	go p.drainStderr()
	go func() { p.exited <- cmd.Wait() }()

	return nil
}

// stop closes stdin for a graceful shutdown and kills the process if it has
// not exited within the timeout.
func (p *process) stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stdin, cmd, exited := p.stdin, p.cmd, p.exited
	p.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}

	select {
	case err := <-exited:
		p.logger.Info("mcp.server.stopped", "server", p.cfg.Name, "err", err)
		return nil
	case <-time.After(timeout):
		p.logger.Warn("mcp.server.kill", "server", p.cfg.Name)
		if cmd != nil && cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil {
				return fmt.Errorf("kill mcp server %q: %w", p.cfg.Name, err)
			}
		}
		return nil
	}
}

func (p *process) isRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// write sends one frame to the server's stdin.
func (p *process) write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || p.stdin == nil {
		return fmt.Errorf("mcp server %q not running", p.cfg.Name)
	}

	if _, err := p.stdin.Write(data); err != nil {
		return fmt.Errorf("write to mcp server %q: %w", p.cfg.Name, err)
	}
	return nil
}

// drainStderr forwards server diagnostics to the log.
func (p *process) drainStderr() {
	if p.stderr == nil {
		return
	}
	scanner := bufio.NewScanner(p.stderr)
	for scanner.Scan() {
		p.logger.Debug("mcp.server.stderr", "server", p.cfg.Name, "line", scanner.Text())
	}
}
