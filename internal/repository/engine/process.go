package engine

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Process is a running analysis engine: a line-oriented stdin/stdout pair.
type Process interface {
	Stdin() io.Writer
	Stdout() io.Reader
	// Close releases the process. It must not block on the engine cooperating.
	Close() error
}

// SpawnFunc starts a new engine process.
type SpawnFunc func() (Process, error)

type execProcess struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    io.ReadCloser
	closeOnce sync.Once
	closeErr  error
}

// ExecSpawner starts the engine binary at path with args.
func ExecSpawner(path string, args ...string) SpawnFunc {
	return func() (Process, error) {
		cmd := exec.Command(path, args...)

		stdinPipe, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("engine stdin: %w", err)
		}
		stdoutPipe, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("engine stdout: %w", err)
		}

		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start %s: %w", path, err)
		}

		return &execProcess{
			cmd:    cmd,
			stdin:  stdinPipe,
			stdout: stdoutPipe,
		}, nil
	}
}

func (p *execProcess) Stdin() io.Writer  { return p.stdin }
func (p *execProcess) Stdout() io.Reader { return p.stdout }

func (p *execProcess) Close() error {
	p.closeOnce.Do(func() {
		_ = p.stdin.Close()
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		// Wait reaps the child; a kill status is expected here.
		if err := p.cmd.Wait(); err != nil {
			if _, ok := err.(*exec.ExitError); !ok {
				p.closeErr = err
			}
		}
	})
	return p.closeErr
}
