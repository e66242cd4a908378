package backend

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// CommandExecutor runs backend programs.
type CommandExecutor interface {
	// Run executes cmd and returns its standard output.
	Run(cmd *exec.Cmd) (string, error)
}

// CommandError describes a backend program that exited unsuccessfully.
type CommandError struct {
	Name   string
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Name, strings.Join(e.Args, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CommandError) Unwrap() []error {
	return []error{ErrBackendFailed, e.Err}
}

// ExecExecutor delegates to os/exec.
type ExecExecutor struct{}

func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{}
}

// Run implements CommandExecutor.Run
func (e *ExecExecutor) Run(cmd *exec.Cmd) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		name := ""
		if len(cmd.Args) > 0 {
			name = cmd.Args[0]
		}
		var args []string
		if len(cmd.Args) > 1 {
			args = cmd.Args[1:]
		}
		return "", &CommandError{Name: name, Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}
