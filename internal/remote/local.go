package remote

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// LocalConnector выполняет команды локальным bash.
type LocalConnector struct {
	// Shell — интерпретатор, по умолчанию bash.
	Shell string
}

// NewLocalConnector создаёт LocalConnector.
func NewLocalConnector() *LocalConnector {
	return &LocalConnector{Shell: "bash"}
}

// Run выполняет команду. Соединение игнорируется.
func (c *LocalConnector) Run(ctx context.Context, _ string, command string) (Result, error) {
	shell := c.Shell
	if shell == "" {
		shell = "bash"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command) //nolint:gosec // команды приходят из конфигурации деплоя
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := strings.TrimSpace(out.String())
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{Output: output, Success: false}, nil
		}
		return Result{Output: output}, err
	}
	return Result{Output: output, Success: true}, nil
}

// List читает локальный каталог.
func (c *LocalConnector) List(ctx context.Context, connection, dir string) ([]string, error) {
	return listDir(ctx, c.Run, connection, dir)
}

var _ Connector = (*LocalConnector)(nil)
