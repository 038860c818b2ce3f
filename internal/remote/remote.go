// Package remote выполняет shell-команды на хостах деплоя.
//
// # Обзор
//
// Connector — единственный контракт между планировщиком и хостами:
// выполнить команду на соединении и прочитать содержимое каталога.
// Реализации:
//   - SSHConnector — golang.org/x/crypto/ssh, клиент кэшируется на соединение
//   - LocalConnector — локальный bash, для соединений с local: true
//   - Router — выбирает реализацию по конфигурации соединения
//
// Тестовый Connector находится в пакете remotetest.
//
// Ненулевой код завершения команды не является ошибкой транспорта:
// он возвращается как Result.Success == false.
package remote

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Ошибки выполнения команд.
var (
	// ErrListFailed — не удалось прочитать каталог на хосте.
	ErrListFailed = errors.New("remote listing failed")

	// ErrDial — не удалось подключиться к хосту.
	ErrDial = errors.New("remote dial failed")
)

// Result — результат выполнения команды.
type Result struct {
	Output  string
	Success bool
}

// Connector выполняет команды на именованном соединении.
type Connector interface {
	// Run выполняет команду через shell хоста.
	Run(ctx context.Context, connection, command string) (Result, error)

	// List возвращает имена записей каталога.
	List(ctx context.Context, connection, dir string) ([]string, error)
}

type runFunc func(ctx context.Context, connection, command string) (Result, error)

// listDir читает каталог через ls и разбивает вывод на строки.
func listDir(ctx context.Context, run runFunc, connection, dir string) ([]string, error) {
	res, err := run(ctx, connection, "ls -1 "+Quote(dir))
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s: %s", ErrListFailed, dir, strings.TrimSpace(res.Output))
	}
	return SplitLines(res.Output), nil
}

// SplitLines разбивает вывод команды на непустые строки.
func SplitLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, path.Base(line))
	}
	return lines
}

// Quote экранирует аргумент для POSIX shell.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("/._-:@%+=,", r)
}
