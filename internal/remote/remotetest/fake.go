// Package remotetest содержит тестовый remote.Connector.
package remotetest

import (
	"context"
	"strings"
	"sync"

	"github.com/shaiso/Rollout/internal/remote"
)

// Call — записанный вызов Fake.
type Call struct {
	Connection string
	Command    string
}

// Fake — тестовый Connector: записывает вызовы и отвечает по правилам.
//
// Ответ берётся из самого длинного шаблона, входящего в команду.
// Без совпадения команда считается успешной с пустым выводом.
type Fake struct {
	mu sync.Mutex

	// Calls — все вызовы Run в порядке поступления.
	Calls []Call

	// Responses — подстрока команды → результат.
	Responses map[string]remote.Result

	// Listings — каталог → записи для List.
	Listings map[string][]string

	// ListErr возвращается из List, если задан.
	ListErr error

	// ListCalls — сколько раз вызывался List.
	ListCalls int
}

// NewFake создаёт пустой Fake.
func NewFake() *Fake {
	return &Fake{
		Responses: make(map[string]remote.Result),
		Listings:  make(map[string][]string),
	}
}

// Respond задаёт ответ для команд, содержащих pattern.
func (f *Fake) Respond(pattern string, res remote.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[pattern] = res
}

// Run записывает вызов и возвращает подобранный ответ.
func (f *Fake) Run(ctx context.Context, connection, command string) (remote.Result, error) {
	if err := ctx.Err(); err != nil {
		return remote.Result{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, Call{Connection: connection, Command: command})

	best := ""
	for pattern := range f.Responses {
		if strings.Contains(command, pattern) && len(pattern) > len(best) {
			best = pattern
		}
	}
	if best != "" {
		return f.Responses[best], nil
	}
	return remote.Result{Success: true}, nil
}

// List возвращает заданные записи каталога.
func (f *Fake) List(_ context.Context, _ string, dir string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]string(nil), f.Listings[dir]...), nil
}

// Commands возвращает команды всех вызовов.
func (f *Fake) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		out[i] = c.Command
	}
	return out
}

var _ remote.Connector = (*Fake)(nil)
