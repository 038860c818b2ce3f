package queue

import (
	"strings"

	"github.com/shaiso/Rollout/internal/tasks"
)

// EntryKind — вид элемента очереди.
type EntryKind int

const (
	// KindCommand — shell-команда.
	KindCommand EntryKind = iota

	// KindFunc — функция.
	KindFunc

	// KindTask — имя зарегистрированной задачи.
	KindTask
)

func (k EntryKind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindFunc:
		return "func"
	case KindTask:
		return "task"
	default:
		return "unknown"
	}
}

// Entry — элемент очереди.
type Entry struct {
	kind  EntryKind
	text  string
	label string
	fn    tasks.Callback
}

// Command создаёт элемент с shell-командой.
func Command(text string) Entry {
	return Entry{kind: KindCommand, text: text}
}

// Func создаёт элемент с функцией. label используется в логах.
func Func(label string, fn tasks.Callback) Entry {
	return Entry{kind: KindFunc, label: label, fn: fn}
}

// Task создаёт элемент с именем задачи.
func Task(name string) Entry {
	return Entry{kind: KindTask, text: name}
}

// Kind возвращает вид элемента.
func (e Entry) Kind() EntryKind {
	return e.kind
}

// String возвращает текст команды, имя задачи или label функции.
func (e Entry) String() string {
	if e.kind == KindFunc {
		return e.label
	}
	return e.text
}

// Parse превращает строку в элемент: имя зарегистрированной задачи
// становится Task, всё остальное — Command.
func Parse(registry *tasks.Registry, s string) Entry {
	s = strings.TrimSpace(s)
	if registry != nil && registry.Has(s) {
		return Task(s)
	}
	return Command(s)
}

// ParseAll применяет Parse к каждой строке.
func ParseAll(registry *tasks.Registry, items []string) []Entry {
	out := make([]Entry, len(items))
	for i, s := range items {
		out[i] = Parse(registry, s)
	}
	return out
}
