package state

import (
	"context"
	"errors"
)

// Ошибки хранилища.
var (
	// ErrStoreUnavailable — хранилище не сконфигурировано или недоступно.
	ErrStoreUnavailable = errors.New("state store unavailable")
)

// Store — key/value хранилище, разделённое по handle.
type Store interface {
	// Get возвращает значение и признак его наличия.
	Get(ctx context.Context, handle, key string) (string, bool, error)

	// Set сохраняет значение.
	Set(ctx context.Context, handle, key, value string) error
}

// PhysicalKey возвращает ключ в плоском пространстве имён: "<key>.<handle>".
func PhysicalKey(handle, key string) string {
	if handle == "" {
		return key
	}
	return key + "." + handle
}
