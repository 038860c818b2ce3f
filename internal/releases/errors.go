package releases

import "errors"

// Ошибки управления релизами.
var (
	// ErrNoReleases — нет ни указателя, ни релизов в реестре и на хосте.
	ErrNoReleases = errors.New("no releases found")

	// ErrInvalidLedger — сохранённый реестр не удалось разобрать.
	ErrInvalidLedger = errors.New("invalid releases ledger")
)
