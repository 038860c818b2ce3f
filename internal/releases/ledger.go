package releases

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Entry — запись реестра.
type Entry struct {
	Release int64
	Valid   bool

	// Position — индекс записи в реестре.
	Position int
}

// Ledger — упорядоченный реестр релизов: timestamp → valid.
// Порядок — порядок первого добавления.
type Ledger struct {
	order []int64
	valid map[int64]bool
}

// NewLedger создаёт пустой реестр.
func NewLedger() *Ledger {
	return &Ledger{valid: make(map[int64]bool)}
}

// Set добавляет релиз в конец или меняет значение существующей записи.
func (l *Ledger) Set(release int64, valid bool) {
	if _, ok := l.valid[release]; !ok {
		l.order = append(l.order, release)
	}
	l.valid[release] = valid
}

// Get возвращает валидность релиза и признак его наличия.
func (l *Ledger) Get(release int64) (valid, ok bool) {
	valid, ok = l.valid[release]
	return valid, ok
}

// Has сообщает, есть ли релиз в реестре.
func (l *Ledger) Has(release int64) bool {
	_, ok := l.valid[release]
	return ok
}

// Len возвращает количество записей.
func (l *Ledger) Len() int {
	return len(l.order)
}

// Releases возвращает релизы в порядке реестра.
func (l *Ledger) Releases() []int64 {
	return append([]int64(nil), l.order...)
}

// Entries возвращает записи в порядке реестра.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.order))
	for i, r := range l.order {
		out[i] = Entry{Release: r, Valid: l.valid[r], Position: i}
	}
	return out
}

// Map возвращает копию реестра без порядка.
func (l *Ledger) Map() map[int64]bool {
	out := make(map[int64]bool, len(l.valid))
	for r, v := range l.valid {
		out[r] = v
	}
	return out
}

// MarshalJSON кодирует реестр JSON-объектом с сохранением порядка ключей.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range l.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.FormatInt(r, 10))
		buf.WriteString(`":`)
		buf.WriteString(strconv.FormatBool(l.valid[r]))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON разбирает JSON-объект, сохраняя порядок ключей.
// Нечисловые ключи пропускаются.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	*l = Ledger{valid: make(map[int64]bool)}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLedger, err)
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: expected object", ErrInvalidLedger)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidLedger, err)
		}
		key, _ := tok.(string)

		var valid bool
		if err := dec.Decode(&valid); err != nil {
			return fmt.Errorf("%w: value for %q: %v", ErrInvalidLedger, key, err)
		}

		release, ok := ParseRelease(key)
		if !ok {
			continue
		}
		l.Set(release, valid)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLedger, err)
	}
	return nil
}

// ParseRelease разбирает имя каталога релиза.
// Допустимы только непустые строки из цифр.
func ParseRelease(name string) (int64, bool) {
	if name == "" {
		return 0, false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	release, err := strconv.ParseInt(name, 10, 64)
	if err != nil || release <= 0 {
		return 0, false
	}
	return release, true
}

// SortDesc сортирует релизы по убыванию на месте.
func SortDesc(releases []int64) {
	sort.Slice(releases, func(i, j int) bool { return releases[i] > releases[j] })
}
