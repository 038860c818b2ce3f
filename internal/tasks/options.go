package tasks

import (
	"strconv"
)

// Имена опций.
const (
	OptTests    = "tests"
	OptMigrate  = "migrate"
	OptSeed     = "seed"
	OptParallel = "parallel"
	OptRelease  = "release"
	OptCleanAll = "clean_all"
)

// Options — набор опций задачи.
type Options map[string]any

// MergeOptions объединяет наборы; более поздние перекрывают ранние.
func MergeOptions(sets ...map[string]any) Options {
	out := make(Options)
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}

// Bool возвращает булеву опцию. Строки "true", "1", "yes" и ненулевые числа
// (в том числе float64 из JSON) тоже истинны.
func (o Options) Bool(name string) bool {
	switch v := o[name].(type) {
	case bool:
		return v
	case string:
		switch v {
		case "true", "1", "yes":
			return true
		}
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	return false
}

// String возвращает строковую опцию.
func (o Options) String(name string) string {
	switch v := o[name].(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// Int64 возвращает числовую опцию, 0 если её нет или она не число.
func (o Options) Int64(name string) int64 {
	switch v := o[name].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}
