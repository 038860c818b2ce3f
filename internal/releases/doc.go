// Package releases управляет релизами на хостах деплоя.
//
// # Обзор
//
// Релиз — каталог releases/<timestamp> на хосте, где timestamp имеет вид
// YYYYMMDDhhmmss. Для каждого handle (соединение или "соединение.stage")
// Manager хранит в state.Store два значения:
//
//   - releases — реестр (Ledger) timestamp → valid в порядке добавления
//   - current_release — указатель на текущий релиз
//
// Реестр — единственный источник правды о валидности. Текущий, предыдущий
// и устаревшие релизы вычисляются из него:
//
//	current    = указатель, иначе max(releases) с сохранением указателя
//	previous   = ближайший более старый валидный релиз, иначе current
//	deprecated = все релизы кроме current, по убыванию
//
// Записи реестра только добавляются или меняют значение на месте.
// Удаление каталогов (Cleanup) реестр не трогает.
//
// # Листинг хоста
//
// Каталог releases на хосте читается не более одного раза за жизнь Manager.
// Имена, не являющиеся timestamp, отбрасываются. Ошибка листинга не фатальна:
// она логируется и запоминается как пустой список.
package releases
