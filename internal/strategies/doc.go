// Package strategies содержит подключаемые алгоритмы деплоя.
//
// # Обзор
//
// Задача деплоя не знает, как именно код попадает на хост или как
// ставятся зависимости. Она запрашивает реализацию по роли:
//
//	Deploy       — clone, copy, archive
//	Dependencies — composer, npm, command
//	Test         — phpunit, command
//	Migrate      — artisan, command
//
// Registry хранит каталог реализаций и привязку роль → реализация,
// которая строится из секции strategies конфигурации (FromConfig).
//
// Реализации только формируют shell-команды и выполняют их через Shell.
// Они не хранят состояния между вызовами.
package strategies
