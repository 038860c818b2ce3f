// Package tasks содержит единицу исполнения очереди и встроенные задачи.
//
// # Обзор
//
// Task выполняется на одной паре (connection, stage) через явный Context:
// глобального "текущего соединения" нет. Context даёт доступ к соединению,
// менеджеру релизов, стратегиям и опциям, а через Runner позволяет задаче
// запустить другую задачу по имени (ExecuteTask).
//
// Результат задачи с Failed == true отменяет оставшуюся часть прохода.
//
// # Встроенные задачи
//
//	Setup         — создаёт releases/ и shared/
//	Deploy        — полный пайплайн деплоя с откатом
//	CreateRelease — стратегия Deploy в каталог нового релиза
//	Dependencies  — стратегия Dependencies
//	Test          — стратегия Test
//	Migrate       — стратегия Migrate (seed по опции)
//	Rollback      — возврат current на предыдущий валидный релиз
//	Cleanup       — удаление старых каталогов релизов
//	Current       — текущий релиз и его валидность
package tasks
