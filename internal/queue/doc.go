// Package queue выполняет очереди задач на матрице connection × stage.
//
// # Обзор
//
// Очередь — упорядоченный список разнородных элементов (Entry):
// shell-команда, функция или имя зарегистрированной задачи.
// Перед выполнением очередь целиком превращается в список tasks.Task,
// поэтому неизвестная задача обнаруживается до любых побочных эффектов.
//
// # Матрица
//
// Для каждого соединения и каждого его stage очередь выполняется один раз.
// Порядок — соединения снаружи, stages внутри:
//
//	(c1,s1) (c1,s2) (c2,s1) (c2,s2)
//
// Соединение без stages даёт один проход с пустым stage.
//
// # Проход
//
//	PENDING → RUNNING(i) → RUNNING(i+1) | CANCELED | COMPLETED
//
// Неуспешный результат задачи в середине очереди прерывает проход:
// остальные задачи не запускаются, в лог пишется
// `the tasks queue was canceled by task "<name>"`. Неуспех последней
// задачи делает проход FAILED. Остальные проходы выполняются в любом случае.
//
// # Параллельность
//
// По умолчанию проходы выполняются последовательно. С Concurrent каждое
// соединение обрабатывается в своей горутине (errgroup), а Report всё равно
// упорядочен по матрице.
//
// Execute — отдельный путь для плоского списка команд. В режиме parallel
// весь список одним вызовом уходит в ParallelEngine; сбой одной команды
// не останавливает остальные.
package queue
