// Package worker реализует агент деплоя.
//
// # Обзор
//
// Агент потребляет запросы из очереди deploys.requested, выполняет
// очередь задач на матрице соединений и публикует итог в deploys.completed.
// Несколько агентов могут слушать одну очередь: prefetch равен 1,
// а внутри процесса запросы выполняются по одному.
//
//	w := worker.New(worker.Config{
//	    Config:     cfg,
//	    Strategies: strats,
//	    Connector:  router,
//	    Store:      store,
//	    Recorder:   passRepo,
//	    Publisher:  publisher,
//	    Conn:       mqConn,
//	    Logger:     logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Подтверждение
//
// Выполненный запрос подтверждается всегда, даже если деплой провалился.
// Ошибка разбора payload возвращает сообщение в очередь один раз,
// повторная ошибка отправляет его в dlq.deploys.
//
// # Итог
//
// DeployOutcome публикуется в брокер и, если задан notifications.webhook,
// отправляется POST-запросом. Обе операции повторяются по RetryPolicy,
// их сбой не влияет на результат деплоя.
package worker
