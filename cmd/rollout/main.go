// Rollout CLI — выполняет очереди задач деплоя на удалённых хостах.
//
// Использование:
//
//	rollout [--config FILE] [--on CONN,...] [--stage STAGE] [--json] <command> [flags]
//
// Команды:
//
//	deploy     Новый релиз
//	rollback   Откат на предыдущий или указанный релиз
//	setup      Создание структуры каталогов
//	cleanup    Удаление старых релизов
//	current    Текущий релиз
//	test       Запуск тестов
//	run        Выполнение произвольных команд
//	releases   Список релизов
//	history    История проходов
//	request    Отправка запроса агенту
//	schedules  Расписания
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Rollout/internal/cli"
	"github.com/shaiso/Rollout/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	logger := telemetry.SetupLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := cli.NewRootCmd(cli.RootOptions{
		Version: version,
		Logger:  logger,
	})

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
