package tasks

import (
	"context"
	"path"

	"github.com/shaiso/Rollout/internal/remote"
)

// Setup подготавливает хост: каталоги releases и shared.
type Setup struct{}

func (t *Setup) Name() string        { return "Setup" }
func (t *Setup) Description() string { return "Set up the remote server for deployment" }

// Execute создаёт каталоги. Повторный запуск безопасен.
func (t *Setup) Execute(ctx context.Context, tc *Context) (Result, error) {
	dirs := []string{
		tc.Releases.ReleasesPath(),
		tc.Releases.SharedPath(""),
	}
	for _, shared := range tc.Config.Shared {
		dirs = append(dirs, path.Dir(tc.Releases.SharedPath(shared)))
	}

	cmd := "mkdir -p"
	for _, dir := range dirs {
		cmd += " " + remote.Quote(dir)
	}

	res, err := tc.Run(ctx, cmd)
	if err != nil {
		return Failure("setup failed: %v", err), err
	}
	if !res.Success {
		return Failure("setup failed: %s", res.Output), nil
	}

	tc.logger().Info("server is set up", "root", tc.Releases.Root())
	return Success(res.Output), nil
}
