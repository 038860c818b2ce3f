package strategies

import (
	"context"
	"fmt"

	"github.com/shaiso/Rollout/internal/remote"
)

// CloneStrategy клонирует репозиторий в каталог релиза.
type CloneStrategy struct {
	Repository string
	Branch     string
}

// NewCloneStrategy создаёт CloneStrategy.
func NewCloneStrategy(repository, branch string) *CloneStrategy {
	return &CloneStrategy{Repository: repository, Branch: branch}
}

func (s *CloneStrategy) Name() string  { return "clone" }
func (s *CloneStrategy) Roles() []Role { return []Role{RoleDeploy} }

// Deploy выполняет shallow clone и инициализирует сабмодули.
func (s *CloneStrategy) Deploy(ctx context.Context, sh Shell, target Target) (remote.Result, error) {
	if s.Repository == "" {
		return remote.Result{Output: "repository url is not configured"}, nil
	}
	cmd := fmt.Sprintf("git clone --depth 1 -b %s %s %s && cd %s && git submodule update --init --recursive",
		remote.Quote(s.Branch),
		remote.Quote(s.Repository),
		remote.Quote(target.ReleasePath),
		remote.Quote(target.ReleasePath),
	)
	return sh.Run(ctx, cmd)
}

// CopyStrategy копирует предыдущий релиз и обновляет его из репозитория.
// При первом деплое работает как CloneStrategy.
type CopyStrategy struct {
	clone *CloneStrategy
}

// NewCopyStrategy создаёт CopyStrategy.
func NewCopyStrategy(repository, branch string) *CopyStrategy {
	return &CopyStrategy{clone: NewCloneStrategy(repository, branch)}
}

func (s *CopyStrategy) Name() string  { return "copy" }
func (s *CopyStrategy) Roles() []Role { return []Role{RoleDeploy} }

// Deploy копирует предыдущий релиз и делает reset на ветку.
func (s *CopyStrategy) Deploy(ctx context.Context, sh Shell, target Target) (remote.Result, error) {
	if target.PreviousPath == "" || target.PreviousPath == target.ReleasePath {
		return s.clone.Deploy(ctx, sh, target)
	}
	cmd := fmt.Sprintf("cp -a %s %s && cd %s && git fetch origin %s && git reset --hard origin/%s",
		remote.Quote(target.PreviousPath),
		remote.Quote(target.ReleasePath),
		remote.Quote(target.ReleasePath),
		remote.Quote(s.clone.Branch),
		remote.Quote(s.clone.Branch),
	)
	return sh.Run(ctx, cmd)
}

// ArchiveStrategy скачивает tar.gz архив и распаковывает его в релиз.
type ArchiveStrategy struct {
	URL string
}

// NewArchiveStrategy создаёт ArchiveStrategy.
func NewArchiveStrategy(url string) *ArchiveStrategy {
	return &ArchiveStrategy{URL: url}
}

func (s *ArchiveStrategy) Name() string  { return "archive" }
func (s *ArchiveStrategy) Roles() []Role { return []Role{RoleDeploy} }

// Deploy распаковывает архив.
func (s *ArchiveStrategy) Deploy(ctx context.Context, sh Shell, target Target) (remote.Result, error) {
	if s.URL == "" {
		return remote.Result{Output: "archive url is not configured"}, nil
	}
	cmd := fmt.Sprintf("mkdir -p %s && curl -fsSL %s | tar -xz -C %s",
		remote.Quote(target.ReleasePath),
		remote.Quote(s.URL),
		remote.Quote(target.ReleasePath),
	)
	return sh.Run(ctx, cmd)
}

var (
	_ DeployStrategy = (*CloneStrategy)(nil)
	_ DeployStrategy = (*CopyStrategy)(nil)
	_ DeployStrategy = (*ArchiveStrategy)(nil)
)
