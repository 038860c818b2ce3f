package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/shaiso/Rollout/internal/config"
)

const dialTimeout = 15 * time.Second

// SSHConnector выполняет команды на хостах через SSH.
//
// Клиент создаётся при первом обращении к соединению и переиспользуется.
// Каждая команда выполняется в отдельной сессии.
type SSHConnector struct {
	cfg    *config.Config
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*ssh.Client

	dial func(network, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error)
}

// NewSSHConnector создаёт SSHConnector.
func NewSSHConnector(cfg *config.Config, logger *slog.Logger) *SSHConnector {
	if logger == nil {
		logger = slog.Default()
	}
	return &SSHConnector{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]*ssh.Client),
		dial:    ssh.Dial,
	}
}

// Run выполняет команду в новой SSH-сессии.
func (c *SSHConnector) Run(ctx context.Context, connection, command string) (Result, error) {
	client, err := c.client(connection)
	if err != nil {
		return Result{}, err
	}

	session, err := client.NewSession()
	if err != nil {
		c.drop(connection)
		return Result{}, fmt.Errorf("open session on %s: %w", connection, err)
	}
	defer session.Close()

	type outcome struct {
		out []byte
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := session.CombinedOutput(command)
		done <- outcome{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return Result{}, ctx.Err()
	case o := <-done:
		output := strings.TrimSpace(string(o.out))
		if o.err != nil {
			var exitErr *ssh.ExitError
			if errors.As(o.err, &exitErr) {
				return Result{Output: output, Success: false}, nil
			}
			return Result{Output: output}, fmt.Errorf("run on %s: %w", connection, o.err)
		}
		return Result{Output: output, Success: true}, nil
	}
}

// List читает каталог на хосте.
func (c *SSHConnector) List(ctx context.Context, connection, dir string) ([]string, error) {
	return listDir(ctx, c.Run, connection, dir)
}

// Close закрывает все открытые клиенты.
func (c *SSHConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for name, client := range c.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(c.clients, name)
	}
	return errors.Join(errs...)
}

func (c *SSHConnector) client(connection string) (*ssh.Client, error) {
	c.mu.Lock()
	client, ok := c.clients[connection]
	c.mu.Unlock()
	if ok {
		return client, nil
	}

	conn, err := c.cfg.Connection(connection)
	if err != nil {
		return nil, err
	}

	clientCfg, err := c.clientConfig(connection, conn)
	if err != nil {
		return nil, err
	}

	// Dial без блокировки: соединения с разными хостами не ждут друг друга
	addr := net.JoinHostPort(conn.Host, strconv.Itoa(conn.Port))
	client, err = c.dial("tcp", addr, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%s): %v", ErrDial, connection, addr, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.clients[connection]; ok {
		_ = client.Close()
		return existing, nil
	}

	c.logger.Debug("ssh connected", "connection", connection, "addr", addr)
	c.clients[connection] = client
	return client, nil
}

func (c *SSHConnector) drop(connection string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[connection]; ok {
		_ = client.Close()
		delete(c.clients, connection)
	}
}

func (c *SSHConnector) clientConfig(name string, conn config.Connection) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if conn.Key != "" {
		pem, err := os.ReadFile(conn.Key)
		if err != nil {
			return nil, fmt.Errorf("read key for %s: %w", name, err)
		}
		var signer ssh.Signer
		if conn.Password != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(conn.Password))
		} else {
			signer, err = ssh.ParsePrivateKey(pem)
		}
		if err != nil {
			return nil, fmt.Errorf("parse key for %s: %w", name, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	} else if conn.Password != "" {
		auth = append(auth, ssh.Password(conn.Password))
	}

	hostKey := ssh.InsecureIgnoreHostKey() //nolint:gosec // проверка включается через known_hosts
	if conn.KnownHosts != "" {
		cb, err := knownhosts.New(conn.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts for %s: %w", name, err)
		}
		hostKey = cb
	} else {
		c.logger.Warn("host key verification disabled", "connection", name)
	}

	user := conn.Username
	if user == "" {
		user = os.Getenv("USER")
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         dialTimeout,
	}, nil
}

var _ Connector = (*SSHConnector)(nil)
