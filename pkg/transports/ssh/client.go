// Package ssh reaches a remote engine host over SSH. It runs one-shot
// commands, starts long-lived engine processes with piped stdio and copies
// engine binaries and transcripts over SFTP.
package ssh

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// Client holds one SSH connection to an engine host.
type Client struct {
	config *Config
	logger zerolog.Logger

	mu          sync.RWMutex
	client      *ssh.Client
	proxy       *ssh.Client
	connectedAt time.Time
	stopKeep    chan struct{}
}

// NewClient creates a client for the given host. It does not connect.
func NewClient(config *Config, logger zerolog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Client{config: config, logger: logger.With().Str("host", config.Host).Logger()}, nil
}

// Connect establishes the SSH connection, through the jump host when one is
// configured. Connecting an already connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return nil
	}

	clientConfig, err := c.config.BuildSSHClientConfig()
	if err != nil {
		return &TransportError{Op: "connect", Err: err, IsAuthError: true}
	}

	if c.config.ProxyHost != "" {
		err = c.connectViaProxy(ctx, clientConfig)
	} else {
		err = c.connectDirect(ctx, clientConfig)
	}
	if err != nil {
		return err
	}

	c.connectedAt = time.Now()
	if c.config.KeepAliveInterval > 0 {
		c.stopKeep = make(chan struct{})
		go c.keepAlive(c.client, c.stopKeep)
	}
	return nil
}

// connectDirect dials the target host.
func (c *Client) connectDirect(ctx context.Context, clientConfig *ssh.ClientConfig) error {
	address := c.config.Address()
	c.logger.Debug().Str("address", address).Msg("establishing SSH connection")

	type result struct {
		client *ssh.Client
		err    error
	}
	done := make(chan result, 1)
	go func() {
		client, err := ssh.Dial("tcp", address, clientConfig)
		done <- result{client, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.client != nil {
				_ = r.client.Close()
			}
		}()
		return &TransportError{Op: "connect", Err: ctx.Err(), IsTemporary: true}
	case r := <-done:
		if r.err != nil {
			return &TransportError{Op: "connect", Err: r.err, IsTemporary: true}
		}
		c.client = r.client
		c.logger.Info().Str("address", address).Msg("SSH connection established")
		return nil
	}
}

// connectViaProxy connects to the target through the jump host. The jump
// host uses the same credentials as the target.
func (c *Client) connectViaProxy(ctx context.Context, targetConfig *ssh.ClientConfig) error {
	proxyConfig := *targetConfig
	proxyConfig.User = c.config.ProxyUser

	proxyAddress := c.config.ProxyAddress()
	c.logger.Debug().Str("proxy", proxyAddress).Msg("connecting to proxy host")

	proxyClient, err := ssh.Dial("tcp", proxyAddress, &proxyConfig)
	if err != nil {
		return &TransportError{Op: "connect-proxy", Err: err, IsTemporary: true}
	}

	targetAddress := c.config.Address()
	proxyConn, err := proxyClient.DialContext(ctx, "tcp", targetAddress)
	if err != nil {
		_ = proxyClient.Close()
		return &TransportError{Op: "connect-via-proxy", Err: err, IsTemporary: true}
	}

	ncc, chans, reqs, err := ssh.NewClientConn(proxyConn, targetAddress, targetConfig)
	if err != nil {
		_ = proxyConn.Close()
		_ = proxyClient.Close()
		return &TransportError{Op: "connect-via-proxy", Err: err, IsTemporary: true, IsAuthError: true}
	}

	c.client = ssh.NewClient(ncc, chans, reqs)
	c.proxy = proxyClient
	c.logger.Info().Str("target", targetAddress).Str("proxy", proxyAddress).Msg("SSH connection established via proxy")
	return nil
}

// Disconnect closes the connection. It is safe to call more than once.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	if c.stopKeep != nil {
		close(c.stopKeep)
		c.stopKeep = nil
	}

	c.logger.Debug().Dur("uptime", time.Since(c.connectedAt)).Msg("closing SSH connection")
	err := c.client.Close()
	c.client = nil
	if c.proxy != nil {
		_ = c.proxy.Close()
		c.proxy = nil
	}
	if err != nil {
		return &TransportError{Op: "disconnect", Err: err}
	}
	return nil
}

// IsConnected returns true if the client has an active connection.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client != nil
}

func (c *Client) conn(op string) (*ssh.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("not connected")}
	}
	return c.client, nil
}

// Run executes a command to completion and returns its output. A non-zero
// exit status is reported as an *ssh.ExitError wrapped in a TransportError.
func (c *Client) Run(ctx context.Context, cmd string) (string, string, error) {
	client, err := c.conn("exec")
	if err != nil {
		return "", "", err
	}

	session, err := client.NewSession()
	if err != nil {
		return "", "", &TransportError{Op: "exec", Err: err, IsTemporary: true}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return stdout.String(), stderr.String(), &TransportError{Op: "exec", Err: ctx.Err(), IsTemporary: true}
	case err := <-done:
		if err != nil {
			return stdout.String(), stderr.String(), &TransportError{Op: "exec", Err: err}
		}
		return stdout.String(), stderr.String(), nil
	}
}

// RemoteProcess is a command started on the engine host with piped stdio.
type RemoteProcess struct {
	Stdin  io.WriteCloser
	Stdout io.Reader
	Stderr io.Reader

	session *ssh.Session
	once    sync.Once
}

// Start launches a long-running command, typically an engine host, and
// returns its pipes. The caller owns the process and must Close it.
func (c *Client) Start(ctx context.Context, cmd string) (*RemoteProcess, error) {
	client, err := c.conn("start")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: "start", Err: err}
	}

	session, err := client.NewSession()
	if err != nil {
		return nil, &TransportError{Op: "start", Err: err, IsTemporary: true}
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		_ = session.Close()
		return nil, &TransportError{Op: "start", Err: err}
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		_ = session.Close()
		return nil, &TransportError{Op: "start", Err: err}
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		_ = session.Close()
		return nil, &TransportError{Op: "start", Err: err}
	}

	if err := session.Start(cmd); err != nil {
		_ = session.Close()
		return nil, &TransportError{Op: "start", Err: err}
	}

	c.logger.Debug().Str("command", cmd).Msg("remote process started")
	return &RemoteProcess{Stdin: stdin, Stdout: stdout, Stderr: stderr, session: session}, nil
}

// Wait blocks until the remote command exits.
func (p *RemoteProcess) Wait() error {
	if err := p.session.Wait(); err != nil {
		return &TransportError{Op: "wait", Err: err}
	}
	return nil
}

// Close closes stdin and the session.
func (p *RemoteProcess) Close() error {
	var err error
	p.once.Do(func() {
		_ = p.Stdin.Close()
		err = p.session.Close()
		if err == io.EOF {
			err = nil
		}
	})
	return err
}

// keepAlive sends periodic keep-alive requests until stop is closed.
func (c *Client) keepAlive(client *ssh.Client, stop <-chan struct{}) {
	ticker := time.NewTicker(c.config.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				c.logger.Warn().Err(err).Msg("keep-alive failed")
				return
			}
		}
	}
}
