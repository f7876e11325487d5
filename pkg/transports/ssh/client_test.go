package ssh

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// testSSHServer provides a minimal engine host for testing.
type testSSHServer struct {
	listener net.Listener
	config   *ssh.ServerConfig
	addr     string
	done     chan struct{}
}

// newTestSSHServer starts a server accepting analyst/secret and any key.
func newTestSSHServer(t *testing.T) *testSSHServer {
	t.Helper()

	_, hostKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(hostKey)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == "analyst" && string(pass) == "secret" {
				return nil, nil
			}
			return nil, fmt.Errorf("invalid credentials")
		},
		PublicKeyCallback: func(c ssh.ConnMetadata, pubKey ssh.PublicKey) (*ssh.Permissions, error) {
			return nil, nil
		},
	}
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	server := &testSSHServer{
		listener: listener,
		config:   config,
		addr:     listener.Addr().String(),
		done:     make(chan struct{}),
	}
	go server.serve()
	t.Cleanup(server.close)

	return server
}

func (s *testSSHServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}
		go s.handleConnection(conn)
	}
}

func (s *testSSHServer) handleConnection(netConn net.Conn) {
	defer netConn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		return
	}
	defer sshConn.Close()

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go s.handleChannel(channel, requests)
	}
}

func exitStatus(channel ssh.Channel, code byte) {
	_, _ = channel.SendRequest("exit-status", false, []byte{0, 0, 0, code})
}

func (s *testSSHServer) handleChannel(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()

	for req := range requests {
		switch req.Type {
		case "exec":
			command := string(req.Payload[4:])
			if req.WantReply {
				_ = req.Reply(true, nil)
			}

			switch command {
			case "true":
				exitStatus(channel, 0)
			case "echo test":
				_, _ = channel.Write([]byte("test\n"))
				exitStatus(channel, 0)
			case "echo error >&2":
				_, _ = channel.Stderr().Write([]byte("error\n"))
				exitStatus(channel, 0)
			case "exit 1":
				exitStatus(channel, 1)
			case "cat":
				_, _ = io.Copy(channel, channel)
				exitStatus(channel, 0)
			default:
				_, _ = channel.Stderr().Write([]byte("command not found: " + command + "\n"))
				exitStatus(channel, 127)
			}
			return

		case "subsystem":
			if string(req.Payload[4:]) != "sftp" {
				_ = req.Reply(false, nil)
				continue
			}
			if req.WantReply {
				_ = req.Reply(true, nil)
			}
			server, err := sftp.NewServer(channel)
			if err != nil {
				return
			}
			_ = server.Serve()
			_ = server.Close()
			return

		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}

func (s *testSSHServer) close() {
	close(s.done)
	_ = s.listener.Close()
}

// connectedClient returns a password-authenticated client for the server.
func connectedClient(t *testing.T, server *testSSHServer) *Client {
	t.Helper()

	host, portStr, _ := net.SplitHostPort(server.addr)
	port := 0
	_, _ = fmt.Sscanf(portStr, "%d", &port)

	config := DefaultConfig(host, "analyst")
	config.Port = port
	config.AuthMethod = AuthMethodPassword
	config.Password = "secret"
	config.StrictHostKeyChecking = false
	config.ConnectionTimeout = 5 * time.Second

	client, err := NewClient(config, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect() })
	return client
}

// TestClientConnect tests connecting, reconnecting and disconnecting
func TestClientConnect(t *testing.T) {
	server := newTestSSHServer(t)
	client := connectedClient(t, server)

	if !client.IsConnected() {
		t.Fatal("expected client to be connected")
	}
	if err := client.Connect(context.Background()); err != nil {
		t.Errorf("second Connect should be a no-op, got %v", err)
	}
	if err := client.Disconnect(); err != nil {
		t.Errorf("Disconnect: %v", err)
	}
	if client.IsConnected() {
		t.Error("expected client to be disconnected")
	}
	if err := client.Disconnect(); err != nil {
		t.Errorf("second Disconnect: %v", err)
	}

	_, _, err := client.Run(context.Background(), "true")
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Op != "exec" {
		t.Errorf("expected exec transport error when disconnected, got %v", err)
	}
}

// TestClientWrongPassword tests that authentication failures surface
func TestClientWrongPassword(t *testing.T) {
	server := newTestSSHServer(t)
	host, portStr, _ := net.SplitHostPort(server.addr)
	port := 0
	_, _ = fmt.Sscanf(portStr, "%d", &port)

	config := DefaultConfig(host, "analyst")
	config.Port = port
	config.AuthMethod = AuthMethodPassword
	config.Password = "wrong"
	config.StrictHostKeyChecking = false

	client, err := NewClient(config, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected connect to fail")
	}
}

// TestClientKeyAuth tests key-based authentication
func TestClientKeyAuth(t *testing.T) {
	server := newTestSSHServer(t)
	host, portStr, _ := net.SplitHostPort(server.addr)
	port := 0
	_, _ = fmt.Sscanf(portStr, "%d", &port)

	config := DefaultConfig(host, "analyst")
	config.Port = port
	config.PrivateKeyPath = writeTestKey(t)
	config.StrictHostKeyChecking = false

	client, err := NewClient(config, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Disconnect()
}

// TestClientRun tests one-shot command execution
func TestClientRun(t *testing.T) {
	server := newTestSSHServer(t)
	client := connectedClient(t, server)
	ctx := context.Background()

	tests := []struct {
		cmd     string
		stdout  string
		stderr  string
		wantErr bool
	}{
		{cmd: "true"},
		{cmd: "echo test", stdout: "test\n"},
		{cmd: "echo error >&2", stderr: "error\n"},
		{cmd: "exit 1", wantErr: true},
		{cmd: "o3-engine --version", stderr: "command not found: o3-engine --version\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			stdout, stderr, err := client.Run(ctx, tt.cmd)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run(%q) error = %v, wantErr %v", tt.cmd, err, tt.wantErr)
			}
			if stdout != tt.stdout || stderr != tt.stderr {
				t.Errorf("Run(%q) = (%q, %q), want (%q, %q)", tt.cmd, stdout, stderr, tt.stdout, tt.stderr)
			}
			if tt.wantErr {
				var exitErr *ssh.ExitError
				if !errors.As(err, &exitErr) {
					t.Errorf("expected wrapped exit error, got %T", err)
				}
			}
		})
	}
}

// TestClientStart tests a long-lived process with piped stdio
func TestClientStart(t *testing.T) {
	server := newTestSSHServer(t)
	client := connectedClient(t, server)

	proc, err := client.Start(context.Background(), "cat")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer proc.Close()

	reader := bufio.NewReader(proc.Stdout)
	for _, line := range []string{`{"type":"CMD"}`, `{"type":"EXIT"}`} {
		if _, err := io.WriteString(proc.Stdin, line+"\n"); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if strings.TrimSpace(got) != line {
			t.Errorf("echo = %q, want %q", got, line)
		}
	}

	if err := proc.Stdin.Close(); err != nil {
		t.Fatalf("close stdin: %v", err)
	}
	if err := proc.Wait(); err != nil {
		t.Errorf("Wait: %v", err)
	}
}

// TestClientFileTransfer tests upload, download and removal over SFTP
func TestClientFileTransfer(t *testing.T) {
	server := newTestSSHServer(t)
	client := connectedClient(t, server)
	ctx := context.Background()

	dir := t.TempDir()
	local := filepath.Join(dir, "o3-engine")
	if err := os.WriteFile(local, []byte("#!/bin/sh\nexit 0\n"), 0600); err != nil {
		t.Fatal(err)
	}

	remote := filepath.Join(dir, "remote", "bin", "o3-engine")
	if err := client.Upload(ctx, local, remote, 0755); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	info, err := os.Stat(remote)
	if err != nil {
		t.Fatalf("stat uploaded file: %v", err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("mode = %v, want 0755", info.Mode().Perm())
	}

	back := filepath.Join(dir, "back")
	if err := client.Download(ctx, remote, back); err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(back)
	if err != nil || string(data) != "#!/bin/sh\nexit 0\n" {
		t.Errorf("downloaded %q, %v", data, err)
	}

	if err := client.Remove(ctx, remote); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := client.Remove(ctx, remote); err != nil {
		t.Errorf("removing a missing file should succeed, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := client.Upload(cancelled, local, remote, 0755); !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancelled upload, got %v", err)
	}
}
