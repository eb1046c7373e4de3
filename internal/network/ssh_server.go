package network

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	gossh "golang.org/x/crypto/ssh"

	"github.com/bnema/xkms/internal/ipc"
	"github.com/bnema/xkms/internal/logger"
	"github.com/bnema/xkms/internal/ui"
)

const shutdownTimeout = 5 * time.Second

// SSHServer serves the admin console. Every session runs one command.
type SSHServer struct {
	port         int
	hostKeyPath  string
	authKeysPath string
	ctrl         ipc.Controller
}

// NewSSHServer creates an admin console. Keys listed in authKeysPath may
// log in; the host key is generated at hostKeyPath when missing.
func NewSSHServer(port int, hostKeyPath, authKeysPath string, ctrl ipc.Controller) *SSHServer {
	return &SSHServer{
		port:         port,
		hostKeyPath:  hostKeyPath,
		authKeysPath: authKeysPath,
		ctrl:         ctrl,
	}
}

// Port returns the configured port
func (s *SSHServer) Port() int {
	return s.port
}

// Run listens on the configured port and serves until ctx is done
func (s *SSHServer) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen for SSH: %w", err)
	}
	return s.Serve(ctx, l)
}

// Serve serves sessions from l until ctx is done
func (s *SSHServer) Serve(ctx context.Context, l net.Listener) error {
	server, err := wish.NewServer(
		wish.WithHostKeyPath(s.hostKeyPath),
		wish.WithPublicKeyAuth(s.publicKeyAuth),
		wish.WithMiddleware(
			s.commandHandler(),
			s.loggingMiddleware(),
		),
	)
	if err != nil {
		_ = l.Close()
		return fmt.Errorf("failed to create SSH server: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(sctx)
	})
	defer stop()

	logger.Info("SSH console listening", "address", l.Addr().String())
	if err := server.Serve(l); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return fmt.Errorf("SSH server error: %w", err)
	}
	return nil
}

// publicKeyAuth accepts keys listed in the authorized keys file. The file
// is read on every attempt so edits apply without a restart.
func (s *SSHServer) publicKeyAuth(ctx ssh.Context, key ssh.PublicKey) bool {
	fingerprint := gossh.FingerprintSHA256(key)
	addr := ctx.RemoteAddr().String()

	authorized, err := readAuthorizedKeys(s.authKeysPath)
	if err != nil {
		logger.Warn("Cannot read authorized keys, denying", "path", s.authKeysPath, "error", err)
		return false
	}
	if _, ok := authorized[fingerprint]; ok {
		logger.Info("SSH key accepted", "user", ctx.User(), "addr", addr, "key", fingerprint)
		return true
	}

	logger.Warn("SSH key denied", "user", ctx.User(), "addr", addr, "key", fingerprint)
	return false
}

// readAuthorizedKeys returns the fingerprints of every key in an
// authorized_keys file. Blank lines and comments are skipped.
func readAuthorizedKeys(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	keys := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, _, _, _, err := gossh.ParseAuthorizedKey([]byte(text))
		if err != nil {
			logger.Warn("Skipping malformed authorized key", "path", path, "line", line, "error", err)
			continue
		}
		keys[gossh.FingerprintSHA256(key)] = struct{}{}
	}
	return keys, scanner.Err()
}

// loggingMiddleware provides custom logging using our internal logger
func (s *SSHServer) loggingMiddleware() wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			start := time.Now()
			logger.Debug("SSH session started", "user", sess.User(), "addr", sess.RemoteAddr().String(), "command", sess.Command())
			h(sess)
			logger.Debug("SSH session ended", "addr", sess.RemoteAddr().String(), "duration", time.Since(start))
		}
	}
}

// commandHandler runs the session's command line and exits
func (s *SSHServer) commandHandler() wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			_, _, isPty := sess.Pty()
			p := ui.NewPrinterWithColor(sess, isPty)

			if err := RunCommand(sess.Context(), s.ctrl, p, sess.Command()); err != nil {
				wish.Fatalln(sess, p.Error(err.Error()))
				return
			}
			h(sess)
		}
	}
}
