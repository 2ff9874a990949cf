package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const (
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 3 * time.Minute // mint requests wait for a receipt
	DefaultStopTimeout  = 30 * time.Second

	gracefulEnvKey     = "DAYOK_GRACEFUL"
	gracefulListenerFD = 3
)

// Server is an http.Server that stops on SIGTERM/SIGINT and hands its listener to a fresh
// process on SIGUSR2. Registered stop hooks run after the HTTP server drained.
type Server struct {
	*http.Server

	listener net.Listener
	signals  chan os.Signal
	done     chan struct{}

	mu    sync.Mutex
	hooks []func(context.Context)
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       DefaultReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      DefaultWriteTimeout,
		},
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
}

// OnStop registers fn to run during shutdown, in registration order.
func (srv *Server) OnStop(fn func(context.Context)) {
	srv.mu.Lock()
	srv.hooks = append(srv.hooks, fn)
	srv.mu.Unlock()
}

// Run serves until a termination signal arrives and shutdown completed.
func (srv *Server) Run() error {
	ln, err := srv.listen()
	if err != nil {
		return err
	}
	srv.listener = ln

	signal.Notify(srv.signals, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)
	go srv.handleSignals()

	err = srv.Serve(ln)
	<-srv.done
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (srv *Server) listen() (net.Listener, error) {
	if os.Getenv(gracefulEnvKey) != "" {
		ln, err := net.FileListener(os.NewFile(gracefulListenerFD, "listener"))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", srv.Addr, err)
	}
	return ln, nil
}

func (srv *Server) handleSignals() {
	for sig := range srv.signals {
		if sig == syscall.SIGUSR2 {
			pid, err := srv.fork()
			if err != nil {
				L().Sugar().Errorf("graceful restart failed, still serving: %v", err)
				continue
			}
			L().Sugar().Infof("graceful restart: new pid=%d, draining old server", pid)
		} else {
			L().Sugar().Infof("received %s, shutting down", sig)
		}
		srv.stop()
		return
	}
}

func (srv *Server) stop() {
	signal.Stop(srv.signals)
	ctx, cancel := context.WithTimeout(context.Background(), DefaultStopTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		L().Sugar().Errorf("HTTP server shutdown error: %v", err)
	}
	srv.mu.Lock()
	hooks := append([]func(context.Context){}, srv.hooks...)
	srv.mu.Unlock()
	for _, fn := range hooks {
		fn(ctx)
	}
	close(srv.done)
}

// fork starts a copy of this binary that inherits the listening socket.
func (srv *Server) fork() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, errors.New("listener is not *net.TCPListener")
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer file.Close()

	env := append(os.Environ(), gracefulEnvKey+"=1")
	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("forkexec: %w", err)
	}
	return pid, nil
}
