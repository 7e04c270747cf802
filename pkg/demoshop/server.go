package demoshop

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/entrhq/authcache/pkg/accounts"
	"github.com/entrhq/authcache/pkg/logging"
)

// Options configures a Server.
type Options struct {
	Users      []accounts.Account
	SessionTTL time.Duration

	// LoginRate and LoginBurst throttle POST /api/login per client address.
	// A zero LoginRate disables throttling.
	LoginRate  float64
	LoginBurst int

	// BcryptCost is the cost used to hash the account passwords at startup
	BcryptCost int

	Now    func() time.Time
	Logger *logging.Logger
}

type user struct {
	account accounts.Account
	hash    []byte
}

// Server is the demo shop: a JSON API plus the static single-page front-end.
type Server struct {
	mux    *http.ServeMux
	routes []string
	opts   Options
	users  map[string]user
	logger *logging.Logger

	mu       sync.Mutex
	sessions map[string]Session
	carts    map[string][]Item
	limiters map[string]*rate.Limiter
	nextID   int64
}

// NewServer hashes the account passwords and registers all routes.
func NewServer(opts Options) (*Server, error) {
	if len(opts.Users) == 0 {
		opts.Users = accounts.DefaultPool()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = SessionTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard("demoshop")
	}

	s := &Server{
		mux:      http.NewServeMux(),
		opts:     opts,
		users:    make(map[string]user, len(opts.Users)),
		logger:   opts.Logger,
		sessions: make(map[string]Session),
		carts:    make(map[string][]Item),
		limiters: make(map[string]*rate.Limiter),
	}

	for _, acct := range opts.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(acct.Password), opts.BcryptCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password for %s: %w", acct.Username, err)
		}
		s.users[acct.Username] = user{account: acct, hash: hash}
	}

	if err := s.initRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Routes lists the registered patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) registerRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) registerRouteFunc(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("demo shop listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down demo shop: %w", err)
		}
		return nil
	}
}

// authenticate checks credentials against the bcrypt hashes.
func (s *Server) authenticate(username, password string) (accounts.Account, bool) {
	u, ok := s.users[username]
	if !ok {
		return accounts.Account{}, false
	}
	if bcrypt.CompareHashAndPassword(u.hash, []byte(password)) != nil {
		return accounts.Account{}, false
	}
	return u.account, true
}

func (s *Server) issue(acct accounts.Account) Session {
	sess := NewSession(acct, s.opts.Now(), s.opts.SessionTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = sess
	return sess
}

// sessionFor resolves a bearer token to a live session.
func (s *Server) sessionFor(r *http.Request) (Session, bool) {
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if token == "" {
		return Session{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, false
	}
	expires, err := time.Parse(time.RFC3339Nano, sess.ExpiresAt)
	if err != nil || !s.opts.Now().Before(expires) {
		delete(s.sessions, token)
		delete(s.carts, token)
		return Session{}, false
	}
	return sess, true
}

// allowLogin applies the per-client login throttle.
func (s *Server) allowLogin(r *http.Request) bool {
	if s.opts.LoginRate <= 0 {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	s.mu.Lock()
	limiter, ok := s.limiters[host]
	if !ok {
		burst := s.opts.LoginBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.opts.LoginRate), burst)
		s.limiters[host] = limiter
	}
	s.mu.Unlock()

	return limiter.Allow()
}
