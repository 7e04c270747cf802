package demoshop

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/entrhq/authcache/pkg/accounts"
)

type ctxKey struct{}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the body of a successful POST /api/login.
type LoginResponse struct {
	Session Session `json:"session"`
}

// CartResponse is returned by the cart endpoints.
type CartResponse struct {
	Success bool   `json:"success,omitempty"`
	Cart    []Item `json:"cart"`
}

// OrdersResponse is returned by GET /api/orders.
type OrdersResponse struct {
	Orders []Order `json:"orders"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.allowLogin(r) {
			writeError(w, http.StatusTooManyRequests, "Too many login attempts")
			return
		}

		var req LoginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		acct, ok := s.authenticate(req.Username, req.Password)
		if !ok {
			s.logger.Infof("rejected login for %q", req.Username)
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		sess := s.issue(acct)
		s.logger.Infof("issued session for %s", acct.Username)
		writeJSON(w, http.StatusOK, LoginResponse{Session: sess})
	}
}

// requireSession rejects requests without a live bearer token.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessionFor(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	}
}

func sessionFrom(r *http.Request) Session {
	sess, _ := r.Context().Value(ctxKey{}).(Session)
	return sess
}

func (s *Server) cart(token string) []Item {
	items := make([]Item, len(s.carts[token]))
	copy(items, s.carts[token])
	return items
}

func (s *Server) getCartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		s.mu.Lock()
		items := s.cart(sess.Token)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, CartResponse{Cart: items})
	}
}

func (s *Server) addToCartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)

		var item Item
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&item); err != nil || item.Name == "" {
			writeError(w, http.StatusBadRequest, "Missing item")
			return
		}
		if item.Price < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid price %.2f", item.Price))
			return
		}

		s.mu.Lock()
		s.nextID++
		item.ID = s.opts.Now().UnixMilli()*1000 + s.nextID%1000
		s.carts[sess.Token] = append(s.carts[sess.Token], item)
		items := s.cart(sess.Token)
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, CartResponse{Success: true, Cart: items})
	}
}

func (s *Server) clearCartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		s.mu.Lock()
		delete(s.carts, sess.Token)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, CartResponse{Success: true, Cart: []Item{}})
	}
}

func (s *Server) ordersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		writeJSON(w, http.StatusOK, OrdersResponse{Orders: OrdersFor(accounts.Role(sess.Role))})
	}
}

// appDataHandler publishes the catalog, order history and the demo admin
// credentials to the front-end so both sides render from the same data.
func (s *Server) appDataHandler() (http.HandlerFunc, error) {
	data := struct {
		Catalog []Item                    `json:"catalog"`
		Orders  map[accounts.Role][]Order `json:"orders"`
		Admin   *LoginRequest             `json:"admin,omitempty"`
	}{
		Catalog: Catalog,
		Orders:  ordersByRole,
	}
	for _, u := range s.users {
		if u.account.Role == accounts.RoleAdmin {
			data.Admin = &LoginRequest{Username: u.account.Username, Password: u.account.Password}
			break
		}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode app data: %w", err)
	}
	script := []byte("window.DEMO_DATA = " + string(payload) + ";\n")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		_, _ = w.Write(script)
	}, nil
}
