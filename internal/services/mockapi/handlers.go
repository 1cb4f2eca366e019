package mockapi

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/louisbranch/groupbuy-console/internal/services/console/account"
	"go.uber.org/zap"
)

// validationIssue mirrors one entry of a FastAPI validation error list.
type validationIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type message struct {
	Message string `json:"message"`
}

type merchantPage struct {
	Items []Merchant `json:"items"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Size  int        `json:"size"`
}

type claimsKey struct{}

func claimsFrom(ctx context.Context) accessClaims {
	claims, _ := ctx.Value(claimsKey{}).(accessClaims)
	return claims
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

func missingField(field string) validationIssue {
	return validationIssue{Loc: []string{"body", field}, Msg: "field required", Type: "value_error.missing"}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleContract(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(contractYAML)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds account.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeDetail(w, http.StatusBadRequest, "Request body must be a JSON object")
		return
	}
	var issues []validationIssue
	if strings.TrimSpace(creds.Username) == "" {
		issues = append(issues, missingField("username"))
	}
	if creds.Password == "" {
		issues = append(issues, missingField("password"))
	}
	if len(issues) > 0 {
		writeDetail(w, http.StatusUnprocessableEntity, issues)
		return
	}

	profile, ok := s.accounts.authenticate(creds.Username, creds.Password)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "Incorrect username or password")
		return
	}
	if profile.Status != "active" {
		writeDetail(w, http.StatusForbidden, "Account is disabled")
		return
	}

	token, err := s.tokens.issue(profile.Username, profile.Role)
	if err != nil {
		s.logger.Error("issue token", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, account.LoginResponse{
		Token: account.AccessToken{
			AccessToken: token,
			TokenType:   "bearer",
			ExpiresIn:   int64(s.tokens.ttl.Seconds()),
		},
		Admin: profile,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.tokens.revoke(claimsFrom(r.Context()))
	writeJSON(w, http.StatusOK, message{Message: "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.accounts.lookup(claimsFrom(r.Context()).Subject)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Account not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handlePassword(w http.ResponseWriter, r *http.Request) {
	var change account.PasswordChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		writeDetail(w, http.StatusBadRequest, "Request body must be a JSON object")
		return
	}
	var issues []validationIssue
	if change.OldPassword == "" {
		issues = append(issues, missingField("old_password"))
	}
	if change.NewPassword == "" {
		issues = append(issues, missingField("new_password"))
	}
	if change.ConfirmPassword == "" {
		issues = append(issues, missingField("confirm_password"))
	}
	if len(issues) > 0 {
		writeDetail(w, http.StatusUnprocessableEntity, issues)
		return
	}
	if change.NewPassword != change.ConfirmPassword {
		writeDetail(w, http.StatusBadRequest, map[string]string{"confirm_password": "does not match new_password"})
		return
	}
	if len(change.NewPassword) < 8 {
		writeDetail(w, http.StatusBadRequest, map[string]string{"new_password": "must be at least 8 characters"})
		return
	}

	claims := claimsFrom(r.Context())
	if _, ok := s.accounts.authenticate(claims.Subject, change.OldPassword); !ok {
		writeDetail(w, http.StatusBadRequest, "Old password is incorrect")
		return
	}
	if err := s.accounts.setPassword(claims.Subject, change.NewPassword); err != nil {
		s.logger.Error("set password", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Could not update password")
		return
	}
	s.tokens.revoke(claims)
	writeJSON(w, http.StatusOK, message{Message: "Password updated"})
}

func (s *Server) handleMerchants(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var issues []validationIssue
	page := intParam(query.Get("page"), 1, "page", &issues)
	size := intParam(query.Get("size"), 20, "size", &issues)
	if len(issues) > 0 {
		writeDetail(w, http.StatusUnprocessableEntity, issues)
		return
	}

	all := s.catalog.listMerchants(query.Get("status"))
	start := (page - 1) * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	writeJSON(w, http.StatusOK, merchantPage{Items: all[start:end], Total: len(all), Page: page, Size: size})
}

func intParam(raw string, fallback int, name string, issues *[]validationIssue) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		*issues = append(*issues, validationIssue{
			Loc:  []string{"query", name},
			Msg:  "ensure this value is a positive integer",
			Type: "value_error.number",
		})
		return fallback
	}
	return value
}

func (s *Server) handleMerchant(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []validationIssue{{
			Loc: []string{"path", "id"}, Msg: "value is not a valid integer", Type: "type_error.integer",
		}})
		return
	}
	merchant, ok := s.catalog.merchant(id)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Merchant not found")
		return
	}
	writeJSON(w, http.StatusOK, merchant)
}

func (s *Server) handleOrderExport(w http.ResponseWriter, _ *http.Request) {
	filename := fmt.Sprintf("orders-%s.csv", s.now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)

	out := csv.NewWriter(w)
	_ = out.Write([]string{"id", "order_no", "merchant", "customer", "amount", "status", "placed_at"})
	for _, o := range s.catalog.allOrders() {
		_ = out.Write([]string{strconv.FormatInt(o.ID, 10), o.OrderNo, o.Merchant, o.Customer, o.Amount, o.Status, o.PlacedAt})
	}
	out.Flush()
	if err := out.Error(); err != nil {
		s.logger.Warn("write order export", zap.Error(err))
	}
}

func (s *Server) handleOverview(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.overview())
}

// authenticate rejects requests without a valid, unrevoked bearer token.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		claims, err := s.tokens.verify(raw)
		if err != nil {
			s.logger.Debug("token rejected", zap.Error(err))
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// allow restricts next to the given roles.
func allow(roles ...string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := claimsFrom(r.Context()).Role
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeDetail(w, http.StatusForbidden, "Insufficient permissions")
		})
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}
