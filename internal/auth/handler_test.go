package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/frahmantamala/rbac-admin/internal"
	"github.com/frahmantamala/rbac-admin/internal/transport"
	"github.com/go-chi/chi"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

// grantTable answers permission checks from a fixed map.
type grantTable struct {
	grants map[int64][]string
	err    error
}

func (g *grantTable) UserHasPermission(_ context.Context, userID int64, permission string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	for _, p := range g.grants[userID] {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

var _ = ginkgo.Describe("Auth Handler", func() {
	var (
		router  *chi.Mux
		grants  *grantTable
		enforce bool
	)

	build := func() {
		mr, err := miniredis.Run()
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		ginkgo.DeferCleanup(mr.Close)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

		slogger := slog.New(slog.NewTextHandler(ginkgo.GinkgoWriter, &slog.HandlerOptions{Level: slog.LevelError}))
		tokens := NewJWTTokenGenerator("handler-access-secret-handler-access", "handler-refresh-secret-handler-refresh", 15*time.Minute, time.Hour)
		svc := NewService(newMockUserService(), tokens, NewRedisRevocationStore(client, ""), slogger)
		h := NewHandler(transport.NewBaseHandler(slogger), svc)
		authz := NewRBACAuthorization(grants, slogger, enforce)

		ok := func(w http.ResponseWriter, r *http.Request) {
			p, _ := internal.PrincipalFromContext(r.Context())
			h.WriteSuccess(w, http.StatusOK, "ok", map[string]int64{"principal": p.ID})
		}

		router = chi.NewRouter()
		router.Post("/login", h.Login)
		router.Post("/register", h.Register)
		router.Post("/refresh", h.RefreshToken)
		router.Group(func(pr chi.Router) {
			pr.Use(h.AuthMiddleware)
			pr.Post("/logout", h.Logout)
			pr.With(authz.Middleware("read-roles")).Get("/roles", ok)
			pr.With(authz.RequirePermissionOrSelf("update-users", "user")).Put("/users/{user}", ok)
		})
	}

	do := func(method, path, body, token string) (int, envelope) {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, path, nil)
		} else {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var env envelope
		gomega.Expect(json.Unmarshal(w.Body.Bytes(), &env)).To(gomega.Succeed())
		return w.Code, env
	}

	loginAs := func(email string) AuthTokens {
		code, env := do(http.MethodPost, "/login", `{"email":"`+email+`","password":"correct_password"}`, "")
		gomega.Expect(code).To(gomega.Equal(http.StatusOK))
		var tokens AuthTokens
		gomega.Expect(json.Unmarshal(env.Data, &tokens)).To(gomega.Succeed())
		return tokens
	}

	ginkgo.BeforeEach(func() {
		grants = &grantTable{grants: map[int64][]string{2: {"read-roles", "update-users"}}}
		enforce = true
	})

	ginkgo.JustBeforeEach(build)

	ginkgo.It("logs in and returns the token envelope", func() {
		tokens := loginAs("user@example.com")
		gomega.Expect(tokens.AccessToken).ToNot(gomega.BeEmpty())
		gomega.Expect(tokens.TokenType).To(gomega.Equal("Bearer"))
		gomega.Expect(tokens.User.Email).To(gomega.Equal("user@example.com"))
	})

	ginkgo.It("rejects bad credentials with 401", func() {
		code, env := do(http.MethodPost, "/login", `{"email":"user@example.com","password":"nope"}`, "")
		gomega.Expect(code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(env.Status).To(gomega.Equal("error"))
		gomega.Expect(env.Message).To(gomega.Equal("Invalid email or password"))
	})

	ginkgo.It("rejects a malformed body with 400", func() {
		code, env := do(http.MethodPost, "/login", `{"email":`, "")
		gomega.Expect(code).To(gomega.Equal(http.StatusBadRequest))
		gomega.Expect(env.Message).To(gomega.Equal("Invalid request body"))
	})

	ginkgo.It("registers a user with 201", func() {
		code, env := do(http.MethodPost, "/register",
			`{"name":"New","email":"new@example.com","password":"password123","password_confirmation":"password123"}`, "")
		gomega.Expect(code).To(gomega.Equal(http.StatusCreated))
		gomega.Expect(env.Message).To(gomega.Equal("User registered successfully"))
	})

	ginkgo.It("refreshes tokens", func() {
		tokens := loginAs("user@example.com")
		code, env := do(http.MethodPost, "/refresh", `{"refresh_token":"`+tokens.RefreshToken+`"}`, "")
		gomega.Expect(code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(env.Message).To(gomega.Equal("Token refreshed successfully"))
	})

	ginkgo.Describe("AuthMiddleware", func() {
		ginkgo.It("requires a bearer token", func() {
			code, env := do(http.MethodGet, "/roles", "", "")
			gomega.Expect(code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(env.Message).To(gomega.Equal("Missing authorization token"))
		})

		ginkgo.It("rejects a refresh token used as bearer", func() {
			tokens := loginAs("admin@example.com")
			code, _ := do(http.MethodGet, "/roles", "", tokens.RefreshToken)
			gomega.Expect(code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("rejects the token after logout", func() {
			tokens := loginAs("admin@example.com")

			code, env := do(http.MethodPost, "/logout", "", tokens.AccessToken)
			gomega.Expect(code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(env.Message).To(gomega.Equal("Logged out successfully"))

			code, env = do(http.MethodGet, "/roles", "", tokens.AccessToken)
			gomega.Expect(code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(env.Message).To(gomega.Equal("Token has been revoked"))
		})
	})

	ginkgo.Describe("RBACAuthorization", func() {
		ginkgo.It("allows a caller holding the permission", func() {
			tokens := loginAs("admin@example.com")
			code, _ := do(http.MethodGet, "/roles", "", tokens.AccessToken)
			gomega.Expect(code).To(gomega.Equal(http.StatusOK))
		})

		ginkgo.It("forbids a caller without it", func() {
			tokens := loginAs("user@example.com")
			code, env := do(http.MethodGet, "/roles", "", tokens.AccessToken)
			gomega.Expect(code).To(gomega.Equal(http.StatusForbidden))
			gomega.Expect(env.Message).To(gomega.Equal("Forbidden: insufficient permissions"))
		})

		ginkgo.It("lets users update themselves", func() {
			tokens := loginAs("user@example.com")
			code, _ := do(http.MethodPut, "/users/1", "", tokens.AccessToken)
			gomega.Expect(code).To(gomega.Equal(http.StatusOK))

			code, _ = do(http.MethodPut, "/users/2", "", tokens.AccessToken)
			gomega.Expect(code).To(gomega.Equal(http.StatusForbidden))
		})

		ginkgo.It("maps authorizer failures to 500", func() {
			grants.err = internal.NewStoreError("Failed to check permissions", errors.New("db down"))
			tokens := loginAs("admin@example.com")
			code, _ := do(http.MethodGet, "/roles", "", tokens.AccessToken)
			gomega.Expect(code).To(gomega.Equal(http.StatusInternalServerError))
		})

		ginkgo.Context("when enforcement is disabled", func() {
			ginkgo.BeforeEach(func() {
				enforce = false
			})

			ginkgo.It("only requires authentication", func() {
				tokens := loginAs("user@example.com")
				code, _ := do(http.MethodGet, "/roles", "", tokens.AccessToken)
				gomega.Expect(code).To(gomega.Equal(http.StatusOK))
			})
		})
	})
})
