package user_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/rbac-admin/internal/core/testdb"
	"github.com/frahmantamala/rbac-admin/internal/transport"
	"github.com/frahmantamala/rbac-admin/internal/user"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type envelope struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Errors  json.RawMessage        `json:"errors"`
}

var _ = Describe("User Handler", func() {
	var (
		router http.Handler
		svc    *user.Service
	)

	do := func(method, path, body string) (*httptest.ResponseRecorder, envelope) {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, path, nil)
		} else {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var env envelope
		Expect(json.Unmarshal(w.Body.Bytes(), &env)).To(Succeed())
		return w, env
	}

	BeforeEach(func() {
		db, err := testdb.Open()
		Expect(err).NotTo(HaveOccurred())
		svc = newTestService(db)

		slogger := slog.New(slog.NewTextHandler(GinkgoWriter, &slog.HandlerOptions{Level: slog.LevelError}))
		h := user.NewHandler(transport.NewBaseHandler(slogger), svc)

		r := chi.NewRouter()
		r.Get("/users", h.ListUsers)
		r.Post("/users", h.CreateUser)
		r.Get("/users/{user}", h.GetUser)
		r.Put("/users/{user}", h.UpdateUser)
		r.Delete("/users/{user}", h.DeleteUser)
		router = r
	})

	It("creates a user and returns 201 with the resource", func() {
		w, env := do(http.MethodPost, "/users",
			`{"name":"Alice","email":"alice@example.com","password":"password123","password_confirmation":"password123"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(env.Status).To(Equal("success"))
		Expect(env.Message).To(Equal("User created successfully"))

		var res user.Resource
		Expect(json.Unmarshal(env.Data, &res)).To(Succeed())
		Expect(res.Email).To(Equal("alice@example.com"))
		Expect(res.Roles).To(Equal([]string{}))
		Expect(res.CreatedAt).To(MatchRegexp(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`))
		Expect(string(env.Data)).NotTo(ContainSubstring("password"))
	})

	It("returns 422 with field errors on invalid input", func() {
		w, env := do(http.MethodPost, "/users", `{"email":"nope"}`)
		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
		Expect(env.Status).To(Equal("error"))

		var errs map[string][]string
		Expect(json.Unmarshal(env.Errors, &errs)).To(Succeed())
		Expect(errs).To(HaveKey("name"))
		Expect(errs).To(HaveKey("email"))
	})

	It("returns 400 on a malformed body", func() {
		w, env := do(http.MethodPost, "/users", `{"name":`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(env.Message).To(Equal("Invalid request body"))
	})

	It("lists users with pagination meta", func() {
		createUser(svc, "Alice", "alice@example.com")
		createUser(svc, "Bob", "bob@example.com")

		w, env := do(http.MethodGet, "/users?per_page=1&page=2", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(env.Message).To(Equal("Users retrieved successfully"))
		Expect(env.Meta).To(HaveKeyWithValue("current_page", BeNumerically("==", 2)))
		Expect(env.Meta).To(HaveKeyWithValue("per_page", BeNumerically("==", 1)))
		Expect(env.Meta).To(HaveKeyWithValue("total", BeNumerically("==", 2)))
		Expect(env.Meta).To(HaveKeyWithValue("last_page", BeNumerically("==", 2)))

		var items []user.Resource
		Expect(json.Unmarshal(env.Data, &items)).To(Succeed())
		Expect(items).To(HaveLen(1))
		Expect(items[0].Name).To(Equal("Bob"))
	})

	It("returns 404 for unknown or malformed ids", func() {
		w, env := do(http.MethodGet, "/users/123", "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(env.Message).To(Equal("User not found"))

		w, _ = do(http.MethodGet, "/users/abc", "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("rejects a password change with the wrong current password", func() {
		u := createUser(svc, "Alice", "alice@example.com")
		w, env := do(http.MethodPut, "/users/"+itoa(u.ID),
			`{"current_password":"bad-password","password":"newpassword1","password_confirmation":"newpassword1"}`)
		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
		Expect(env.Message).To(Equal("Current password is incorrect"))
	})

	It("deletes a user", func() {
		u := createUser(svc, "Alice", "alice@example.com")
		w, env := do(http.MethodDelete, "/users/"+itoa(u.ID), "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(env.Message).To(Equal("User deleted successfully"))

		w, _ = do(http.MethodDelete, "/users/"+itoa(u.ID), "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})
})
