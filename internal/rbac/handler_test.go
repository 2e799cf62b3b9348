package rbac_test

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/rbac-admin/internal/rbac"
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

var _ = Describe("RBAC Handler", func() {
	var (
		f      *fixture
		router http.Handler
	)

	do := func(method, path, body string) (int, envelope) {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, path, nil)
		} else {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var env envelope
		Expect(json.Unmarshal(w.Body.Bytes(), &env)).To(Succeed())
		return w.Code, env
	}

	BeforeEach(func() {
		f = newFixture()
		slogger := slog.New(slog.NewTextHandler(GinkgoWriter, &slog.HandlerOptions{Level: slog.LevelError}))
		h := rbac.NewHandler(transport.NewBaseHandler(slogger), f.svc)

		r := chi.NewRouter()
		r.Get("/roles", h.ListRoles)
		r.Post("/roles", h.CreateRole)
		r.Delete("/roles/{role}", h.DeleteRole)
		r.Post("/roles/{role}/permissions", h.AssignPermissionsToRole)
		r.Get("/permissions", h.ListPermissions)
		r.Post("/permissions", h.CreatePermission)
		r.Delete("/permissions/{permission}", h.DeletePermission)
		r.Post("/users/{user}/role", h.AssignRolesToUser)
		r.Post("/users/{user}/permission", h.AssignPermissionsToUser)
		router = r
	})

	It("creates and lists roles", func() {
		code, env := do(http.MethodPost, "/roles", `{"name":"editor"}`)
		Expect(code).To(Equal(http.StatusCreated))
		Expect(env.Message).To(Equal("Role created successfully"))

		var created rbac.RoleResource
		Expect(json.Unmarshal(env.Data, &created)).To(Succeed())
		Expect(created.Permissions).To(Equal([]string{}))

		code, env = do(http.MethodGet, "/roles", "")
		Expect(code).To(Equal(http.StatusOK))
		Expect(env.Meta).To(HaveKeyWithValue("per_page", BeNumerically("==", 10)))
		Expect(env.Meta).To(HaveKeyWithValue("last_page", BeNumerically("==", 1)))

		var roles []rbac.RoleResource
		Expect(json.Unmarshal(env.Data, &roles)).To(Succeed())
		Expect(roles).To(HaveLen(1))
		Expect(roles[0].Name).To(Equal("editor"))
	})

	It("returns 422 with field errors for a duplicate name", func() {
		f.role("editor")
		code, env := do(http.MethodPost, "/roles", `{"name":"editor"}`)
		Expect(code).To(Equal(http.StatusUnprocessableEntity))
		Expect(env.Status).To(Equal("error"))
		Expect(env.Message).To(Equal("The name has already been taken."))

		var errs map[string][]string
		Expect(json.Unmarshal(env.Errors, &errs)).To(Succeed())
		Expect(errs).To(HaveKey("name"))
	})

	It("caps per_page at 100", func() {
		code, env := do(http.MethodGet, "/permissions?per_page=500", "")
		Expect(code).To(Equal(http.StatusOK))
		Expect(env.Meta).To(HaveKeyWithValue("per_page", BeNumerically("==", 100)))
		Expect(string(env.Data)).To(Equal("[]"))
	})

	It("syncs permissions onto a role", func() {
		r := f.role("editor")
		p1, p2 := f.permission("p1"), f.permission("p2")

		code, env := do(http.MethodPost, fmt.Sprintf("/roles/%d/permissions", r.ID),
			fmt.Sprintf(`{"permissions":[%d,%d]}`, p1.ID, p2.ID))
		Expect(code).To(Equal(http.StatusOK))
		Expect(env.Message).To(Equal("Permissions assigned to role successfully"))

		var res rbac.RoleResource
		Expect(json.Unmarshal(env.Data, &res)).To(Succeed())
		Expect(res.Permissions).To(Equal([]string{"p1", "p2"}))
	})

	It("requires the permissions key", func() {
		r := f.role("editor")
		code, env := do(http.MethodPost, fmt.Sprintf("/roles/%d/permissions", r.ID), `{}`)
		Expect(code).To(Equal(http.StatusUnprocessableEntity))
		Expect(env.Message).To(Equal("The permissions field is required."))
	})

	It("rejects an empty role list with no valid roles found", func() {
		u := f.user("a@example.com")
		code, env := do(http.MethodPost, fmt.Sprintf("/users/%d/role", u.ID), `{"roles":[]}`)
		Expect(code).To(Equal(http.StatusUnprocessableEntity))
		Expect(env.Message).To(Equal("No valid roles found"))
	})

	It("assigns roles and direct permissions to a user", func() {
		u := f.user("a@example.com")
		r := f.role("editor")
		p := f.permission("publish")

		code, env := do(http.MethodPost, fmt.Sprintf("/users/%d/role", u.ID), fmt.Sprintf(`{"roles":[%d]}`, r.ID))
		Expect(code).To(Equal(http.StatusOK))
		Expect(env.Message).To(Equal("Role assigned to user successfully"))

		code, env = do(http.MethodPost, fmt.Sprintf("/users/%d/permission", u.ID), fmt.Sprintf(`{"permissions":[%d]}`, p.ID))
		Expect(code).To(Equal(http.StatusOK))
		Expect(env.Message).To(Equal("Permissions assigned to user successfully"))

		var res user.Resource
		Expect(json.Unmarshal(env.Data, &res)).To(Succeed())
		Expect(res.Roles).To(Equal([]string{"editor"}))
		Expect(res.Permissions).To(Equal([]string{"publish"}))
	})

	It("returns 404 when deleting an unknown role or permission", func() {
		code, env := do(http.MethodDelete, "/roles/9", "")
		Expect(code).To(Equal(http.StatusNotFound))
		Expect(env.Message).To(Equal("Role not found"))

		code, _ = do(http.MethodDelete, "/permissions/9", "")
		Expect(code).To(Equal(http.StatusNotFound))
	})

	It("deletes a role", func() {
		r := f.role("editor")
		code, env := do(http.MethodDelete, fmt.Sprintf("/roles/%d", r.ID), "")
		Expect(code).To(Equal(http.StatusOK))
		Expect(env.Message).To(Equal("Role deleted successfully"))
		Expect(env.Data).To(BeEmpty())
	})
})
