package pagination_test

import (
	"math"
	"net/http/httptest"
	"strconv"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/rbac-admin/internal/core/common/pagination"
)

func TestPagination(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Pagination Suite")
}

var _ = Describe("Request", func() {
	It("falls back to defaults on missing or malformed values", func() {
		req := pagination.FromHTTP(httptest.NewRequest("GET", "/users?page=abc&per_page=-3", nil))
		Expect(req).To(Equal(pagination.Request{Page: 1, PerPage: pagination.DefaultPerPage}))
		Expect(req.Offset()).To(BeZero())
	})

	It("caps per_page", func() {
		req := pagination.NewRequest(3, 500)
		Expect(req.Limit()).To(Equal(pagination.MaxPerPage))
		Expect(req.Offset()).To(Equal(2 * pagination.MaxPerPage))
	})

	It("keeps the offset positive for huge page numbers", func() {
		huge := strconv.Itoa(math.MaxInt)
		req := pagination.FromHTTP(httptest.NewRequest("GET", "/users?per_page=100&page="+huge, nil))

		Expect(req.Page).To(Equal(pagination.MaxPage))
		Expect(req.Offset()).To(BeNumerically(">", 0))
		Expect(req.Offset()).To(BeNumerically("<=", math.MaxInt32))
	})
})

var _ = Describe("NewPage", func() {
	It("computes last_page and never reports less than one", func() {
		page := pagination.NewPage([]int{1, 2}, pagination.NewRequest(1, 2), 5)
		Expect(page.Meta).To(Equal(pagination.Meta{CurrentPage: 1, PerPage: 2, Total: 5, LastPage: 3}))

		empty := pagination.NewPage[int](nil, pagination.NewRequest(1, 10), 0)
		Expect(empty.Items).NotTo(BeNil())
		Expect(empty.Meta.LastPage).To(Equal(1))
	})
})
