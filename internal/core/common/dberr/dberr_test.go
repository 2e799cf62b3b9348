package dberr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/frahmantamala/rbac-admin/internal/core/common/dberr"
	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestDBErr(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "DBErr Suite")
}

var _ = Describe("dberr", func() {
	It("recognises unique violations from every driver", func() {
		Expect(dberr.IsUniqueViolation(gorm.ErrDuplicatedKey)).To(BeTrue())
		Expect(dberr.IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}))).To(BeTrue())
		Expect(dberr.IsUniqueViolation(errors.New("UNIQUE constraint failed: users.email"))).To(BeTrue())
		Expect(dberr.IsUniqueViolation(&pgconn.PgError{Code: "23503"})).To(BeFalse())
		Expect(dberr.IsUniqueViolation(nil)).To(BeFalse())
	})

	It("recognises gorm not found", func() {
		Expect(dberr.IsNotFound(fmt.Errorf("get: %w", gorm.ErrRecordNotFound))).To(BeTrue())
		Expect(dberr.IsNotFound(errors.New("other"))).To(BeFalse())
	})

	It("escapes LIKE wildcards", func() {
		Expect(dberr.EscapeLike(`50%_off\`)).To(Equal(`50\%\_off\\`))
		Expect(dberr.EscapeLike("alice")).To(Equal("alice"))
	})
})
