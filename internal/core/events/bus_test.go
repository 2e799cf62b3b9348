package events_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/frahmantamala/rbac-admin/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Suite")
}

var _ = Describe("EventBus", func() {
	var (
		bus     *events.EventBus
		slogger *slog.Logger
	)

	BeforeEach(func() {
		slogger = slog.New(slog.NewTextHandler(GinkgoWriter, &slog.HandlerOptions{Level: slog.LevelError}))
		bus = events.NewEventBus(slogger)
	})

	It("delivers an event to handlers of its type and to wildcard handlers", func() {
		var (
			mu   sync.Mutex
			seen []string
		)
		record := func(tag string) events.Handler {
			return func(ctx context.Context, e events.Event) error {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, tag+":"+e.EventType())
				return nil
			}
		}
		bus.Subscribe(events.EventTypeUserRolesSynced, record("typed"))
		bus.Subscribe(events.EventTypeRoleDeleted, record("other"))
		bus.Subscribe(events.AllEvents, record("all"))

		evt := events.NewAccessSyncedEvent(events.EventTypeUserRolesSynced, "user_roles", 7, []int64{1, 2}, 1)
		Expect(bus.Publish(context.Background(), evt)).To(Succeed())
		bus.Wait()

		Expect(seen).To(ConsistOf(
			"typed:"+events.EventTypeUserRolesSynced,
			"all:"+events.EventTypeUserRolesSynced,
		))
	})

	It("stops PublishSync at the first failing handler", func() {
		calls := 0
		bus.Subscribe(events.EventTypeRoleDeleted, func(ctx context.Context, e events.Event) error {
			calls++
			return errors.New("boom")
		})
		bus.Subscribe(events.EventTypeRoleDeleted, func(ctx context.Context, e events.Event) error {
			calls++
			return nil
		})

		err := bus.PublishSync(context.Background(), events.NewEntityChangedEvent(events.EventTypeRoleDeleted, 3, "editor", 1))
		Expect(err).To(MatchError(ContainSubstring("boom")))
		Expect(calls).To(Equal(1))
	})

	It("is a no-op when nobody listens", func() {
		Expect(bus.PublishSync(context.Background(), events.NewEntityChangedEvent(events.EventTypePermissionDeleted, 1, "x", 0))).To(Succeed())
	})

	It("writes audit entries with the event payload", func() {
		var buf bytes.Buffer
		audit := slog.New(slog.NewTextHandler(&buf, nil))
		bus.Subscribe(events.AllEvents, events.AuditLogger(audit))

		evt := events.NewAccessSyncedEvent(events.EventTypeRolePermissionsSynced, "role_permissions", 4, []int64{9}, 2)
		Expect(bus.PublishSync(context.Background(), evt)).To(Succeed())

		Expect(buf.String()).To(ContainSubstring("event_type=" + events.EventTypeRolePermissionsSynced))
		Expect(buf.String()).To(ContainSubstring(evt.EventID()))
	})
})
