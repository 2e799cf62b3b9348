package rbac

import (
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("keyedMutex", func() {
	It("serializes holders of the same key", func() {
		k := newKeyedMutex()
		var (
			active  int32
			maxSeen int32
			wg      sync.WaitGroup
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := k.Lock("user_roles:1")
				n := atomic.AddInt32(&active, 1)
				if n > atomic.LoadInt32(&maxSeen) {
					atomic.StoreInt32(&maxSeen, n)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				unlock()
			}()
		}
		wg.Wait()
		Expect(atomic.LoadInt32(&maxSeen)).To(BeEquivalentTo(1))
		Expect(k.size()).To(BeZero())
	})

	It("does not block different keys", func() {
		k := newKeyedMutex()
		unlockA := k.Lock("a")
		done := make(chan struct{})
		go func() {
			unlockB := k.Lock("b")
			unlockB()
			close(done)
		}()
		Eventually(done).Should(BeClosed())
		unlockA()
	})
})
