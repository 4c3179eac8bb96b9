package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dd0wney/cluso-fdb/pkg/logging"
	"github.com/dd0wney/cluso-fdb/pkg/metrics"
	"github.com/dd0wney/cluso-fdb/pkg/native/sim"
)

// TestHandleLifecycleInvariants verifies the release and settlement
// guarantees under adversarial interleavings. These properties must hold
// for any schedule: exactly one native release per handle, exactly one
// terminal state per operation, and no leaked native resources.
func TestHandleLifecycleInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20

	properties := gopter.NewProperties(parameters)

	// Property 1: N racing closers (explicit Close plus the finalizer
	// path) release the native handle exactly once.
	properties.Property("concurrent close releases exactly once", prop.ForAll(
		func(closers int) bool {
			b, engine := newPropertyBridge(t)
			defer b.Stop()

			c, err := b.OpenClusterSync(DefaultClusterFile)
			if err != nil {
				return false
			}

			var wg sync.WaitGroup
			for i := 0; i < closers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if i%2 == 0 {
						c.Close()
					} else {
						c.finalize()
					}
				}(i)
			}
			wg.Wait()

			return engine.ClusterDestroyCount() == 1 && engine.OpenClusterCount() == 0
		},
		gen.IntRange(2, 8),
	))

	// Property 2: racing cancellations against completion settle the
	// operation in exactly one terminal state, and the native cluster is
	// never leaked whichever side wins.
	properties.Property("cancel racing completion settles once without leaks", prop.ForAll(
		func(cancellers int) bool {
			b, engine := newPropertyBridge(t)
			defer b.Stop()

			future := b.OpenCluster(DefaultClusterFile)

			var wg sync.WaitGroup
			for i := 0; i < cancellers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					future.Cancel()
				}()
			}
			wg.Wait()
			<-future.Done()

			state := future.State()
			if !state.Terminal() {
				return false
			}
			// The state must not move again.
			if future.State() != state {
				return false
			}

			c, settled, err := future.Poll()
			if !settled {
				return false
			}
			switch state {
			case OpResolved:
				if err != nil || c == nil || !c.Open() {
					return false
				}
				c.Close()
			case OpCancelled, OpErrored:
				if c != nil {
					return false
				}
			}

			// Whichever side won, nothing native may leak. Stop reaps a
			// handle resolved after the race, so check post-Stop.
			if err := b.Stop(); err != nil {
				return false
			}
			return engine.OpenClusterCount() == 0
		},
		gen.IntRange(1, 6),
	))

	// Property 3: every open that resolves is balanced by exactly one
	// native destroy once all wrappers close.
	properties.Property("opens and destroys balance", prop.ForAll(
		func(opens int) bool {
			b, engine := newPropertyBridge(t)
			defer b.Stop()

			clusters := make([]*Cluster, 0, opens)
			for i := 0; i < opens; i++ {
				c, err := b.OpenClusterSync(DefaultClusterFile)
				if err != nil {
					return false
				}
				clusters = append(clusters, c)
			}
			for _, c := range clusters {
				c.Close()
			}
			return engine.ClusterDestroyCount() == int64(opens) &&
				engine.OpenClusterCount() == 0 &&
				engine.LiveFutureCount() == 0
		},
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}

func newPropertyBridge(t *testing.T) (*Bridge, *sim.Engine) {
	opts := sim.DefaultOptions()
	opts.Latency = 200 * time.Microsecond
	engine := sim.NewEngine(opts)

	cfg := DefaultConfig()
	cfg.Logger = logging.NewNopLogger()
	cfg.Metrics = metrics.NewRegistry()

	b, err := NewBridge(engine, cfg)
	if err != nil {
		t.Fatalf("Failed to create bridge: %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatalf("Failed to start bridge: %v", err)
	}
	return b, engine
}
