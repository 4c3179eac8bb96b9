package sim

import (
	"testing"
	"time"

	"github.com/dd0wney/cluso-fdb/pkg/native"
)

// newRunningEngine returns an engine with its network loop running and a
// stop function registered as cleanup.
func newRunningEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e := NewEngine(opts)
	if code := e.SelectAPIVersion(101); !code.OK() {
		t.Fatalf("SelectAPIVersion failed: %v", code)
	}
	if code := e.SetupNetwork(); !code.OK() {
		t.Fatalf("SetupNetwork failed: %v", code)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.RunNetwork()
	}()
	t.Cleanup(func() {
		e.StopNetwork()
		<-done
	})
	waitRunning(t, e)
	return e
}

func waitRunning(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !e.networkReady() {
		if time.Now().After(deadline) {
			t.Fatal("Network loop never started")
		}
		time.Sleep(time.Millisecond)
	}
}

func waitReady(t *testing.T, e *Engine, token native.FutureToken) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !e.FutureIsReady(token) {
		if time.Now().After(deadline) {
			t.Fatalf("Future %d never became ready", token)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAPIVersionGate(t *testing.T) {
	e := NewEngine(DefaultOptions())

	if code := e.SetupNetwork(); code != native.CodeAPIVersionUnset {
		t.Errorf("Expected CodeAPIVersionUnset, got %v", code)
	}
	if code := e.SelectAPIVersion(99); code != native.CodeAPIVersionNotSupported {
		t.Errorf("Expected CodeAPIVersionNotSupported for 99, got %v", code)
	}
	if code := e.SelectAPIVersion(101); !code.OK() {
		t.Errorf("SelectAPIVersion(101) failed: %v", code)
	}
	if code := e.SelectAPIVersion(100); code != native.CodeAPIVersionAlreadySet {
		t.Errorf("Expected CodeAPIVersionAlreadySet, got %v", code)
	}
	if code := e.SetupNetwork(); !code.OK() {
		t.Errorf("SetupNetwork failed: %v", code)
	}
	if code := e.SetupNetwork(); code != native.CodeNetworkAlreadySetup {
		t.Errorf("Expected CodeNetworkAlreadySetup, got %v", code)
	}
}

func TestRunNetworkRequiresSetup(t *testing.T) {
	e := NewEngine(DefaultOptions())
	if code := e.RunNetwork(); code != native.CodeNetworkNotSetup {
		t.Errorf("Expected CodeNetworkNotSetup, got %v", code)
	}
	if code := e.StopNetwork(); code != native.CodeNetworkNotSetup {
		t.Errorf("Expected CodeNetworkNotSetup from StopNetwork, got %v", code)
	}
}

func TestStopBeforeRunPreventsLoop(t *testing.T) {
	e := NewEngine(DefaultOptions())
	if code := e.SelectAPIVersion(101); !code.OK() {
		t.Fatalf("SelectAPIVersion failed: %v", code)
	}
	if code := e.SetupNetwork(); !code.OK() {
		t.Fatalf("SetupNetwork failed: %v", code)
	}

	// Stop lands before the loop ever starts; it must not block waiting
	// for a loop that does not exist.
	if code := e.StopNetwork(); !code.OK() {
		t.Fatalf("StopNetwork before RunNetwork failed: %v", code)
	}

	result := make(chan native.Code, 1)
	go func() { result <- e.RunNetwork() }()
	select {
	case code := <-result:
		if !code.OK() {
			t.Errorf("RunNetwork after stop should return success, got %v", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunNetwork blocked after the network was stopped")
	}
}

func TestStopNetworkRacesRunNetwork(t *testing.T) {
	for i := 0; i < 100; i++ {
		e := NewEngine(DefaultOptions())
		if code := e.SelectAPIVersion(101); !code.OK() {
			t.Fatalf("SelectAPIVersion failed: %v", code)
		}
		if code := e.SetupNetwork(); !code.OK() {
			t.Fatalf("SetupNetwork failed: %v", code)
		}

		result := make(chan native.Code, 1)
		go func() { result <- e.RunNetwork() }()
		if code := e.StopNetwork(); !code.OK() {
			t.Fatalf("StopNetwork failed: %v", code)
		}

		select {
		case code := <-result:
			if !code.OK() {
				t.Fatalf("RunNetwork returned %v", code)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("RunNetwork never returned after StopNetwork")
		}
	}
}

func TestCreateClusterBeforeVersionFailsImmediately(t *testing.T) {
	e := NewEngine(DefaultOptions())

	token := e.CreateCluster("")
	if !e.FutureIsReady(token) {
		t.Fatal("API-misuse failure should complete synchronously")
	}
	if code := e.FutureGetError(token); code != native.CodeAPIVersionUnset {
		t.Errorf("Expected CodeAPIVersionUnset, got %v", code)
	}
	e.FutureDestroy(token)
}

func TestClusterLifecycle(t *testing.T) {
	e := newRunningEngine(t, DefaultOptions())

	token := e.CreateCluster("")
	waitReady(t, e, token)

	if code := e.FutureGetError(token); !code.OK() {
		t.Fatalf("Cluster open failed: %v", code)
	}
	ptr, code := e.FutureGetCluster(token)
	if !code.OK() || ptr == native.NilPointer {
		t.Fatalf("FutureGetCluster returned ptr=%d code=%v", ptr, code)
	}
	e.FutureDestroy(token)

	if got := e.OpenClusterCount(); got != 1 {
		t.Errorf("Expected 1 open cluster, got %d", got)
	}
	e.ClusterDestroy(ptr)
	if got := e.OpenClusterCount(); got != 0 {
		t.Errorf("Expected 0 open clusters, got %d", got)
	}
	if got := e.ClusterDestroyCount(); got != 1 {
		t.Errorf("Expected 1 cluster destroy, got %d", got)
	}
}

func TestRejectClusterFile(t *testing.T) {
	e := newRunningEngine(t, DefaultOptions())
	e.RejectClusterFile("/nope", native.CodeClusterFileNotFound)

	token := e.CreateCluster("/nope")
	waitReady(t, e, token)

	if code := e.FutureGetError(token); code != native.CodeClusterFileNotFound {
		t.Errorf("Expected CodeClusterFileNotFound, got %v", code)
	}
	if ptr, code := e.FutureGetCluster(token); code.OK() || ptr != native.NilPointer {
		t.Errorf("Failed future should yield no handle, got ptr=%d code=%v", ptr, code)
	}
	e.FutureDestroy(token)
}

func TestDatabaseNameValidation(t *testing.T) {
	e := newRunningEngine(t, DefaultOptions())

	ctoken := e.CreateCluster("")
	waitReady(t, e, ctoken)
	ptr, _ := e.FutureGetCluster(ctoken)
	e.FutureDestroy(ctoken)
	defer e.ClusterDestroy(ptr)

	good := e.ClusterOpenDatabase(ptr, []byte("DB"))
	waitReady(t, e, good)
	if code := e.FutureGetError(good); !code.OK() {
		t.Errorf("Expected DB open to succeed, got %v", code)
	}
	dbPtr, _ := e.FutureGetDatabase(good)
	e.FutureDestroy(good)
	e.DatabaseDestroy(dbPtr)

	bad := e.ClusterOpenDatabase(ptr, []byte("OTHER"))
	waitReady(t, e, bad)
	if code := e.FutureGetError(bad); code != native.CodeDatabaseNameInvalid {
		t.Errorf("Expected CodeDatabaseNameInvalid, got %v", code)
	}
	e.FutureDestroy(bad)
}

func TestCallbackFiresOnCompletion(t *testing.T) {
	e := newRunningEngine(t, DefaultOptions())

	token := e.CreateCluster("")
	fired := make(chan native.FutureToken, 1)
	if code := e.FutureSetCallback(token, func(tok native.FutureToken) { fired <- tok }); !code.OK() {
		t.Fatalf("FutureSetCallback failed: %v", code)
	}

	select {
	case tok := <-fired:
		if tok != token {
			t.Errorf("Callback got token %d, want %d", tok, token)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Callback never fired")
	}

	ptr, _ := e.FutureGetCluster(token)
	e.FutureDestroy(token)
	e.ClusterDestroy(ptr)
}

func TestCallbackFiresImmediatelyWhenReady(t *testing.T) {
	e := newRunningEngine(t, DefaultOptions())

	token := e.CreateCluster("")
	waitReady(t, e, token)

	fired := false
	e.FutureSetCallback(token, func(native.FutureToken) { fired = true })
	if !fired {
		t.Error("Callback on a ready future should fire before returning")
	}

	ptr, _ := e.FutureGetCluster(token)
	e.FutureDestroy(token)
	e.ClusterDestroy(ptr)
}

func TestSecondCallbackRejected(t *testing.T) {
	opts := DefaultOptions()
	opts.Latency = time.Second
	e := newRunningEngine(t, opts)

	token := e.CreateCluster("")
	if code := e.FutureSetCallback(token, func(native.FutureToken) {}); !code.OK() {
		t.Fatalf("First callback failed: %v", code)
	}
	if code := e.FutureSetCallback(token, func(native.FutureToken) {}); code != native.CodeInternalError {
		t.Errorf("Expected CodeInternalError for second callback, got %v", code)
	}
	e.FutureCancel(token)
	e.FutureDestroy(token)
}

func TestCancelPendingFuture(t *testing.T) {
	opts := DefaultOptions()
	opts.Latency = time.Minute
	e := newRunningEngine(t, opts)

	token := e.CreateCluster("")
	e.FutureCancel(token)

	if !e.FutureIsReady(token) {
		t.Fatal("Cancelled future should be ready")
	}
	if code := e.FutureGetError(token); code != native.CodeOperationCancelled {
		t.Errorf("Expected CodeOperationCancelled, got %v", code)
	}
	e.FutureDestroy(token)
}

func TestCancelCompletedFutureIsNoOp(t *testing.T) {
	e := newRunningEngine(t, DefaultOptions())

	token := e.CreateCluster("")
	waitReady(t, e, token)
	e.FutureCancel(token)

	if code := e.FutureGetError(token); !code.OK() {
		t.Errorf("Completed result should survive cancel, got %v", code)
	}
	ptr, _ := e.FutureGetCluster(token)
	e.FutureDestroy(token)
	e.ClusterDestroy(ptr)
}

func TestLateCompletionCounted(t *testing.T) {
	opts := DefaultOptions()
	opts.Latency = 20 * time.Millisecond
	e := newRunningEngine(t, opts)

	token := e.CreateCluster("")
	e.FutureCancel(token)

	deadline := time.Now().Add(5 * time.Second)
	for e.LateCompletionCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Late completion never counted")
		}
		time.Sleep(time.Millisecond)
	}
	// The dropped result must not have allocated a handle.
	if got := e.OpenClusterCount(); got != 0 {
		t.Errorf("Late completion allocated a cluster handle: %d", got)
	}
	e.FutureDestroy(token)
}

func TestDoubleDestroyPanics(t *testing.T) {
	e := newRunningEngine(t, DefaultOptions())

	token := e.CreateCluster("")
	waitReady(t, e, token)
	ptr, _ := e.FutureGetCluster(token)
	e.FutureDestroy(token)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Second FutureDestroy should panic")
			}
		}()
		e.FutureDestroy(token)
	}()

	e.ClusterDestroy(ptr)
	func() {
		defer func() {
			if recover() == nil {
				t.Error("Second ClusterDestroy should panic")
			}
		}()
		e.ClusterDestroy(ptr)
	}()
}

func TestUseAfterFutureDestroyPanics(t *testing.T) {
	e := newRunningEngine(t, DefaultOptions())

	token := e.CreateCluster("")
	waitReady(t, e, token)
	ptr, _ := e.FutureGetCluster(token)
	e.FutureDestroy(token)
	defer e.ClusterDestroy(ptr)

	defer func() {
		if recover() == nil {
			t.Error("FutureIsReady on destroyed token should panic")
		}
	}()
	e.FutureIsReady(token)
}
