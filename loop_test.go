package mobius

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_ScenarioA_DispatchReachesObserver(t *testing.T) {
	loop, _ := newStringLoop(t, nil)
	obs := newRecorder[string, string]()

	_, err := loop.Connect(obs, NewImmediateRunner())
	require.NoError(t, err)
	require.NoError(t, loop.Start())

	loop.Dispatch("hey")

	assert.Equal(t, "S-hey", loop.Model())
	assert.Equal(t, []string{"S", "S-hey"}, obs.snapshot())
}

func TestLoop_ScenarioB_InitiateRunsOnEveryStart(t *testing.T) {
	loop, effects := newStringLoop(t, func(model string) First[string, string] {
		return FirstModel(model+"-init", "initEffect")
	})
	obs := newRecorder[string, string]()

	_, err := loop.Connect(obs, NewImmediateRunner())
	require.NoError(t, err)

	require.NoError(t, loop.Start())
	assert.Equal(t, []string{"S-init"}, obs.snapshot())
	assert.Equal(t, []string{"initEffect"}, effects.snapshot())

	require.NoError(t, loop.Stop())
	require.NoError(t, loop.Start())

	assert.Equal(t, []string{"S-init", "S-init-init"}, obs.snapshot())
	assert.Equal(t, []string{"initEffect", "initEffect"}, effects.snapshot())
}

func TestLoop_ScenarioC_DisconnectedObserverStopsReceiving(t *testing.T) {
	loop, _ := newStringLoop(t, nil)
	a := newRecorder[string, string]()
	b := newRecorder[string, string]()

	disposeA, err := loop.Connect(a, NewImmediateRunner())
	require.NoError(t, err)
	_, err = loop.Connect(b, NewImmediateRunner())
	require.NoError(t, err)

	require.NoError(t, loop.Start())
	assert.Equal(t, []string{"S"}, a.snapshot())
	assert.Equal(t, []string{"S"}, b.snapshot())

	disposeA.Dispose()
	loop.Dispatch("x")
	loop.Model()

	assert.Equal(t, []string{"S"}, a.snapshot())
	assert.Equal(t, []string{"S", "S-x"}, b.snapshot())

	_, disposals := a.counts()
	assert.Equal(t, 1, disposals)
}

func TestLoop_ObserversMatchLeftFold(t *testing.T) {
	update := func(model int, event int) Next[int, string] {
		if event%3 == 0 {
			return NoChange[int, string]()
		}
		return NextModel[int, string](model*2 + event)
	}
	loop := NewLoop[int, int, string](update, nil, nil, 1)
	defer loop.Close()

	obs := newRecorder[int, int]()
	_, err := loop.Connect(obs, nil)
	require.NoError(t, err)
	require.NoError(t, loop.Start())

	rng := rand.New(rand.NewSource(42))
	want := []int{1}
	model := 1
	for i := 0; i < 200; i++ {
		event := rng.Intn(10)
		loop.Dispatch(event)
		if next, ok := update(model, event).Model(); ok {
			model = next
			want = append(want, model)
		}
	}

	assert.Equal(t, model, loop.Model())
	require.Eventually(t, func() bool { return len(obs.snapshot()) == len(want) }, time.Second, time.Millisecond)
	assert.Equal(t, want, obs.snapshot())
}

func TestLoop_DispatchFromManyGoroutines(t *testing.T) {
	loop := NewLoop[int, int, string](func(model, event int) Next[int, string] {
		return NextModel[int, string](model + event)
	}, nil, nil, 0)
	defer loop.Close()
	require.NoError(t, loop.Start())

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				loop.Dispatch(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, loop.Model())
}

func TestLoop_StopTwiceFails(t *testing.T) {
	violations := captureViolations(t)
	loop, _ := newStringLoop(t, nil)

	require.NoError(t, loop.Start())
	loop.Dispatch("a")
	require.NoError(t, loop.Stop())
	before := loop.Model()

	err := loop.Stop()

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLifecycle))
	assert.Equal(t, before, loop.Model())
	assert.Equal(t, LifecycleStopped, loop.Lifecycle())

	got := violations()
	require.Len(t, got, 1)
	assert.Equal(t, KindLifecycle, got[0].Kind)
	assert.Equal(t, "stop", got[0].Op)
	assert.True(t, strings.HasPrefix(got[0].Location(), "loop_test.go:"), got[0].Location())
}

func TestLoop_StartTwiceFails(t *testing.T) {
	violations := captureViolations(t)
	loop, effects := newStringLoop(t, func(model string) First[string, string] {
		return FirstModel(model, "boot")
	})

	require.NoError(t, loop.Start())
	err := loop.Start()

	require.ErrorIs(t, err, ErrLifecycle)
	assert.Equal(t, []string{"boot"}, effects.snapshot(), "initiate must not run again")
	assert.True(t, loop.IsRunning())
	require.Len(t, violations(), 1)

	var v *Violation
	require.True(t, errors.As(err, &v))
	assert.Contains(t, v.Error(), "cannot start a loop that is started")
}

func TestLoop_ReplayBeforeNextEvent(t *testing.T) {
	loop, _ := newStringLoop(t, nil)
	require.NoError(t, loop.Start())
	loop.Dispatch("a")

	obs := newRecorder[string, string]()
	_, err := loop.Connect(obs, nil)
	require.NoError(t, err)
	loop.Dispatch("b")

	require.Eventually(t, func() bool { return len(obs.snapshot()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"S-a", "S-a-b"}, obs.snapshot())
}

func TestLoop_ReplayIsImmediateOnConnect(t *testing.T) {
	loop, _ := newStringLoop(t, nil)
	require.NoError(t, loop.Start())

	obs := newRecorder[string, string]()
	_, err := loop.Connect(obs, NewImmediateRunner())
	require.NoError(t, err)

	assert.Equal(t, []string{"S"}, obs.snapshot(), "replay must be delivered by the time Connect returns")
}

func TestLoop_EffectsSubmittedBeforeFeedbackEvents(t *testing.T) {
	var (
		mu  sync.Mutex
		log []string
	)
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		log = append(log, s)
	}

	effects := newRecorder[string, string]()
	effects.onAccept = func(effect string, out Consumer[string]) {
		record("effect:" + effect)
		if effect == "k1" {
			out("next")
		}
	}

	loop := NewLoop[string, string, string](func(model, event string) Next[string, string] {
		record("update:" + event)
		if event == "k" {
			return Dispatch[string, string]("k1", "k2")
		}
		return NoChange[string, string]()
	}, nil, effects, "S")
	defer loop.Close()

	require.NoError(t, loop.Start())
	loop.Dispatch("k")
	loop.Model()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"update:k", "effect:k1", "effect:k2", "update:next"}, log)
}

func TestLoop_NoChangeSkipsObservers(t *testing.T) {
	effects := newRecorder[string, string]()
	loop := NewLoop[string, string, string](func(_ string, event string) Next[string, string] {
		return Dispatch[string, string]("fx:" + event)
	}, nil, effects, "S")
	defer loop.Close()

	obs := newRecorder[string, string]()
	_, err := loop.Connect(obs, NewImmediateRunner())
	require.NoError(t, err)
	require.NoError(t, loop.Start())

	loop.Dispatch("a")
	loop.Model()

	assert.Equal(t, []string{"S"}, obs.snapshot())
	assert.Equal(t, []string{"fx:a"}, effects.snapshot())
}

func TestLoop_LateAsyncCompletionAfterStop(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})

	router := NewRouter[string, string]().
		Route("slow", Any[string], func(_ context.Context, _ string, emitter Emitter[string]) {
			defer close(finished)
			<-release
			emitter.Emit("late")
			emitter.Done()
		})

	loop := NewLoop[string, string, string](func(model, event string) Next[string, string] {
		if event == "go" {
			return Dispatch[string, string]("work")
		}
		return NextModel[string, string](model + "-" + event)
	}, nil, router, "S")
	defer loop.Close()

	obs := newRecorder[string, string]()
	_, err := loop.Connect(obs, NewImmediateRunner())
	require.NoError(t, err)
	require.NoError(t, loop.Start())

	loop.Dispatch("go")
	loop.Model()
	require.NoError(t, loop.Stop())

	close(release)
	<-finished

	assert.Equal(t, "S", loop.Model())
	assert.Equal(t, []string{"S"}, obs.snapshot())
}

func TestLoop_DispatchWhileStoppedIsDropped(t *testing.T) {
	loop, _ := newStringLoop(t, nil)

	loop.Dispatch("ignored")
	assert.Equal(t, "S", loop.Model())

	require.NoError(t, loop.Start())
	require.NoError(t, loop.Stop())
	loop.Dispatch("ignored")
	assert.Equal(t, "S", loop.Model())
}

func TestLoop_ObserverEventsFeedBack(t *testing.T) {
	loop, _ := newStringLoop(t, nil)

	obs := newRecorder[string, string]()
	obs.onAccept = func(model string, out Consumer[string]) {
		if model == "S" {
			out("echo")
		}
	}
	_, err := loop.Connect(obs, NewImmediateRunner())
	require.NoError(t, err)
	require.NoError(t, loop.Start())

	loop.Model()
	assert.Equal(t, "S-echo", loop.Model())
	assert.Equal(t, []string{"S", "S-echo"}, obs.snapshot())
}

func TestLoop_StopKeepsObserversRegistered(t *testing.T) {
	loop, _ := newStringLoop(t, nil)
	obs := newRecorder[string, string]()

	_, err := loop.Connect(obs, NewImmediateRunner())
	require.NoError(t, err)

	require.NoError(t, loop.Start())
	loop.Dispatch("a")
	require.NoError(t, loop.Stop())
	require.NoError(t, loop.Start())

	assert.Equal(t, []string{"S", "S-a", "S-a"}, obs.snapshot())
	connects, disposals := obs.counts()
	assert.Equal(t, 2, connects)
	assert.Equal(t, 1, disposals)
}

func TestLoop_StopWhileObserverReadsModel(t *testing.T) {
	loop, _ := newStringLoop(t, nil)
	obs := newRecorder[string, string]()
	entered := make(chan struct{})
	read := make(chan string, 1)
	var once sync.Once
	obs.onAccept = func(m string, _ Consumer[string]) {
		if m != "S-a" {
			return
		}
		once.Do(func() { close(entered) })
		time.Sleep(50 * time.Millisecond)
		read <- loop.Model()
	}

	_, err := loop.Connect(obs, nil)
	require.NoError(t, err)
	require.NoError(t, loop.Start())
	loop.Dispatch("a")
	<-entered

	stopped := make(chan error, 1)
	go func() { stopped <- loop.Stop() }()

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on an observer reading the model")
	}
	select {
	case m := <-read:
		assert.Equal(t, "S-a", m)
	case <-time.After(2 * time.Second):
		t.Fatal("observer never finished reading the model")
	}
	assert.Equal(t, LifecycleStopped, loop.Lifecycle())
}

func TestLoop_ObserverCannotEmitAfterStop(t *testing.T) {
	loop, _ := newStringLoop(t, nil)
	obs := newRecorder[string, string]()

	_, err := loop.Connect(obs, NewImmediateRunner())
	require.NoError(t, err)
	require.NoError(t, loop.Start())
	require.NoError(t, loop.Stop())

	obs.emit("late")
	require.NoError(t, loop.Start())

	assert.Equal(t, "S", loop.Model())
}

func TestLoop_DisposeIsIdempotent(t *testing.T) {
	loop, _ := newStringLoop(t, nil)
	obs := newRecorder[string, string]()

	dispose, err := loop.Connect(obs, nil)
	require.NoError(t, err)
	require.NoError(t, loop.Start())
	require.Eventually(t, func() bool { return len(obs.snapshot()) == 1 }, time.Second, time.Millisecond)

	dispose.Dispose()
	dispose.Dispose()

	_, disposals := obs.counts()
	assert.Equal(t, 1, disposals)
}

func TestLoop_DisconnectWhileStopped(t *testing.T) {
	loop, _ := newStringLoop(t, nil)
	obs := newRecorder[string, string]()

	dispose, err := loop.Connect(obs, NewImmediateRunner())
	require.NoError(t, err)
	dispose.Dispose()

	require.NoError(t, loop.Start())
	assert.Empty(t, obs.snapshot())
	connects, _ := obs.counts()
	assert.Zero(t, connects)
}

func TestLoop_ReplaceModel(t *testing.T) {
	violations := captureViolations(t)
	loop, _ := newStringLoop(t, nil)
	obs := newRecorder[string, string]()
	_, err := loop.Connect(obs, NewImmediateRunner())
	require.NoError(t, err)

	require.NoError(t, loop.ReplaceModel("R"))
	require.NoError(t, loop.Start())
	assert.Equal(t, []string{"R"}, obs.snapshot())

	err = loop.ReplaceModel("X")
	require.ErrorIs(t, err, ErrLifecycle)
	assert.Equal(t, "R", loop.Model())
	require.Len(t, violations(), 1)
	assert.Equal(t, "replace model", violations()[0].Op)
}

func TestLoop_EventSourceLifetime(t *testing.T) {
	ch := make(chan string)
	loop, _ := newStringLoop(t, nil)
	loop.EventSource(NewChannelSource(ch))

	require.NoError(t, loop.Start())
	ch <- "one"
	require.Eventually(t, func() bool { return loop.Model() == "S-one" }, time.Second, time.Millisecond)

	require.NoError(t, loop.Stop())
	select {
	case ch <- "two":
		t.Fatal("source still subscribed after Stop")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, loop.Start())
	ch <- "three"
	require.Eventually(t, func() bool { return loop.Model() == "S-one-three" }, time.Second, time.Millisecond)
}

func TestLoop_Close(t *testing.T) {
	loop, effects := newStringLoop(t, nil)
	obs := newRecorder[string, string]()
	_, err := loop.Connect(obs, nil)
	require.NoError(t, err)

	require.NoError(t, loop.Start())
	loop.Dispatch("a")
	loop.Close()
	loop.Close()

	assert.Equal(t, "S-a", loop.Model())
	assert.Equal(t, LifecycleStopped, loop.Lifecycle())
	assert.ErrorIs(t, loop.Start(), ErrClosed)
	assert.ErrorIs(t, loop.Stop(), ErrClosed)
	assert.ErrorIs(t, loop.ReplaceModel("x"), ErrClosed)

	_, err = loop.Connect(obs, nil)
	assert.ErrorIs(t, err, ErrClosed)

	loop.Dispatch("b")
	assert.Equal(t, "S-a", loop.Model())

	_, disposals := effects.counts()
	assert.Equal(t, 1, disposals)
}

func TestLoop_DefaultsWithoutEffects(t *testing.T) {
	loop := NewLoop[int, int, string](func(model, event int) Next[int, string] {
		return NextModel(model+event, "ignored")
	}, nil, nil, 0)
	defer loop.Close()

	require.NoError(t, loop.Start())
	loop.Dispatch(3)
	assert.Equal(t, 3, loop.Model())
}
