package spawner

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/ajitpratap0/spawnpool/internal/scene"
	"github.com/ajitpratap0/spawnpool/pkg/pool"
	"github.com/ajitpratap0/spawnpool/pkg/poolerrors"
	"github.com/ajitpratap0/spawnpool/pkg/testutil"
)

type node = *scene.Node

// recordingHost logs every host primitive before delegating to the scene.
type recordingHost struct {
	*scene.Scene
	log             *testutil.CallLog
	failInstantiate error
	failSetParent   error

	// the next failDeactivations SetActive(false) calls return errDeactivate
	failDeactivations int
	errDeactivate     error
}

func (h *recordingHost) Instantiate(prototype, parent node) (node, error) {
	if h.failInstantiate != nil {
		return nil, h.failInstantiate
	}
	n, err := h.Scene.Instantiate(prototype, parent)
	h.log.Record("instantiate", n)
	return n, err
}

func (h *recordingHost) Destroy(n node) error {
	h.log.Record("destroy", n)
	return h.Scene.Destroy(n)
}

func (h *recordingHost) SetActive(n node, active bool) error {
	h.log.Record(fmt.Sprintf("active=%t", active), n)
	if !active && h.failDeactivations > 0 {
		h.failDeactivations--
		return h.errDeactivate
	}
	return h.Scene.SetActive(n, active)
}

func (h *recordingHost) SetParent(n, parent node) error {
	if h.failSetParent != nil {
		return h.failSetParent
	}
	h.log.Record("parent="+parent.String(), n)
	return h.Scene.SetParent(n, parent)
}

type fixture struct {
	world *scene.Scene
	host  *recordingHost
	log   *testutil.CallLog
	root  node
}

func newFixture() *fixture {
	world := scene.New()
	log := &testutil.CallLog{}
	return &fixture{
		world: world,
		host:  &recordingHost{Scene: world, log: log},
		log:   log,
		root:  world.NewNode("root", nil),
	}
}

func (f *fixture) callbacks() Callbacks[node, node] {
	return Callbacks[node, node]{
		OnCreate: func(key, instance node) error {
			f.log.Record("on_create", fmt.Sprintf("%s<-%s", instance, key))
			return nil
		},
		OnGet:     testutil.Hook[node](f.log, "on_get", nil),
		OnRelease: testutil.Hook[node](f.log, "on_release", nil),
		OnDestroy: testutil.Hook[node](f.log, "on_destroy", nil),
	}
}

func TestAllocatePrewarmsInactiveInstances(t *testing.T) {
	f := newFixture()
	// Prototype built as a regular active node, so clones start active.
	enemy := f.world.NewNode("Enemy", nil)
	s := New[node, node](f.host, f.root, f.callbacks(), WithLogger(testutil.TestLogger(t)))

	p, err := s.Allocate(enemy, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, p.Len())
	assert.Equal(t, pool.Stats{Allocated: 2, Free: 2}, p.Stats())
	assert.Equal(t, 2, f.log.Count("on_create"))

	children := f.world.Children(f.root)
	require.Len(t, children, 2)
	for _, c := range children {
		assert.False(t, f.world.Active(c))
	}

	again, err := s.Allocate(enemy, 0)
	require.NoError(t, err)
	assert.Same(t, p, again)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, []node{enemy}, s.Keys())
}

func TestGetAndReturnByItem(t *testing.T) {
	f := newFixture()
	protoA := f.world.NewPrototype("A")
	s := New[node, node](f.host, f.root, f.callbacks())

	_, err := s.Allocate(protoA, 2)
	require.NoError(t, err)
	prewarmed := f.world.Children(f.root)

	item, err := s.Get(protoA)
	require.NoError(t, err)

	assert.Same(t, prewarmed[0], item)
	assert.True(t, f.world.Active(item))
	key, ok := s.KeyOf(item)
	require.True(t, ok)
	assert.Same(t, protoA, key)
	assert.Equal(t, 1, s.ActiveCount())

	require.NoError(t, s.Return(item))
	assert.False(t, f.world.Active(item))
	_, ok = s.KeyOf(item)
	assert.False(t, ok)
	assert.Equal(t, 0, s.ActiveCount())
	assert.Equal(t, 1, f.log.Count("on_release"))

	// Already returned: nothing happens.
	require.NoError(t, s.Return(item))
	assert.Equal(t, 1, f.log.Count("on_release"))
}

func TestGetUnknownKeyAllocatesImplicitly(t *testing.T) {
	f := newFixture()
	spark := f.world.NewPrototype("Spark")
	s := New[node, node](f.host, f.root, f.callbacks())

	item, err := s.Get(spark)
	require.NoError(t, err)

	p, ok := s.Pool(spark)
	require.True(t, ok)
	assert.Equal(t, pool.Stats{Allocated: 1, InUse: 1, Misses: 1}, p.Stats())
	assert.Equal(t, []node{spark}, s.Keys())
	assert.True(t, p.InUse(item))
	assert.Same(t, spark, f.world.Prototype(item))
}

func TestGetWithParentAndReturnReparentsToRoot(t *testing.T) {
	f := newFixture()
	proto := f.world.NewPrototype("Coin")
	hud := f.world.NewNode("hud", f.root)
	s := New[node, node](f.host, f.root, Callbacks[node, node]{})

	item, err := s.GetWithParent(proto, hud)
	require.NoError(t, err)
	assert.Same(t, hud, f.world.Parent(item))

	require.NoError(t, s.Return(item))
	assert.Same(t, f.root, f.world.Parent(item))
	assert.False(t, f.world.Active(item))
}

func TestHookComposition(t *testing.T) {
	f := newFixture()
	bullet := f.world.NewPrototype("Bullet")
	s := New[node, node](f.host, f.root, f.callbacks())

	item, err := s.Get(bullet)
	require.NoError(t, err)
	require.NoError(t, s.Return(item))
	require.NoError(t, s.Dispose())

	assert.Equal(t, []string{
		"instantiate:Bullet(Clone)",
		"on_create:Bullet(Clone)<-Bullet",
		"active=true:Bullet(Clone)",
		"on_get:Bullet(Clone)",
		"active=false:Bullet(Clone)",
		"parent=root:Bullet(Clone)",
		"on_release:Bullet(Clone)",
		"destroy:Bullet(Clone)",
		"on_destroy:Bullet(Clone)",
	}, f.log.Calls())
}

func TestReturnKeyed(t *testing.T) {
	f := newFixture()
	a := f.world.NewPrototype("A")
	unknown := f.world.NewPrototype("Unknown")
	s := New[node, node](f.host, f.root, f.callbacks())

	item, err := s.Get(a)
	require.NoError(t, err)

	require.NoError(t, s.ReturnKeyed(unknown, item))
	assert.Equal(t, 1, s.ActiveCount())
	assert.Equal(t, 0, f.log.Count("on_release"))

	require.NoError(t, s.ReturnKeyed(a, item))
	assert.Equal(t, 0, s.ActiveCount())
	assert.Equal(t, 1, f.log.Count("on_release"))

	p, _ := s.Pool(a)
	assert.False(t, p.InUse(item))
}

func TestReturnUntrackedIsNoop(t *testing.T) {
	f := newFixture()
	s := New[node, node](f.host, f.root, f.callbacks())

	stray := f.world.NewNode("stray", nil)
	require.NoError(t, s.Return(stray))
	assert.Empty(t, f.log.Calls())
}

func TestDispose(t *testing.T) {
	f := newFixture()
	a := f.world.NewPrototype("A")
	b := f.world.NewPrototype("B")
	s := New[node, node](f.host, f.root, f.callbacks())

	_, err := s.Allocate(a, 3)
	require.NoError(t, err)
	active, err := s.Get(b)
	require.NoError(t, err)
	baseline := 3 // root + two prototypes
	require.Equal(t, baseline+4, f.world.Alive())

	require.NoError(t, s.Dispose())

	assert.Equal(t, baseline, f.world.Alive())
	assert.True(t, f.world.Destroyed(active))
	assert.Equal(t, 4, f.log.Count("on_destroy"))
	assert.Empty(t, s.Keys())
	assert.Equal(t, 0, s.ActiveCount())

	_, err = s.Get(a)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeDisposed))
	_, err = s.Allocate(a, 1)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeDisposed))
	assert.NoError(t, s.Return(active))
	assert.NoError(t, s.Dispose())
}

func TestDisposeNestedInstances(t *testing.T) {
	f := newFixture()
	enemy := f.world.NewPrototype("Enemy")
	bullet := f.world.NewPrototype("Bullet")
	s := New[node, node](f.host, f.root, f.callbacks())

	e, err := s.Get(enemy)
	require.NoError(t, err)
	b, err := s.GetWithParent(bullet, e)
	require.NoError(t, err)
	require.Same(t, e, f.world.Parent(b))

	// Enemy's pool goes first and takes the bullet down with it.
	require.NoError(t, s.Dispose())

	assert.True(t, f.world.Destroyed(e))
	assert.True(t, f.world.Destroyed(b))
	assert.Equal(t, 3, f.world.Alive())
	assert.Equal(t, 2, f.log.Count("on_destroy"))
	assert.Equal(t, []string{
		"on_destroy:Enemy(Clone)",
		"on_destroy:Bullet(Clone)",
	}, filterPhase(f.log.Calls(), "on_destroy"))
}

func TestAllocateDeactivationFailures(t *testing.T) {
	errStuck := errors.New("stuck active")

	t.Run("remaining items still deactivated", func(t *testing.T) {
		f := newFixture()
		f.host.failDeactivations = 1
		f.host.errDeactivate = errStuck
		enemy := f.world.NewNode("Enemy", nil)
		s := New[node, node](f.host, f.root, Callbacks[node, node]{})

		p, err := s.Allocate(enemy, 3)
		require.NotNil(t, p)
		assert.ErrorIs(t, err, errStuck)
		assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeHost))
		assert.Equal(t, 3, p.Len())

		children := f.world.Children(f.root)
		require.Len(t, children, 3)
		assert.True(t, f.world.Active(children[0]))
		assert.False(t, f.world.Active(children[1]))
		assert.False(t, f.world.Active(children[2]))
	})

	t.Run("create failure kept alongside", func(t *testing.T) {
		f := newFixture()
		f.host.failDeactivations = 1
		f.host.errDeactivate = errStuck
		errFull := errors.New("out of slots")
		enemy := f.world.NewNode("Enemy", nil)

		created := 0
		s := New[node, node](f.host, f.root, Callbacks[node, node]{
			OnCreate: func(_, _ node) error {
				created++
				if created == 3 {
					return errFull
				}
				return nil
			},
		})

		p, err := s.Allocate(enemy, 3)
		require.NotNil(t, p)
		assert.Len(t, multierr.Errors(err), 2)
		assert.ErrorIs(t, err, errFull)
		assert.ErrorIs(t, err, errStuck)
		assert.Equal(t, 2, p.Len())
		assert.Equal(t, 2, f.log.Count("active=false"), "both pooled items were deactivated")
	})
}

func TestReturnKeyedWrongKeyForgetsInstance(t *testing.T) {
	f := newFixture()
	a := f.world.NewPrototype("A")
	b := f.world.NewPrototype("B")
	s := New[node, node](f.host, f.root, f.callbacks())

	item, err := s.Get(a)
	require.NoError(t, err)
	_, err = s.Allocate(b, 1)
	require.NoError(t, err)

	// B's pool does not own item: nothing is released, yet item is no
	// longer tracked.
	require.NoError(t, s.ReturnKeyed(b, item))
	assert.Equal(t, 0, s.ActiveCount())
	assert.Equal(t, 0, f.log.Count("on_release"))

	poolA, _ := s.Pool(a)
	assert.True(t, poolA.InUse(item))

	require.NoError(t, s.Return(item))
	assert.True(t, poolA.InUse(item))

	require.NoError(t, s.ReturnKeyed(a, item))
	assert.False(t, poolA.InUse(item))
	assert.Equal(t, 1, f.log.Count("on_release"))
}

func filterPhase(calls []string, phase string) []string {
	var out []string
	for _, c := range calls {
		if strings.HasPrefix(c, phase+":") {
			out = append(out, c)
		}
	}
	return out
}

func TestHostFailuresPropagate(t *testing.T) {
	errGone := errors.New("device lost")

	t.Run("instantiate", func(t *testing.T) {
		f := newFixture()
		f.host.failInstantiate = errGone
		proto := f.world.NewPrototype("A")
		s := New[node, node](f.host, f.root, Callbacks[node, node]{})

		item, err := s.Get(proto)
		assert.Nil(t, item)
		assert.ErrorIs(t, err, errGone)
		assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeHost))
		assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeHook))
		assert.Equal(t, 0, s.ActiveCount())
	})

	t.Run("set parent", func(t *testing.T) {
		f := newFixture()
		f.host.failSetParent = errGone
		proto := f.world.NewPrototype("A")
		hud := f.world.NewNode("hud", f.root)
		s := New[node, node](f.host, f.root, Callbacks[node, node]{})

		item, err := s.GetWithParent(proto, hud)
		require.NotNil(t, item)
		assert.ErrorIs(t, err, errGone)
		assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeHost))

		// Acquired but untracked; still recoverable through its key.
		assert.Equal(t, 0, s.ActiveCount())
		p, _ := s.Pool(proto)
		assert.True(t, p.InUse(item))
	})

	t.Run("user get callback", func(t *testing.T) {
		f := newFixture()
		proto := f.world.NewPrototype("A")
		s := New[node, node](f.host, f.root, Callbacks[node, node]{
			OnGet: func(node) error { return errGone },
		})

		item, err := s.Get(proto)
		assert.ErrorIs(t, err, errGone)
		require.NotNil(t, item)
		require.NoError(t, s.ReturnKeyed(proto, item))

		p, _ := s.Pool(proto)
		assert.False(t, p.InUse(item))
	})
}

func TestStrictReleaseOption(t *testing.T) {
	f := newFixture()
	proto := f.world.NewPrototype("A")
	s := New[node, node](f.host, f.root, Callbacks[node, node]{}, WithStrictRelease())

	item, err := s.Get(proto)
	require.NoError(t, err)
	require.NoError(t, s.ReturnKeyed(proto, item))

	err = s.ReturnKeyed(proto, item)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeDoubleRelease))
}

func TestObserverReceivesPoolEvents(t *testing.T) {
	f := newFixture()
	proto := f.world.NewPrototype("Rocket")

	var mu sync.Mutex
	seen := map[string]int{}
	observer := pool.ObserverFunc(func(name string, event pool.Event, _ pool.Stats) {
		mu.Lock()
		defer mu.Unlock()
		seen[name+"/"+string(event)]++
	})
	s := New[node, node](f.host, f.root, Callbacks[node, node]{}, WithObserver(observer))

	item, err := s.Get(proto)
	require.NoError(t, err)
	require.NoError(t, s.Return(item))

	assert.Equal(t, map[string]int{
		"Rocket/create":  1,
		"Rocket/acquire": 1,
		"Rocket/release": 1,
	}, seen)
}

func TestConcurrentGetAndReturn(t *testing.T) {
	f := newFixture()
	protos := []node{f.world.NewPrototype("A"), f.world.NewPrototype("B")}
	s := New[node, node](f.world, f.root, Callbacks[node, node]{})

	const workers = 8
	const rounds = 50

	var wg sync.WaitGroup
	errs := make(chan error, workers*rounds)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			proto := protos[w%len(protos)]
			for i := 0; i < rounds; i++ {
				item, err := s.Get(proto)
				if err != nil {
					errs <- err
					return
				}
				if err := s.Return(item); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatal(err)
	}
	assert.Equal(t, 0, s.ActiveCount())
	for key, st := range s.Stats() {
		assert.Equal(t, 0, st.InUse, key.String())
		assert.LessOrEqual(t, st.Allocated, workers/len(protos), key.String())
	}
}
