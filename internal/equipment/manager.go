package equipment

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/catalog"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// Manager builds equipment instances on first use from the bench config and
// the equipment catalog. Concurrent first calls for the same name share one
// initialisation.
type Manager struct {
	bench   *config.BenchConfig
	catalog *catalog.Store[catalog.EquipmentEntry]

	group     singleflight.Group
	mu        sync.Mutex
	instances map[string]*Instance
}

// NewManager returns a manager over bench and cat. Either may be nil.
func NewManager(bench *config.BenchConfig, cat *catalog.Store[catalog.EquipmentEntry]) *Manager {
	return &Manager{bench: bench, catalog: cat, instances: make(map[string]*Instance)}
}

// Get returns the initialised instance of the named bench equipment.
func (m *Manager) Get(ctx context.Context, name string) (*Instance, error) {
	m.mu.Lock()
	if inst, ok := m.instances[name]; ok {
		m.mu.Unlock()
		return inst, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do(name, func() (any, error) {
		m.mu.Lock()
		inst, ok := m.instances[name]
		m.mu.Unlock()
		if ok {
			return inst, nil
		}
		inst, err := m.build(ctx, name)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.instances[name] = inst
		m.mu.Unlock()
		return inst, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Instance), nil
}

func (m *Manager) build(ctx context.Context, name string) (*Instance, error) {
	bench, ok := m.bench.Equipment(name)
	if !ok {
		return nil, api.NewError(api.InvalidBenchConfig, "equipment %s is not declared in the bench config", name)
	}
	entry, err := m.catalog.Get(bench.Model)
	if err != nil {
		return nil, api.WrapError(api.InvalidBenchConfig, err, "equipment %s has unknown model %s", name, bench.Model)
	}

	inst := &Instance{
		Name:   name,
		Model:  bench.Model,
		Kind:   entry.Kind,
		Params: entry.Parameters.Merge(bench.Values),
		caps:   entry.Capabilities,
	}
	switch entry.Kind {
	case KindSimulated:
		if len(inst.caps) == 0 {
			inst.caps = AllCapabilities
		}
		inst.driver = newSimulated(inst.Params)
	case KindExternalExecutable:
		inst.driver = newExecutable(name, entry.Executable, inst.Params)
	case KindExternalDaemon:
		inst.driver = newDaemon(name, inst.Params)
	case KindSharedLibrary:
		inst.driver = sharedLibrary{name: name}
	default:
		return nil, api.NewError(api.InvalidBenchConfig, "equipment %s has unknown kind %q", name, entry.Kind)
	}

	if err := inst.driver.init(ctx); err != nil {
		return nil, err
	}
	logging.Info("Equipment", "Initialised %s (%s, %s) with capabilities %s", name, inst.Model, inst.Kind, strings.Join(inst.caps, ","))
	return inst, nil
}

// NewSimulated returns a simulated instance declaring caps (all when empty).
// It is used for devices without bench equipment and in tests.
func NewSimulated(name string, params config.Values, caps ...string) *Instance {
	if len(caps) == 0 {
		caps = AllCapabilities
	}
	return &Instance{Name: name, Model: "SIMULATED", Kind: KindSimulated, Params: params, caps: caps, driver: newSimulated(params)}
}

// Add registers an already built instance under its name.
func (m *Manager) Add(inst *Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[inst.Name] = inst
}

// Loaded returns the names of the instances built so far, sorted.
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.instances))
	for n := range m.instances {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CloseAll releases every built instance.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for name, inst := range m.instances {
		if err := inst.Close(); err != nil {
			errs = append(errs, err)
			logging.Error("Equipment", err, "Failed to close %s", name)
		}
	}
	m.instances = make(map[string]*Instance)
	return errors.Join(errs...)
}
