package functions

import (
	"math"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// None is the name configs use for "no function".
const None = "none"

var (
	ErrFunctionExists   = errors.New("function already registered")
	ErrFunctionNotFound = errors.New("function not found")
	ErrWrongKind        = errors.New("function registered under a different kind")
	ErrNoFunction       = errors.New("no function configured")
)

type Kind int

const (
	KindActivation Kind = iota
	KindObjective
	KindSelector
)

func (k Kind) String() string {
	switch k {
	case KindActivation:
		return "activation"
	case KindObjective:
		return "objective"
	case KindSelector:
		return "selector"
	default:
		return "unknown"
	}
}

var registry = struct {
	mu          sync.RWMutex
	kinds       map[string]Kind
	activations map[string]Activation
	objectives  map[string]Objective
	selectors   map[string]Selector
}{}

func init() {
	initializeBuiltIns()
}

func initializeBuiltIns() {
	registry.mu.Lock()
	registry.kinds = make(map[string]Kind)
	registry.activations = make(map[string]Activation)
	registry.objectives = make(map[string]Objective)
	registry.selectors = make(map[string]Selector)
	registry.mu.Unlock()

	MustRegisterActivation(elementwise("sigmoid", sigmoid, dSigmoid))
	MustRegisterActivation(elementwise("relu", relu, dRelu))
	MustRegisterActivation(TanhScaled(1))
	MustRegisterActivation(elementwise("linear",
		func(x float64) float64 { return x },
		func(float64) float64 { return 1 }))
	MustRegisterActivation(elementwise("log", math.Log,
		func(x float64) float64 { return 1 / x }))
	MustRegisterActivation(Activation{Name: "softmax", F: softmax, DF: dSoftmax})

	MustRegisterObjective(Objective{Name: "square_diff", F: squareDiff, DF: dSquareDiff})
	MustRegisterObjective(Objective{Name: "huber", F: huber, DF: dHuber})
	MustRegisterObjective(Objective{Name: "cross_entropy", F: crossEntropy, DF: dCrossEntropy})
	MustRegisterObjective(Objective{Name: "cross_entropy_1d", F: crossEntropy1D, DF: dCrossEntropy1D})

	MustRegisterSelector(Selector{Name: "softmax_i", F: softmaxI, DF: dSoftmaxI})
	MustRegisterSelector(Selector{Name: "log_policy", F: logPolicy, DF: dLogPolicy})
}

func claim(name string, kind Kind) error {
	if name == "" {
		return errors.New("function name is required")
	}
	if name == None {
		return errors.Errorf("%q is reserved", None)
	}
	if _, exists := registry.kinds[name]; exists {
		return errors.Wrap(ErrFunctionExists, name)
	}
	registry.kinds[name] = kind
	return nil
}

func RegisterActivation(a Activation) error {
	if a.F == nil || a.DF == nil {
		return errors.Errorf("activation %s: function and derivative are required", a.Name)
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if err := claim(a.Name, KindActivation); err != nil {
		return err
	}
	registry.activations[a.Name] = a
	return nil
}

func RegisterObjective(o Objective) error {
	if o.F == nil || o.DF == nil {
		return errors.Errorf("objective %s: function and derivative are required", o.Name)
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if err := claim(o.Name, KindObjective); err != nil {
		return err
	}
	registry.objectives[o.Name] = o
	return nil
}

func RegisterSelector(s Selector) error {
	if s.F == nil || s.DF == nil {
		return errors.Errorf("selector %s: function and derivative are required", s.Name)
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if err := claim(s.Name, KindSelector); err != nil {
		return err
	}
	registry.selectors[s.Name] = s
	return nil
}

func MustRegisterActivation(a Activation) {
	if err := RegisterActivation(a); err != nil {
		panic(err)
	}
}

func MustRegisterObjective(o Objective) {
	if err := RegisterObjective(o); err != nil {
		panic(err)
	}
}

func MustRegisterSelector(s Selector) {
	if err := RegisterSelector(s); err != nil {
		panic(err)
	}
}

// lookup checks that name exists and is of the wanted kind. The caller holds the read
// lock.
func lookup(name string, want Kind) error {
	if name == None {
		return ErrNoFunction
	}
	kind, ok := registry.kinds[name]
	if !ok {
		return errors.Wrap(ErrFunctionNotFound, name)
	}
	if kind != want {
		return errors.Wrapf(ErrWrongKind, "%s is a %s, not a %s", name, kind, want)
	}
	return nil
}

func GetActivation(name string) (Activation, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	if err := lookup(name, KindActivation); err != nil {
		return Activation{}, err
	}
	return registry.activations[name], nil
}

func GetObjective(name string) (Objective, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	if err := lookup(name, KindObjective); err != nil {
		return Objective{}, err
	}
	return registry.objectives[name], nil
}

func GetSelector(name string) (Selector, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	if err := lookup(name, KindSelector); err != nil {
		return Selector{}, err
	}
	return registry.selectors[name], nil
}

// MustActivation is GetActivation for built-in names.
func MustActivation(name string) Activation {
	a, err := GetActivation(name)
	if err != nil {
		panic(err)
	}
	return a
}

// MustObjective is GetObjective for built-in names.
func MustObjective(name string) Objective {
	o, err := GetObjective(name)
	if err != nil {
		panic(err)
	}
	return o
}

// KindOf reports the kind a name is registered under.
func KindOf(name string) (Kind, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	kind, ok := registry.kinds[name]
	if !ok {
		return 0, errors.Wrap(ErrFunctionNotFound, name)
	}
	return kind, nil
}

// Names lists every registered function, sorted.
func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.kinds))
	for name := range registry.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Jacobian evaluates the named activation's derivative at x.
func Jacobian(name string, x []float64) (*mat.Dense, error) {
	a, err := GetActivation(name)
	if err != nil {
		return nil, err
	}
	return a.DF(x), nil
}

func resetRegistryForTests() {
	initializeBuiltIns()
}
