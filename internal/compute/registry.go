package compute

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry = make(map[string]Kind)
	mu       sync.RWMutex
)

// Register makes k available by name. Kinds register from init functions;
// registering a name twice panics.
func Register(k Kind) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[k.Name()]; exists {
		panic(fmt.Sprintf("compute kind %s already registered", k.Name()))
	}
	registry[k.Name()] = k
}

func List() []Kind {
	mu.RLock()
	defer mu.RUnlock()
	kinds := make([]Kind, 0, len(registry))
	for _, k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return kinds[i].Name() < kinds[j].Name()
	})
	return kinds
}

func Resolve(name string) (Kind, error) {
	mu.RLock()
	defer mu.RUnlock()
	k, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("compute kind not found: %s", name)
	}
	return k, nil
}
