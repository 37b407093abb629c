package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[LayoutKind]Layout)
	registryMu sync.RWMutex
)

// Register adds a list layout to the registry.
// Panics if a layout with the same kind is already registered.
func Register(layout Layout) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[layout.Kind]; exists {
		panic(fmt.Sprintf("layout already registered: %s", layout.Kind))
	}

	// Index fields by column for lookups during parsing
	layout.byColumn = make(map[int]FieldSpec, len(layout.Fields))
	for _, spec := range layout.Fields {
		if _, dup := layout.byColumn[spec.Column]; dup {
			panic(fmt.Sprintf("layout %s maps column %d twice", layout.Kind, spec.Column))
		}
		layout.byColumn[spec.Column] = spec
	}

	registry[layout.Kind] = layout
}

// GetLayout returns a layout by kind.
// Returns false if not found.
func GetLayout(kind LayoutKind) (Layout, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	layout, ok := registry[kind]
	return layout, ok
}

// mustLayout returns a registered layout or panics.
func mustLayout(kind LayoutKind) Layout {
	layout, ok := GetLayout(kind)
	if !ok {
		panic(fmt.Sprintf("layout not registered: %s", kind))
	}
	return layout
}

// Layouts returns all registered layouts sorted by kind.
func Layouts() []Layout {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Layout, 0, len(registry))
	for _, layout := range registry {
		result = append(result, layout)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Kind < result[j].Kind
	})

	return result
}

// LayoutCount returns the number of registered layouts.
func LayoutCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}
