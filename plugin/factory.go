package plugin

// Factory builds and manages instances of one plugin kind.
//
// Lifecycle:
//   - Setup: create an instance from its config section
//   - Destroy: release connections, files and goroutines
//   - Reload: apply a changed section in place, or fail so the instance is recreated
//   - CanDelete: report whether the instance may be destroyed now
//
// Implementations must be safe for concurrent use across instances.
type Factory interface {
	// Type returns the plugin type, e.g. "history".
	Type() Type

	// Name returns the factory name, e.g. "sqlite".
	Name() string

	Setup(v map[string]any) (Plugin, error)

	// Destroy releases the instance. The second parameter is reserved.
	Destroy(Plugin, any) error

	Reload(Plugin, map[string]any) error

	CanDelete(Plugin) bool
}
