package config

import "sync"

var (
	_instance     ConfigManager
	_instanceOnce sync.Once
	_instanceMu   sync.Mutex
)

// GetInstance returns the process wide configuration manager.
func GetInstance() ConfigManager {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()

	_instanceOnce.Do(func() {
		if _instance == nil {
			_instance = NewConfigManager()
		}
	})
	return _instance
}

// SetInstanceForTesting replaces the process wide manager.
func SetInstanceForTesting(cm ConfigManager) {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()

	_instance = cm
	_instanceOnce = sync.Once{}
}

// ResetInstance drops the process wide manager; the next GetInstance creates a new one.
func ResetInstance() {
	SetInstanceForTesting(nil)
}
