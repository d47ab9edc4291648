package config

import (
	"sync"
	"testing"
)

func TestSingletonInstance(t *testing.T) {
	ResetInstance()
	defer ResetInstance()

	instance1 := GetInstance()
	if instance1 == nil {
		t.Fatal("GetInstance() should not return nil")
	}

	var wg sync.WaitGroup
	instances := make([]ConfigManager, 50)
	for i := range instances {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			instances[index] = GetInstance()
		}(i)
	}
	wg.Wait()

	for i, instance := range instances {
		if instance != instance1 {
			t.Errorf("instance at index %d differs from the first instance", i)
		}
	}
}

func TestSetInstanceForTesting(t *testing.T) {
	ResetInstance()
	defer ResetInstance()

	replacement := NewConfigManager()
	SetInstanceForTesting(replacement)
	if GetInstance() != replacement {
		t.Error("GetInstance() should return the testing instance")
	}

	ResetInstance()
	if GetInstance() == replacement {
		t.Error("GetInstance() should return a new instance after reset")
	}
}
