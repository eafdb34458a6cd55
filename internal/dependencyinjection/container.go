package dependencyinjection

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/stellar/go-stellar-sdk/support/log"
)

var (
	// dependenciesStore is the global store for all the service instances.
	dependenciesStore = make(map[string]interface{})
	// m guards dependenciesStore, the serve and scheduler goroutines share it.
	m sync.Mutex
)

// SetInstance adds a new service instance to the store.
func SetInstance(instanceName string, instance interface{}) {
	m.Lock()
	defer m.Unlock()
	dependenciesStore[instanceName] = instance
}

// GetInstance retrieves a service instance by name from the store.
func GetInstance(instanceName string) (interface{}, bool) {
	m.Lock()
	defer m.Unlock()
	instance, ok := dependenciesStore[instanceName]
	return instance, ok
}

// getOrCreate returns the instance stored under instanceName, or stores the one returned by build. Nothing is stored
// when build fails. description names the instance in the error returned when the stored value has another type.
func getOrCreate[T any](instanceName, description string, build func() (T, error)) (T, error) {
	var zero T
	if instance, ok := GetInstance(instanceName); ok {
		if typed, ok := instance.(T); ok {
			return typed, nil
		}
		return zero, fmt.Errorf("trying to cast pre-existing %s for dependency injection", description)
	}

	created, err := build()
	if err != nil {
		return zero, err
	}
	SetInstance(instanceName, created)
	return created, nil
}

// DeleteAndCloseInstanceByKey removes a service instance from the store by key, closing it when it is an io.Closer.
func DeleteAndCloseInstanceByKey(ctx context.Context, instanceName string) {
	m.Lock()
	defer m.Unlock()

	instanceToDelete, ok := dependenciesStore[instanceName]
	if !ok {
		return
	}
	delete(dependenciesStore, instanceName)
	closeInstance(ctx, instanceName, instanceToDelete)
}

// DeleteAndCloseInstanceByValue removes every key holding instance, closing it when it is an io.Closer.
func DeleteAndCloseInstanceByValue(ctx context.Context, instance interface{}) {
	m.Lock()
	defer m.Unlock()

	keysToDelete := []string{}
	for k, v := range dependenciesStore {
		if v == instance {
			keysToDelete = append(keysToDelete, k)
		}
	}

	for _, k := range keysToDelete {
		instanceToDelete := dependenciesStore[k]
		delete(dependenciesStore, k)
		closeInstance(ctx, k, instanceToDelete)
	}
}

func closeInstance(ctx context.Context, instanceName string, instance interface{}) {
	closeableInstance, ok := instance.(io.Closer)
	if !ok {
		return
	}
	if err := closeableInstance.Close(); err != nil {
		log.Ctx(ctx).Errorf("error closing instance %s: %v", instanceName, err)
	}
}
