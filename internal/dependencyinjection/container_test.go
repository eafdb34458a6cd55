package dependencyinjection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerSpy struct {
	closed int
	err    error
}

func (c *closerSpy) Close() error {
	c.closed++
	return c.err
}

func Test_SetInstance_GetInstance(t *testing.T) {
	ClearInstancesTestHelper(t)

	_, ok := GetInstance("unknown")
	assert.False(t, ok)

	SetInstance("answer", 42)
	instance, ok := GetInstance("answer")
	require.True(t, ok)
	assert.Equal(t, 42, instance)
}

func Test_DeleteAndCloseInstanceByKey(t *testing.T) {
	ClearInstancesTestHelper(t)
	ctx := context.Background()

	spy := &closerSpy{err: errors.New("already closed")}
	SetInstance("pool", spy)

	DeleteAndCloseInstanceByKey(ctx, "pool")
	DeleteAndCloseInstanceByKey(ctx, "pool")

	assert.Equal(t, 1, spy.closed)
	_, ok := GetInstance("pool")
	assert.False(t, ok)
}

func Test_DeleteAndCloseInstanceByValue(t *testing.T) {
	ClearInstancesTestHelper(t)

	spy := &closerSpy{}
	SetInstance("pool", spy)
	SetInstance("pool-alias", spy)
	SetInstance("other", "kept")

	DeleteAndCloseInstanceByValue(context.Background(), spy)

	assert.Equal(t, 2, spy.closed)
	_, ok := GetInstance("pool-alias")
	assert.False(t, ok)
	_, ok = GetInstance("other")
	assert.True(t, ok)
}

func Test_getOrCreate(t *testing.T) {
	ClearInstancesTestHelper(t)

	builds := 0
	build := func() (*closerSpy, error) {
		builds++
		return &closerSpy{}, nil
	}

	first, err := getOrCreate("spy", "closer spy", build)
	require.NoError(t, err)
	second, err := getOrCreate("spy", "closer spy", build)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, builds)

	_, err = getOrCreate("failing", "closer spy", func() (*closerSpy, error) { return nil, errors.New("boom") })
	assert.EqualError(t, err, "boom")
	_, stored := GetInstance("failing")
	assert.False(t, stored)

	_, err = getOrCreate("spy", "counter", func() (int, error) { return 1, nil })
	assert.EqualError(t, err, "trying to cast pre-existing counter for dependency injection")
}
