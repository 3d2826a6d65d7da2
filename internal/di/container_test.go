package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter struct{ name string }

func TestResolve(t *testing.T) {
	c := NewContainer()
	c.Register(ServiceModel, &greeter{name: "models"})

	g, err := Resolve[*greeter](c, ServiceModel)
	require.NoError(t, err)
	assert.Equal(t, "models", g.name)

	_, err = Resolve[*greeter](c, ServiceGateway)
	assert.Error(t, err)

	_, err = Resolve[string](c, ServiceModel)
	assert.Error(t, err)

	assert.Panics(t, func() { MustResolve[*greeter](c, ServiceTask) })
}

func TestGetNamesSorted(t *testing.T) {
	c := NewContainer()
	c.Register(ServiceTask, 1)
	c.Register(ServiceCredential, 2)
	c.Register(ServiceModel, 3)

	assert.Equal(t, []string{ServiceCredential, ServiceModel, ServiceTask}, c.GetNames())
	assert.True(t, c.Has(ServiceModel))
	assert.False(t, c.Has(ServiceGateway))
}
