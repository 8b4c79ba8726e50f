package clustering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobManager_Lifecycle(t *testing.T) {
	jm := NewJobManager()
	ctx, cancel := context.WithCancel(context.Background())

	assert.True(t, jm.Register("2024-3", cancel))
	assert.False(t, jm.Register("2024-3", func() {}))
	assert.True(t, jm.IsRunning("2024-3"))

	assert.True(t, jm.Cancel("2024-3"))
	assert.Error(t, ctx.Err())
	assert.False(t, jm.IsRunning("2024-3"))
	assert.False(t, jm.Cancel("2024-3"))
}

func TestJobManager_CancelAll(t *testing.T) {
	jm := NewJobManager()
	ctxA, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	jm.Register("2024-2", cancelA)
	jm.Register("2024-3", cancelB)

	assert.Equal(t, 2, jm.CancelAll())
	assert.Error(t, ctxA.Err())
	assert.Error(t, ctxB.Err())

	jm.Unregister("2024-2")
	assert.False(t, jm.IsRunning("2024-2"))
}
