package diag

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestEnable_Idempotent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Enable()
		}()
	}
	wg.Wait()

	first := L()
	Enable()
	assert.Same(t, first, L())
}

func TestSetLevel(t *testing.T) {
	Enable()
	SetLevel(zapcore.DebugLevel)
	defer SetLevel(zapcore.InfoLevel)

	assert.True(t, L().Core().Enabled(zapcore.DebugLevel))
	assert.NotNil(t, Named("pool"))
}
