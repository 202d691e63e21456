package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedPassIDGenerator_ReturnsSameID(t *testing.T) {
	gen := NewFixedPassIDGenerator("pass-123")

	assert.Equal(t, "pass-123", gen.Generate())
	assert.Equal(t, "pass-123", gen.Generate())
}

func TestFixedPassIDGenerator_EmptyIDDefault(t *testing.T) {
	gen := NewFixedPassIDGenerator("")

	assert.Equal(t, "test-pass", gen.Generate())
}

func TestFixedPassIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewFixedPassIDGenerator("shared")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, "shared", gen.Generate())
			}
		}()
	}
	wg.Wait()
}
