package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialIDs_Increments(t *testing.T) {
	gen := NewSequentialIDs("photo")

	assert.Equal(t, "photo-0001", gen.Generate())
	assert.Equal(t, "photo-0002", gen.Generate())
	assert.Equal(t, "photo-0003", gen.Generate())
}

func TestSequentialIDs_EmptyPrefixDefault(t *testing.T) {
	gen := NewSequentialIDs("")
	assert.Equal(t, "test-0001", gen.Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDs("x")

	done := make(chan []string)
	for i := 0; i < 10; i++ {
		go func() {
			var ids []string
			for j := 0; j < 100; j++ {
				ids = append(ids, gen.Generate())
			}
			done <- ids
		}()
	}

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		for _, id := range <-done {
			require.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 1000)
}
