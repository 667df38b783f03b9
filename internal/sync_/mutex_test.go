package sync_

import (
	"errors"
	"sync"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestRWMutexed(t *testing.T) {
	assert := assert_.New(t)
	m := NewRWMutexed(map[string]int{})
	errStop := errors.New("stop")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.Locked(func(counts map[string]int) error {
				counts["n"]++
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = m.RLocked(func(counts map[string]int) error {
				_ = counts["n"]
				return nil
			})
		}()
	}
	wg.Wait()

	var n int
	assert.ErrorIs(m.RLocked(func(counts map[string]int) error {
		n = counts["n"]
		return errStop
	}), errStop)
	assert.Equal(50, n)
}
