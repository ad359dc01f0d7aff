package usecase_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/denggit/crypto-trading/internal/usecase"
)

func TestKeyMutexesStablePerKey(t *testing.T) {
	locks := usecase.NewKeyMutexes()

	a1 := locks.Get("mintA")
	a2 := locks.Get("mintA")
	b := locks.Get("mintB")

	require.Same(t, a1, a2)
	require.NotSame(t, a1, b)
}

func TestKeyMutexesSerializeSameKey(t *testing.T) {
	locks := usecase.NewKeyMutexes()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := locks.Get("mintA")
			l.Lock()
			counter++
			l.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 100, counter)
}
