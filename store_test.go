package main

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatStoreCreatesOnFirstAccess(t *testing.T) {
	store := newChatStore()

	history := store.history("u1")
	assert.Empty(t, history)
}

func TestChatStoreAppendPreservesOrder(t *testing.T) {
	store := newChatStore()

	store.append("u1", Turn{Type: turnTypeUser, Text: "hello"})
	store.append("u1", Turn{Type: turnTypeAssistant, Text: "hi"})
	store.append("u1", Turn{Type: turnTypeUser, Text: "how are you?"})

	history := store.history("u1")
	assert.Len(t, history, 3)
	assert.Equal(t, Turn{Type: turnTypeUser, Text: "hello"}, history[0])
	assert.Equal(t, Turn{Type: turnTypeAssistant, Text: "hi"}, history[1])
	assert.Equal(t, Turn{Type: turnTypeUser, Text: "how are you?"}, history[2])
}

func TestChatStoreHistoryReturnsCopy(t *testing.T) {
	store := newChatStore()
	store.append("u1", Turn{Type: turnTypeUser, Text: "hello"})

	history := store.history("u1")
	history[0].Text = "mutated"

	assert.Equal(t, "hello", store.history("u1")[0].Text)
}

func TestChatStoreIsolatesUsers(t *testing.T) {
	store := newChatStore()

	store.append("u1", Turn{Type: turnTypeUser, Text: "from u1"})
	store.append("u2", Turn{Type: turnTypeUser, Text: "from u2"})

	assert.Len(t, store.history("u1"), 1)
	assert.Len(t, store.history("u2"), 1)
	assert.Equal(t, "from u1", store.history("u1")[0].Text)
}

func TestChatStoreReset(t *testing.T) {
	store := newChatStore()
	store.append("u1", Turn{Type: turnTypeUser, Text: "hello"})

	store.reset("u1")

	assert.Empty(t, store.history("u1"))
}

func TestChatStoreConcurrentAppends(t *testing.T) {
	store := newChatStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.append("u1",
				Turn{Type: turnTypeUser, Text: fmt.Sprintf("msg %d", i)},
				Turn{Type: turnTypeAssistant, Text: fmt.Sprintf("reply %d", i)})
		}(i)
	}
	wg.Wait()

	history := store.history("u1")
	assert.Len(t, history, 100)

	// both turns of one exchange land adjacently
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, turnTypeUser, history[i].Type)
		assert.Equal(t, turnTypeAssistant, history[i+1].Type)
	}
}
