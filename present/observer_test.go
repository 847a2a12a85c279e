package present

import (
	"sync"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/bringyour/classroom/present/model"
)

func TestCollectionObserver(t *testing.T) {
	collection := model.NewCollection[string]()
	collection.Add("a")
	collection.Add("skip")

	setUps := []string{}
	tearDowns := []string{}
	observer := NewCollectionObserver(
		collection,
		func(index int, member string) (int, bool) {
			setUps = append(setUps, member)
			if member == "skip" {
				return 0, false
			}
			return len(member), true
		},
		func(index int, member string, tag int) {
			tearDowns = append(tearDowns, member)
		},
	)

	// existing members are set up from the snapshot
	assert.Equal(t, setUps, []string{"a", "skip"})
	assert.Equal(t, observer.Tags(), map[string]int{"a": 1})

	collection.Add("bbb")
	collection.Insert(0, "cc")
	assert.Equal(t, observer.OrderedTags(), []int{2, 1, 3})

	// an untracked member is never torn down
	collection.Remove("skip")
	collection.Remove("a")
	assert.Equal(t, tearDowns, []string{"a"})

	observer.Close()
	assert.Equal(t, len(tearDowns), 3)
	assert.Equal(t, len(observer.Tags()), 0)

	// no events after close
	collection.Add("d")
	collection.Remove("bbb")
	assert.Equal(t, len(setUps), 4)
	assert.Equal(t, len(tearDowns), 3)

	observer.Close()
	assert.Equal(t, len(tearDowns), 3)
}

func TestCollectionObserverSetUpPanic(t *testing.T) {
	collection := model.NewCollection[int]()
	observer := NewCollectionObserver(
		collection,
		func(index int, member int) (int, bool) {
			if member < 0 {
				panic("negative")
			}
			return member, true
		},
		func(index int, member int, tag int) {
		},
	)
	defer observer.Close()

	collection.Add(-1)
	collection.Add(1)
	assert.Equal(t, observer.OrderedTags(), []int{1})
}

func TestCollectionObserverConcurrentChanges(t *testing.T) {
	collection := model.NewCollection[int]()

	var stateLock sync.Mutex
	live := map[int]int{}
	observer := NewCollectionObserver(
		collection,
		func(index int, member int) (int, bool) {
			stateLock.Lock()
			defer stateLock.Unlock()
			live[member] += 1
			return member, true
		},
		func(index int, member int, tag int) {
			stateLock.Lock()
			defer stateLock.Unlock()
			live[member] -= 1
		},
	)
	defer observer.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i += 1 {
		wg.Add(1)
		go func(member int) {
			defer wg.Done()
			for k := 0; k < 200; k += 1 {
				collection.Add(member % 2)
				collection.Remove(member % 2)
			}
		}(i)
	}
	wg.Wait()
	collection.Add(1)

	// the tags track the final membership exactly
	assert.Equal(t, observer.Tags(), map[int]int{1: 1})
	stateLock.Lock()
	defer stateLock.Unlock()
	assert.Equal(t, live, map[int]int{0: 0, 1: 1})
}
