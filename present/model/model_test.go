package model

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestIdString(t *testing.T) {
	id := NewId()
	parsedId, err := ParseId(id.String())
	assert.Equal(t, err, nil)
	assert.Equal(t, parsedId, id)

	idJson, err := json.Marshal(id)
	assert.Equal(t, err, nil)
	var unmarshalId Id
	err = json.Unmarshal(idJson, &unmarshalId)
	assert.Equal(t, err, nil)
	assert.Equal(t, unmarshalId, id)

	_, err = IdFromBytes([]byte{1, 2, 3})
	assert.NotEqual(t, err, nil)
}

func TestCollectionInsertIfAbsent(t *testing.T) {
	deck := NewDeckModel(NewId(), DeckState{HumanName: "d"})
	a := NewSlideModel(NewId(), SlideState{Title: "a"})
	b := NewSlideModel(NewId(), SlideState{Title: "b"})
	c := NewSlideModel(NewId(), SlideState{Title: "c"})

	added := []*SlideModel{}
	removed := []*SlideModel{}
	unsubscribe := func() func() {
		unsubAdded := deck.Slides().OnAdded(func(index int, slide *SlideModel) {
			added = append(added, slide)
		})
		unsubRemoved := deck.Slides().OnRemoved(func(index int, slide *SlideModel) {
			removed = append(removed, slide)
		})
		return func() {
			unsubAdded()
			unsubRemoved()
		}
	}()

	assert.Equal(t, deck.Slides().Add(a), true)
	assert.Equal(t, deck.Slides().Add(a), false)
	assert.Equal(t, deck.Slides().Add(c), true)
	assert.Equal(t, deck.Slides().Insert(1, b), true)
	assert.Equal(t, deck.Slides().Members(), []*SlideModel{a, b, c})
	assert.Equal(t, len(added), 3)

	assert.Equal(t, deck.Slides().Remove(b), true)
	assert.Equal(t, deck.Slides().Remove(b), false)
	assert.Equal(t, removed, []*SlideModel{b})

	unsubscribe()
	deck.Slides().Add(b)
	assert.Equal(t, len(added), 3)

	slide, ok := deck.SlideById(c.Id())
	assert.Equal(t, ok, true)
	assert.Equal(t, slide, c)
}

func TestCollectionChangeOrder(t *testing.T) {
	deck := NewDeckModel(NewId(), DeckState{HumanName: "d"})
	a := NewSlideModel(NewId(), SlideState{Title: "a"})
	b := NewSlideModel(NewId(), SlideState{Title: "b"})

	events := []string{}
	deck.Slides().OnAdded(func(index int, slide *SlideModel) {
		events = append(events, "+"+slide.Title())
		if slide == a {
			// delivered after this callback returns
			deck.Slides().Add(b)
			deck.Slides().Remove(a)
			events = append(events, "done")
		}
	})
	deck.Slides().OnRemoved(func(index int, slide *SlideModel) {
		events = append(events, "-"+slide.Title())
	})

	deck.Slides().Add(a)
	assert.Equal(t, events, []string{"+a", "done", "+b", "-a"})
	assert.Equal(t, deck.Slides().Members(), []*SlideModel{b})
}

func TestCollectionConcurrentChanges(t *testing.T) {
	deck := NewDeckModel(NewId(), DeckState{HumanName: "d"})
	slides := []*SlideModel{}
	for i := 0; i < 4; i += 1 {
		slides = append(slides, NewSlideModel(NewId(), SlideState{}))
	}

	var stateLock sync.Mutex
	present := map[*SlideModel]bool{}
	members, unsubscribe := deck.Slides().Observe(
		func(index int, slide *SlideModel) {
			stateLock.Lock()
			defer stateLock.Unlock()
			// an add is never reported twice in a row
			assert.Equal(t, present[slide], false)
			present[slide] = true
		},
		func(index int, slide *SlideModel) {
			stateLock.Lock()
			defer stateLock.Unlock()
			assert.Equal(t, present[slide], true)
			delete(present, slide)
		},
	)
	defer unsubscribe()
	assert.Equal(t, len(members), 0)

	var wg sync.WaitGroup
	for _, slide := range slides {
		for j := 0; j < 2; j += 1 {
			wg.Add(1)
			go func(slide *SlideModel) {
				defer wg.Done()
				for k := 0; k < 200; k += 1 {
					deck.Slides().Add(slide)
					deck.Slides().Remove(slide)
				}
			}(slide)
		}
	}
	wg.Wait()

	deck.Slides().Add(slides[0])

	stateLock.Lock()
	defer stateLock.Unlock()
	assert.Equal(t, present, map[*SlideModel]bool{slides[0]: true})
}

func TestPropertyChangedFiresOnDiffOnly(t *testing.T) {
	slide := NewSlideModel(NewId(), SlideState{Title: "Intro"})

	changes := []string{}
	slide.OnPropertyChanged("", func(object Object, property string) {
		assert.Equal(t, object.Id(), slide.Id())
		// the lock is released before callbacks run
		_ = slide.Title()
		changes = append(changes, property)
	})
	titleChanges := 0
	var countTitle PropertyChangeFunction = func(object Object, property string) {
		titleChanges += 1
	}
	slide.OnPropertyChanged(SlidePropertyTitle, countTitle)

	slide.SetTitle("Intro")
	assert.Equal(t, len(changes), 0)

	slide.SetTitle("Outline")
	slide.SetBounds(Rect(0, 0, 800, 600))
	assert.Equal(t, changes, []string{SlidePropertyTitle, SlidePropertyBounds})
	assert.Equal(t, titleChanges, 1)

	backgroundColor := ColorWhite
	slide.Update(func(state *SlideState) {
		state.BackgroundColor = &backgroundColor
	})
	assert.Equal(t, changes[len(changes)-1], SlidePropertyBackgroundColor)
	assert.Equal(t, *slide.Snapshot().BackgroundColor, ColorWhite)
}

func TestRemoteDisposition(t *testing.T) {
	sheet := NewInkSheetModel(NewId(), SheetState{})
	assert.Equal(t, sheet.Remote(), false)
	sheet.MarkRemote()
	assert.Equal(t, sheet.Remote(), true)
	assert.Equal(t, sheet.Disposition()&DispositionRemote, DispositionRemote)
	assert.Equal(t, sheet.Kind().IsSheet(), true)
}

func TestRealTimePackets(t *testing.T) {
	sheet := NewInkSheetModel(NewId(), SheetState{})
	strokeId := NewId()

	received := []int32{}
	unsubscribe := sheet.OnRealTimePackets(func(id Id, packets []int32) {
		assert.Equal(t, id, strokeId)
		received = append(received, packets...)
	})
	defer unsubscribe()

	sheet.AppendRealTimePackets(strokeId, []int32{1, 2})
	sheet.AppendRealTimePackets(strokeId, []int32{3})
	assert.Equal(t, sheet.RealTimePackets(strokeId), []int32{1, 2, 3})
	assert.Equal(t, received, []int32{1, 2, 3})

	sheet.EndRealTimeStroke(strokeId)
	assert.Equal(t, len(sheet.RealTimePackets(strokeId)), 0)
}

func TestQuickPollTally(t *testing.T) {
	poll := NewQuickPollModel(NewId(), QuickPollState{Style: QuickPollStyleABC})
	assert.Equal(t, poll.Snapshot().Choices, []string{"A", "B", "C"})

	a := NewId()
	b := NewId()
	poll.Results().Add(NewQuickPollResultModel(NewId(), QuickPollResultState{OwnerId: a, Choice: "A"}))
	poll.Results().Add(NewQuickPollResultModel(NewId(), QuickPollResultState{OwnerId: b, Choice: "C"}))

	assert.Equal(t, poll.Tally(), map[string]int{"A": 1, "B": 0, "C": 1})

	result, ok := poll.ResultByOwner(b)
	assert.Equal(t, ok, true)
	result.SetChoice("B")
	assert.Equal(t, poll.Tally(), map[string]int{"A": 1, "B": 1, "C": 0})
}

func TestSubmissionStatus(t *testing.T) {
	statuses := NewSubmissionStatusModel()
	submissionId := NewId()

	events := 0
	statuses.OnStatus(func(id Id, status SubmissionStatus) {
		events += 1
	})
	statuses.SetStatus(submissionId, SubmissionStatusSending)
	statuses.SetStatus(submissionId, SubmissionStatusSending)
	statuses.SetStatus(submissionId, SubmissionStatusReceived)

	assert.Equal(t, events, 2)
	assert.Equal(t, statuses.Status(submissionId), SubmissionStatusReceived)
}
