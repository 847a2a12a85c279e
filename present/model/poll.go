package model

import (
	"golang.org/x/exp/slices"
)

const (
	QuickPollPropertyStyle   = "Style"
	QuickPollPropertyChoices = "Choices"
	QuickPollPropertyEnabled = "Enabled"

	QuickPollResultPropertyChoice = "Choice"
)

type QuickPollStyle int

const (
	QuickPollStyleYesNo QuickPollStyle = iota
	QuickPollStyleYesNoBoth
	QuickPollStyleABC
	QuickPollStyleABCD
	QuickPollStyleCustom
)

func (self QuickPollStyle) DefaultChoices() []string {
	switch self {
	case QuickPollStyleYesNo:
		return []string{"Yes", "No"}
	case QuickPollStyleYesNoBoth:
		return []string{"Yes", "No", "Both"}
	case QuickPollStyleABC:
		return []string{"A", "B", "C"}
	case QuickPollStyleABCD:
		return []string{"A", "B", "C", "D"}
	default:
		return []string{}
	}
}

type QuickPollState struct {
	Style QuickPollStyle
	// replaced, never mutated in place
	Choices []string
	Enabled bool
	// the slide the poll was started from
	SlideId Id
}

type QuickPollModel struct {
	object

	state QuickPollState

	results *Collection[*QuickPollResultModel]
}

func NewQuickPollModel(id Id, state QuickPollState) *QuickPollModel {
	if state.Choices == nil {
		state.Choices = state.Style.DefaultChoices()
	}
	quickPoll := &QuickPollModel{
		state:   state,
		results: NewCollection[*QuickPollResultModel](),
	}
	quickPoll.init(id, KindQuickPoll, quickPoll)
	return quickPoll
}

func (self *QuickPollModel) Snapshot() QuickPollState {
	state := snapshotState(&self.object, &self.state)
	state.Choices = slices.Clone(state.Choices)
	return state
}

func (self *QuickPollModel) Update(mutate func(*QuickPollState)) []string {
	return updateState(&self.object, &self.state, mutate, diffQuickPollState)
}

func (self *QuickPollModel) Results() *Collection[*QuickPollResultModel] {
	return self.results
}

func (self *QuickPollModel) ResultByOwner(ownerId Id) (*QuickPollResultModel, bool) {
	return self.results.Find(func(result *QuickPollResultModel) bool {
		return result.Snapshot().OwnerId == ownerId
	})
}

// choice -> count
func (self *QuickPollModel) Tally() map[string]int {
	tally := map[string]int{}
	for _, choice := range self.Snapshot().Choices {
		tally[choice] = 0
	}
	for _, result := range self.results.Members() {
		tally[result.Snapshot().Choice] += 1
	}
	return tally
}

func diffQuickPollState(a QuickPollState, b QuickPollState) []string {
	properties := []string{}
	if a.Style != b.Style {
		properties = append(properties, QuickPollPropertyStyle)
	}
	if !slices.Equal(a.Choices, b.Choices) {
		properties = append(properties, QuickPollPropertyChoices)
	}
	if a.Enabled != b.Enabled || a.SlideId != b.SlideId {
		properties = append(properties, QuickPollPropertyEnabled)
	}
	return properties
}

type QuickPollResultState struct {
	OwnerId Id
	Choice  string
}

// one participant's vote
type QuickPollResultModel struct {
	object

	state QuickPollResultState
}

func NewQuickPollResultModel(id Id, state QuickPollResultState) *QuickPollResultModel {
	result := &QuickPollResultModel{
		state: state,
	}
	result.init(id, KindQuickPollResult, result)
	return result
}

func (self *QuickPollResultModel) Snapshot() QuickPollResultState {
	return snapshotState(&self.object, &self.state)
}

func (self *QuickPollResultModel) Update(mutate func(*QuickPollResultState)) []string {
	return updateState(&self.object, &self.state, mutate, diffQuickPollResultState)
}

func (self *QuickPollResultModel) SetChoice(choice string) {
	self.Update(func(state *QuickPollResultState) {
		state.Choice = choice
	})
}

func diffQuickPollResultState(a QuickPollResultState, b QuickPollResultState) []string {
	if a != b {
		return []string{QuickPollResultPropertyChoice}
	}
	return []string{}
}
