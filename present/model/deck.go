package model

const (
	DeckPropertyHumanName       = "HumanName"
	DeckPropertyDeckDisposition = "DeckDisposition"
	DeckPropertyBackgroundColor = "BackgroundColor"
)

type DeckDisposition int

const (
	DeckDispositionNormal DeckDisposition = iota
	// slides submitted by students
	DeckDispositionStudentSubmission
	DeckDispositionWhiteboard
)

func (self DeckDisposition) String() string {
	switch self {
	case DeckDispositionNormal:
		return "normal"
	case DeckDispositionStudentSubmission:
		return "student_submission"
	case DeckDispositionWhiteboard:
		return "whiteboard"
	default:
		return "unknown"
	}
}

type DeckState struct {
	HumanName       string
	DeckDisposition DeckDisposition
	BackgroundColor Color
}

type DeckModel struct {
	object

	state DeckState

	slides *Collection[*SlideModel]
}

func NewDeckModel(id Id, state DeckState) *DeckModel {
	deck := &DeckModel{
		state:  state,
		slides: NewCollection[*SlideModel](),
	}
	deck.init(id, KindDeck, deck)
	return deck
}

func (self *DeckModel) Snapshot() DeckState {
	return snapshotState(&self.object, &self.state)
}

func (self *DeckModel) Update(mutate func(*DeckState)) []string {
	return updateState(&self.object, &self.state, mutate, diffDeckState)
}

func (self *DeckModel) HumanName() string {
	return self.Snapshot().HumanName
}

func (self *DeckModel) SetHumanName(humanName string) {
	self.Update(func(state *DeckState) {
		state.HumanName = humanName
	})
}

func (self *DeckModel) DeckDisposition() DeckDisposition {
	return self.Snapshot().DeckDisposition
}

func (self *DeckModel) Slides() *Collection[*SlideModel] {
	return self.slides
}

func (self *DeckModel) SlideById(slideId Id) (*SlideModel, bool) {
	return self.slides.Find(func(slide *SlideModel) bool {
		return slide.Id() == slideId
	})
}

func diffDeckState(a DeckState, b DeckState) []string {
	properties := []string{}
	if a.HumanName != b.HumanName {
		properties = append(properties, DeckPropertyHumanName)
	}
	if a.DeckDisposition != b.DeckDisposition {
		properties = append(properties, DeckPropertyDeckDisposition)
	}
	if a.BackgroundColor != b.BackgroundColor {
		properties = append(properties, DeckPropertyBackgroundColor)
	}
	return properties
}
