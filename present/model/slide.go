package model

const (
	SlidePropertyTitle           = "Title"
	SlidePropertyBounds          = "Bounds"
	SlidePropertyZoom            = "Zoom"
	SlidePropertyBackgroundColor = "BackgroundColor"
	SlidePropertySubmission      = "Submission"
)

type SlideState struct {
	Title  string
	Bounds Rectangle
	Zoom   float32
	// nil inherits the deck background
	BackgroundColor *Color

	// set on slides that a student submitted
	SubmissionId Id
	OwnerId      Id
}

func (self SlideState) IsSubmission() bool {
	return !self.SubmissionId.IsZero()
}

type SlideModel struct {
	object

	state SlideState

	sheets *Collection[Sheet]
}

func NewSlideModel(id Id, state SlideState) *SlideModel {
	slide := &SlideModel{
		state:  state,
		sheets: NewCollection[Sheet](),
	}
	slide.init(id, KindSlide, slide)
	return slide
}

func (self *SlideModel) Snapshot() SlideState {
	state := snapshotState(&self.object, &self.state)
	if state.BackgroundColor != nil {
		backgroundColor := *state.BackgroundColor
		state.BackgroundColor = &backgroundColor
	}
	return state
}

func (self *SlideModel) Update(mutate func(*SlideState)) []string {
	return updateState(&self.object, &self.state, mutate, diffSlideState)
}

func (self *SlideModel) Title() string {
	return self.Snapshot().Title
}

func (self *SlideModel) SetTitle(title string) {
	self.Update(func(state *SlideState) {
		state.Title = title
	})
}

func (self *SlideModel) Bounds() Rectangle {
	return self.Snapshot().Bounds
}

func (self *SlideModel) SetBounds(bounds Rectangle) {
	self.Update(func(state *SlideState) {
		state.Bounds = bounds
	})
}

func (self *SlideModel) Sheets() *Collection[Sheet] {
	return self.sheets
}

func (self *SlideModel) SheetById(sheetId Id) (Sheet, bool) {
	return self.sheets.Find(func(sheet Sheet) bool {
		return sheet.Id() == sheetId
	})
}

func diffSlideState(a SlideState, b SlideState) []string {
	properties := []string{}
	if a.Title != b.Title {
		properties = append(properties, SlidePropertyTitle)
	}
	if a.Bounds != b.Bounds {
		properties = append(properties, SlidePropertyBounds)
	}
	if a.Zoom != b.Zoom {
		properties = append(properties, SlidePropertyZoom)
	}
	if !colorEqual(a.BackgroundColor, b.BackgroundColor) {
		properties = append(properties, SlidePropertyBackgroundColor)
	}
	if a.SubmissionId != b.SubmissionId || a.OwnerId != b.OwnerId {
		properties = append(properties, SlidePropertySubmission)
	}
	return properties
}
