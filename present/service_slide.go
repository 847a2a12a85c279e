package present

import (
	"github.com/golang/glog"

	"github.com/bringyour/classroom/present/model"
)

type SlideService struct {
	service

	slide *model.SlideModel

	sheets *CollectionObserver[model.Sheet, NetworkService]
}

func newSlideService(context *serviceContext, wrap wrapFunction, slide *model.SlideModel) *SlideService {
	slideService := &SlideService{
		slide: slide,
	}
	slideService.init(context, wrap, slideService.information)

	slideService.watch(slide, slideService.sendInformation)

	if !slide.Remote() {
		state := slide.Snapshot()
		if state.IsSubmission() && context.submissionStatus.Status(state.SubmissionId) == model.SubmissionStatusUnknown {
			context.submissionStatus.SetStatus(state.SubmissionId, model.SubmissionStatusSending)
		}
		slideService.sendInformation()
	}

	slideService.sheets = NewCollectionObserver(
		slide.Sheets(),
		func(index int, sheet model.Sheet) (NetworkService, bool) {
			if !slideService.replicates(sheet) {
				return nil, false
			}
			builder, ok := sheetServiceBuilders[sheet.Kind()]
			if !ok {
				glog.V(1).Infof("[svc]no service for sheet kind %s\n", sheet.Kind())
				return nil, false
			}
			return builder(context, slideService.childWrap, sheet), true
		},
		func(index int, sheet model.Sheet, sheetService NetworkService) {
			sheetService.Close()
			if !slideService.isClosing() {
				slideService.sendChild(NewSheetRemovedMessage(sheet))
			}
		},
	)

	return slideService
}

// remote sheets are never rebroadcast.
// A student's ink on a slide that is not its own submission stays private.
func (self *SlideService) replicates(sheet model.Sheet) bool {
	if sheet.Remote() {
		return false
	}
	if self.context.participant.Role == model.RoleStudent && !self.slide.Snapshot().IsSubmission() {
		return false
	}
	return true
}

// submissions go to the submissions group only
func (self *SlideService) information() *Message {
	state := self.slide.Snapshot()
	var message *Message
	if state.IsSubmission() {
		message = NewStudentSubmissionSlideInformationMessage(self.slide)
		message.Group = GroupSubmissions
	} else {
		message = NewSlideInformationMessage(self.slide)
	}
	message.Tags = &MessageTags{
		SlideId: self.slide.Id(),
	}
	return message
}

func (self *SlideService) sendInformation() {
	self.build(self.information)
}

func (self *SlideService) ForceUpdate(group Group) {
	if !self.slide.Remote() {
		self.sendToGroup(self.information(), group)
	}
	for _, sheetService := range self.sheets.OrderedTags() {
		sheetService.ForceUpdate(group)
	}
}

func (self *SlideService) Close() {
	if self.close() {
		self.sheets.Close()
	}
}

// sheet kind -> service
var sheetServiceBuilders = map[model.Kind]func(*serviceContext, wrapFunction, model.Sheet) NetworkService{
	model.KindInkSheet: func(context *serviceContext, wrap wrapFunction, sheet model.Sheet) NetworkService {
		return newInkSheetService(context, wrap, sheet.(*model.InkSheetModel))
	},
	model.KindTextSheet: func(context *serviceContext, wrap wrapFunction, sheet model.Sheet) NetworkService {
		return newTextSheetService(context, wrap, sheet.(*model.TextSheetModel))
	},
	model.KindImageSheet: func(context *serviceContext, wrap wrapFunction, sheet model.Sheet) NetworkService {
		return newImageSheetService(context, wrap, sheet.(*model.ImageSheetModel))
	},
}

type InkSheetService struct {
	service

	inkSheet *model.InkSheetModel

	strokes *CollectionObserver[*model.Stroke, bool]
}

func newInkSheetService(context *serviceContext, wrap wrapFunction, inkSheet *model.InkSheetModel) *InkSheetService {
	inkSheetService := &InkSheetService{
		inkSheet: inkSheet,
	}
	inkSheetService.init(context, wrap, inkSheetService.information)

	inkSheetService.watch(inkSheet, inkSheetService.sendInformation)
	inkSheetService.sendInformation()

	// existing strokes are sent as they are set up and merge into one message
	inkSheetService.strokes = NewCollectionObserver(
		inkSheet.Strokes(),
		func(index int, stroke *model.Stroke) (bool, bool) {
			inkSheetService.buildChild(func() *Message {
				return NewInkSheetStrokesAddedMessage(inkSheet, stroke)
			})
			return true, true
		},
		func(index int, stroke *model.Stroke, tag bool) {
			if !inkSheetService.isClosing() {
				inkSheetService.buildChild(func() *Message {
					return NewInkSheetStrokesDeletingMessage(inkSheet, stroke.Id)
				})
			}
		},
	)

	inkSheetService.addUnsubscribe(inkSheet.OnRealTimePackets(func(strokeId model.Id, packets []int32) {
		inkSheetService.buildChild(func() *Message {
			return NewRealTimeInkPacketsMessage(inkSheet, strokeId, packets)
		})
	}))

	return inkSheetService
}

func (self *InkSheetService) information() *Message {
	return NewInkSheetInformationMessage(self.inkSheet)
}

func (self *InkSheetService) sendInformation() {
	self.build(self.information)
}

func (self *InkSheetService) buildChild(build func() *Message) {
	var message *Message
	if r := HandleError(func() {
		message = build()
	}); r != nil {
		treesDroppedTotal.WithLabelValues("build_error").Inc()
		return
	}
	self.sendChild(message)
}

func (self *InkSheetService) ForceUpdate(group Group) {
	self.sendToGroup(self.information(), group)
	strokes := self.inkSheet.Strokes().Members()
	if 0 < len(strokes) {
		self.sendWrapped(self.childWrap, NewInkSheetStrokesAddedMessage(self.inkSheet, strokes...), group)
	}
}

func (self *InkSheetService) Close() {
	if self.close() {
		self.strokes.Close()
	}
}

type TextSheetService struct {
	service

	textSheet *model.TextSheetModel
}

func newTextSheetService(context *serviceContext, wrap wrapFunction, textSheet *model.TextSheetModel) *TextSheetService {
	textSheetService := &TextSheetService{
		textSheet: textSheet,
	}
	textSheetService.init(context, wrap, textSheetService.information)

	textSheetService.watch(textSheet, textSheetService.sendInformation)
	textSheetService.sendInformation()

	return textSheetService
}

func (self *TextSheetService) information() *Message {
	return NewTextSheetInformationMessage(self.textSheet)
}

func (self *TextSheetService) sendInformation() {
	self.build(self.information)
}

func (self *TextSheetService) ForceUpdate(group Group) {
	self.sendToGroup(self.information(), group)
}

func (self *TextSheetService) Close() {
	self.close()
}

type ImageSheetService struct {
	service

	imageSheet *model.ImageSheetModel
}

func newImageSheetService(context *serviceContext, wrap wrapFunction, imageSheet *model.ImageSheetModel) *ImageSheetService {
	imageSheetService := &ImageSheetService{
		imageSheet: imageSheet,
	}
	imageSheetService.init(context, wrap, imageSheetService.information)

	imageSheetService.watch(imageSheet, imageSheetService.sendInformation)
	imageSheetService.sendInformation()

	return imageSheetService
}

// images over the size limit are not sent. Returns nil in that case.
func (self *ImageSheetService) information() *Message {
	message := NewImageSheetInformationMessage(self.imageSheet)
	body := message.Body.(*ImageSheetInformation)
	if maxImageByteCount := self.context.settings.MaxImageByteCount; 0 < maxImageByteCount && maxImageByteCount < model.ByteCount(len(body.Image)) {
		glog.Infof("[svc]image sheet %s is %d bytes, over the limit %d. Drop.\n", self.imageSheet.Id(), len(body.Image), maxImageByteCount)
		treesDroppedTotal.WithLabelValues("image_too_large").Inc()
		return nil
	}
	message.Tags = &MessageTags{
		BridgePriority: PriorityLowest,
	}
	return message
}

func (self *ImageSheetService) sendInformation() {
	self.build(self.information)
}

func (self *ImageSheetService) ForceUpdate(group Group) {
	if message := self.information(); message != nil {
		self.sendToGroup(message, group)
	}
}

func (self *ImageSheetService) Close() {
	self.close()
}
