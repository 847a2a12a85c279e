package model

import (
	"bytes"
	"sync"

	"golang.org/x/exp/slices"
)

const (
	SheetPropertyBounds           = "Bounds"
	SheetPropertySheetDisposition = "SheetDisposition"
	TextSheetPropertyText         = "Text"
	TextSheetPropertyColor        = "Color"
	TextSheetPropertyFontSize     = "FontSize"
	ImageSheetPropertyImage       = "Image"
)

// who authored a sheet. Sheets are layered on a slide.
type SheetDisposition int

const (
	SheetDispositionInstructor SheetDisposition = iota
	SheetDispositionStudent
	SheetDispositionPublic
	// content of the slide itself, e.g. the rendered slide image
	SheetDispositionBackground
)

type SheetState struct {
	Bounds           Rectangle
	SheetDisposition SheetDisposition
}

type Sheet interface {
	Object
	SheetSnapshot() SheetState
	UpdateSheet(mutate func(*SheetState)) []string
}

type sheet struct {
	object

	sheetState SheetState
}

func (self *sheet) SheetSnapshot() SheetState {
	return snapshotState(&self.object, &self.sheetState)
}

func (self *sheet) UpdateSheet(mutate func(*SheetState)) []string {
	return updateState(&self.object, &self.sheetState, mutate, diffSheetState)
}

func diffSheetState(a SheetState, b SheetState) []string {
	properties := []string{}
	if a.Bounds != b.Bounds {
		properties = append(properties, SheetPropertyBounds)
	}
	if a.SheetDisposition != b.SheetDisposition {
		properties = append(properties, SheetPropertySheetDisposition)
	}
	return properties
}

// comparable by pointer
type Stroke struct {
	Id Id
	// the saved ink serialization of the stroke
	Ink []byte
}

func NewStroke(ink []byte) *Stroke {
	return &Stroke{
		Id:  NewId(),
		Ink: ink,
	}
}

type RealTimePacketsFunction = func(strokeId Id, packets []int32)

type InkSheetModel struct {
	sheet

	strokes *Collection[*Stroke]

	realTimeLock    sync.Mutex
	realTimePackets map[Id][]int32

	realTimeCallbacks *CallbackList[RealTimePacketsFunction]
}

func NewInkSheetModel(id Id, state SheetState) *InkSheetModel {
	inkSheet := &InkSheetModel{
		strokes:           NewCollection[*Stroke](),
		realTimePackets:   map[Id][]int32{},
		realTimeCallbacks: NewCallbackList[RealTimePacketsFunction](),
	}
	inkSheet.sheetState = state
	inkSheet.init(id, KindInkSheet, inkSheet)
	return inkSheet
}

func (self *InkSheetModel) Strokes() *Collection[*Stroke] {
	return self.strokes
}

func (self *InkSheetModel) StrokeById(strokeId Id) (*Stroke, bool) {
	return self.strokes.Find(func(stroke *Stroke) bool {
		return stroke.Id == strokeId
	})
}

// live pen packets for a stroke still being drawn
func (self *InkSheetModel) AppendRealTimePackets(strokeId Id, packets []int32) {
	func() {
		self.realTimeLock.Lock()
		defer self.realTimeLock.Unlock()

		self.realTimePackets[strokeId] = append(self.realTimePackets[strokeId], packets...)
	}()
	for _, callback := range self.realTimeCallbacks.Get() {
		callback(strokeId, packets)
	}
}

func (self *InkSheetModel) RealTimePackets(strokeId Id) []int32 {
	self.realTimeLock.Lock()
	defer self.realTimeLock.Unlock()

	return slices.Clone(self.realTimePackets[strokeId])
}

// drops the live packets once the stroke is committed to `Strokes`
func (self *InkSheetModel) EndRealTimeStroke(strokeId Id) {
	self.realTimeLock.Lock()
	defer self.realTimeLock.Unlock()

	delete(self.realTimePackets, strokeId)
}

func (self *InkSheetModel) OnRealTimePackets(callback RealTimePacketsFunction) func() {
	callbackId := self.realTimeCallbacks.Add(callback)
	return func() {
		self.realTimeCallbacks.Remove(callbackId)
	}
}

type TextSheetState struct {
	Text     string
	Color    Color
	FontSize float32
}

type TextSheetModel struct {
	sheet

	state TextSheetState
}

func NewTextSheetModel(id Id, sheetState SheetState, state TextSheetState) *TextSheetModel {
	textSheet := &TextSheetModel{
		state: state,
	}
	textSheet.sheetState = sheetState
	textSheet.init(id, KindTextSheet, textSheet)
	return textSheet
}

func (self *TextSheetModel) Snapshot() TextSheetState {
	return snapshotState(&self.object, &self.state)
}

func (self *TextSheetModel) Update(mutate func(*TextSheetState)) []string {
	return updateState(&self.object, &self.state, mutate, diffTextSheetState)
}

func (self *TextSheetModel) SetText(text string) {
	self.Update(func(state *TextSheetState) {
		state.Text = text
	})
}

func diffTextSheetState(a TextSheetState, b TextSheetState) []string {
	properties := []string{}
	if a.Text != b.Text {
		properties = append(properties, TextSheetPropertyText)
	}
	if a.Color != b.Color {
		properties = append(properties, TextSheetPropertyColor)
	}
	if a.FontSize != b.FontSize {
		properties = append(properties, TextSheetPropertyFontSize)
	}
	return properties
}

type ImageSheetState struct {
	MimeType string
	// the image bytes are replaced, never mutated in place
	Image []byte
}

type ImageSheetModel struct {
	sheet

	state ImageSheetState
}

func NewImageSheetModel(id Id, sheetState SheetState, state ImageSheetState) *ImageSheetModel {
	imageSheet := &ImageSheetModel{
		state: state,
	}
	imageSheet.sheetState = sheetState
	imageSheet.init(id, KindImageSheet, imageSheet)
	return imageSheet
}

func (self *ImageSheetModel) Snapshot() ImageSheetState {
	return snapshotState(&self.object, &self.state)
}

func (self *ImageSheetModel) Update(mutate func(*ImageSheetState)) []string {
	return updateState(&self.object, &self.state, mutate, diffImageSheetState)
}

func (self *ImageSheetModel) SetImage(mimeType string, image []byte) {
	self.Update(func(state *ImageSheetState) {
		state.MimeType = mimeType
		state.Image = image
	})
}

func diffImageSheetState(a ImageSheetState, b ImageSheetState) []string {
	if a.MimeType != b.MimeType || !bytes.Equal(a.Image, b.Image) {
		return []string{ImageSheetPropertyImage}
	}
	return []string{}
}
