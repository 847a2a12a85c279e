package present

import (
	"sync"

	"github.com/golang/glog"

	"github.com/bringyour/classroom/present/model"
)

// maps ids to the one live local instance of each object.
// Shared by the send and receive sides of one participant.
type LocalObjectTable struct {
	stateLock sync.Mutex
	objects   map[model.Id]model.Object
}

func NewLocalObjectTable() *LocalObjectTable {
	return &LocalObjectTable{
		objects: map[model.Id]model.Object{},
	}
}

// binds the object to its id if the id is unbound.
// Returns the bound object, which is the existing binding if there was one.
func (self *LocalObjectTable) Bind(object model.Object) (model.Object, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if existing, ok := self.objects[object.Id()]; ok {
		if existing != object {
			glog.V(2).Infof("[table]ignore duplicate binding %s %s\n", object.Kind(), object.Id())
		}
		return existing, false
	}
	self.objects[object.Id()] = object
	return object, true
}

// registers a locally created object
func (self *LocalObjectTable) AddLocalRef(object model.Object) {
	self.Bind(object)
}

func (self *LocalObjectTable) Lookup(id model.Id) (model.Object, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	object, ok := self.objects[id]
	return object, ok
}

func (self *LocalObjectTable) Len() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return len(self.objects)
}

// id -> kind
func (self *LocalObjectTable) Kinds() map[model.Id]model.Kind {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	kinds := map[model.Id]model.Kind{}
	for id, object := range self.objects {
		kinds[id] = object.Kind()
	}
	return kinds
}

// looks up an id as a concrete object type.
// A binding of the wrong type is logged and treated as unresolved.
func LookupAs[T model.Object](table *LocalObjectTable, id model.Id) (T, bool) {
	var empty T
	object, ok := table.Lookup(id)
	if !ok {
		return empty, false
	}
	t, ok := object.(T)
	if !ok {
		glog.Infof("[table]type mismatch for %s: bound %s, expected %T\n", id, object.Kind(), empty)
		return empty, false
	}
	return t, true
}
