package discovery

import "reflect"

// Info is a precomputed handler table for one subscriber type, normally
// produced by a code generator.
type Info interface {
	// SubscriberType is the type the table describes.
	SubscriberType() reflect.Type
	// Descriptors are the handlers declared at this level, in order.
	Descriptors() []*Descriptor
	// Super links to the table of the next embedded level, or nil.
	Super() Info
}

// Index looks up precomputed tables. Lookup returns nil for unknown types.
type Index interface {
	Lookup(t reflect.Type) Info
}

// MapIndex is an Index backed by a map, the usual shape of generated indexes.
type MapIndex map[reflect.Type]Info

// Lookup implements Index.
func (m MapIndex) Lookup(t reflect.Type) Info {
	return m[t]
}

// staticInfo is the Info implementation returned by NewInfo.
type staticInfo struct {
	subscriberType reflect.Type
	super          Info
	descriptors    []*Descriptor
}

// NewInfo builds a table for subscriberType. super may be nil.
func NewInfo(subscriberType reflect.Type, super Info, descriptors ...*Descriptor) Info {
	return &staticInfo{
		subscriberType: subscriberType,
		super:          super,
		descriptors:    descriptors,
	}
}

func (i *staticInfo) SubscriberType() reflect.Type { return i.subscriberType }
func (i *staticInfo) Descriptors() []*Descriptor   { return i.descriptors }
func (i *staticInfo) Super() Info                  { return i.super }
