package core

import (
	"reflect"
	"sync"

	"github.com/husky-team/husky/pkg/husky/metrics"
	"github.com/husky-team/husky/pkg/husky/types"
)

// AccessorFactory lazily allocates, per ChannelId, the set of
// per-local-thread Accessor instances backing that channel. Lookup and
// allocation both run under one mutex held for the whole call; there is
// no unlocked fast path for channels that already exist. It mirrors the original's type-erased static
// factory: Go has no template statics, so the erasure is done by
// storing `any` behind a recorded reflect.Type and checking it on every
// lookup instead of trusting the caller's type parameter blindly.
type AccessorFactory struct {
	mutex      sync.Mutex
	sets       map[types.ChannelId]*accessorEntry
	collectors *metrics.Collectors
}

// SetMetrics attaches collectors the factory should update as channels
// are allocated and released. Optional.
func (f *AccessorFactory) SetMetrics(c *metrics.Collectors) {
	f.collectors = c
}

type accessorEntry struct {
	elemType     reflect.Type
	data         any // []*Accessor[T]
	refsRemaining int
}

// NewAccessorFactory creates an empty factory.
func NewAccessorFactory() *AccessorFactory {
	return &AccessorFactory{sets: make(map[types.ChannelId]*accessorEntry)}
}

// CreateAccessorSet returns the []*Accessor[T] for channel, allocating
// num_local_threads fresh accessors (each initialized with
// numLocalThreads visitors) the first time the channel is touched.
// A later call for the same channel with a different T is a programmer
// error and returns InvalidState rather than a panic.
func CreateAccessorSet[T any](f *AccessorFactory, channel types.ChannelId, numLocalThreads int) ([]*Accessor[T], error) {
	wantType := reflect.TypeOf([]*Accessor[T](nil))

	f.mutex.Lock()
	defer f.mutex.Unlock()

	entry, ok := f.sets[channel]
	if !ok {
		data := make([]*Accessor[T], numLocalThreads)
		for i := range data {
			data[i] = NewAccessor[T]("channel-accessor")
			data[i].Init(numLocalThreads)
		}
		entry = &accessorEntry{
			elemType:      wantType,
			data:          data,
			refsRemaining: numLocalThreads,
		}
		f.sets[channel] = entry
		if f.collectors != nil {
			f.collectors.ChannelsAllocated.Inc()
		}
		return data, nil
	}

	if entry.elemType != wantType {
		return nil, types.InvalidState("channel %s: requested accessor type %s does not match registered type %s",
			channel, wantType, entry.elemType)
	}
	return entry.data.([]*Accessor[T]), nil
}

// RemoveAccessorSet releases one local thread's reference to channel's
// accessor set; the set is freed once every local thread has released
// it.
func (f *AccessorFactory) RemoveAccessorSet(channel types.ChannelId) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	entry, ok := f.sets[channel]
	if !ok {
		return
	}
	entry.refsRemaining--
	if entry.refsRemaining <= 0 {
		delete(f.sets, channel)
		if f.collectors != nil {
			f.collectors.ChannelsAllocated.Dec()
		}
	}
}

// ShuffleCombinerFactory is the ShuffleCombiner analogue of
// AccessorFactory.
type ShuffleCombinerFactory struct {
	mutex      sync.Mutex
	sets       map[types.ChannelId]*shuffleCombinerEntry
	collectors *metrics.Collectors
}

// SetMetrics attaches collectors the factory should update as channels
// are allocated and released. Optional.
func (f *ShuffleCombinerFactory) SetMetrics(c *metrics.Collectors) {
	f.collectors = c
}

type shuffleCombinerEntry struct {
	elemType      reflect.Type
	data          any // []*ShuffleCombiner[T]
	refsRemaining int
}

// NewShuffleCombinerFactory creates an empty factory.
func NewShuffleCombinerFactory() *ShuffleCombinerFactory {
	return &ShuffleCombinerFactory{sets: make(map[types.ChannelId]*shuffleCombinerEntry)}
}

// CreateShuffleCombinerSet returns the []*ShuffleCombiner[T] for
// channel, allocating numLocalThreads combiners (each with
// numGlobalThreads destination slots) the first time the channel is
// touched.
func CreateShuffleCombinerSet[T any](f *ShuffleCombinerFactory, channel types.ChannelId, numLocalThreads, numGlobalThreads int) ([]*ShuffleCombiner[T], error) {
	wantType := reflect.TypeOf([]*ShuffleCombiner[T](nil))

	f.mutex.Lock()
	defer f.mutex.Unlock()

	entry, ok := f.sets[channel]
	if !ok {
		data := make([]*ShuffleCombiner[T], numLocalThreads)
		for i := range data {
			data[i] = NewShuffleCombiner[T](numGlobalThreads)
		}
		entry = &shuffleCombinerEntry{
			elemType:      wantType,
			data:          data,
			refsRemaining: numLocalThreads,
		}
		f.sets[channel] = entry
		if f.collectors != nil {
			f.collectors.ChannelsAllocated.Inc()
		}
		return data, nil
	}

	if entry.elemType != wantType {
		return nil, types.InvalidState("channel %s: requested shuffle-combiner type %s does not match registered type %s",
			channel, wantType, entry.elemType)
	}
	return entry.data.([]*ShuffleCombiner[T]), nil
}

// RemoveShuffleCombinerSet releases one local thread's reference;
// the last releaser frees the set.
func (f *ShuffleCombinerFactory) RemoveShuffleCombinerSet(channel types.ChannelId) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	entry, ok := f.sets[channel]
	if !ok {
		return
	}
	entry.refsRemaining--
	if entry.refsRemaining <= 0 {
		delete(f.sets, channel)
		if f.collectors != nil {
			f.collectors.ChannelsAllocated.Dec()
		}
	}
}
