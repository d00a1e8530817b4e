package checklist

import (
	"context"

	"github.com/golang/glog"
)

// receives remote events that passed the namespace filter
type RemoteEventSink interface {
	ApplyRemoteEvent(event *Event)
}

type NamespaceFunction = func() NamespaceKey

// decodes push frames and forwards events for the active namespace to the sink,
// strictly in arrival order. own writes reflected back are applied like any other event
type RealtimeEventBridge struct {
	sink      RemoteEventSink
	namespace NamespaceFunction
}

func NewRealtimeEventBridge(sink RemoteEventSink, namespace NamespaceFunction) *RealtimeEventBridge {
	return &RealtimeEventBridge{
		sink:      sink,
		namespace: namespace,
	}
}

// returns the number of events dispatched to the sink
func (self *RealtimeEventBridge) HandleMessage(frame []byte) int {
	events, errs := DecodeEvents(frame)
	for _, err := range errs {
		glog.Infof("[b]drop = %s\n", err)
	}

	dispatchCount := 0
	for _, event := range events {
		key := self.namespace()
		if event.Data.NamespaceKey() != key {
			debugf("[b]drop %s (active %s)\n", event, key)
			continue
		}
		HandleError(func() {
			self.sink.ApplyRemoteEvent(event)
		})
		dispatchCount += 1
	}
	return dispatchCount
}

// handles frames until `receive` is closed or the context is done
func (self *RealtimeEventBridge) Run(ctx context.Context, receive <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-receive:
			if !ok {
				return
			}
			self.HandleMessage(frame)
		}
	}
}
