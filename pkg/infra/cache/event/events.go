package event

import "reflect"

type Event interface {
	Type() string
}

var (
	BanLiftedEventType   = "BanLiftedEvent"
	BansClearedEventType = "BansClearedEvent"
)

var Registry = map[string]reflect.Type{
	BanLiftedEventType:   reflect.TypeOf(BanLiftedEvent{}),
	BansClearedEventType: reflect.TypeOf(BansClearedEvent{}),
}
