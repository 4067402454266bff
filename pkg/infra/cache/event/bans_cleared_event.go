package event

type BansClearedEvent struct {
	Cleared int `json:"cleared"`
}

func (e BansClearedEvent) Type() string {
	return BansClearedEventType
}
