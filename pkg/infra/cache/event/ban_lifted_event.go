package event

// BanLiftedEvent is published after an address is unbanned so that peers drop
// it from their local ban cache.
type BanLiftedEvent struct {
	IP string `json:"ip"`
}

func (e BanLiftedEvent) Type() string {
	return BanLiftedEventType
}
