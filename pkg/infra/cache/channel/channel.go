package channel

type Channel string

const (
	BlocklistEventsChannel Channel = "trustshield:blocklist_events"
)
