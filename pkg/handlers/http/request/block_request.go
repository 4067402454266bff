package request

import (
	"fmt"
	"net"
)

// DefaultBlockSeconds applies when a block request omits the duration.
const DefaultBlockSeconds = 86400

type BlockRequest struct {
	IP       string `json:"ip"`
	Duration int    `json:"duration"`
}

func (r *BlockRequest) Validate() error {
	if r.IP == "" {
		return fmt.Errorf("ip is required")
	}
	if net.ParseIP(r.IP) == nil {
		return fmt.Errorf("ip %q is not a valid address", r.IP)
	}
	if r.Duration == 0 {
		r.Duration = DefaultBlockSeconds
	}
	if r.Duration < 0 {
		return fmt.Errorf("duration must be a positive number of seconds")
	}
	return nil
}
