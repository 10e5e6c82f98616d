package protocol

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a Packet to its wire JSON form. []byte fields are
// base64-encoded automatically by encoding/json.
func Encode(p *Packet) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode packet: %w", err)
	}
	if len(body) > MaxPacketSize {
		return nil, fmt.Errorf("protocol: encoded packet is %d bytes, exceeds max %d", len(body), MaxPacketSize)
	}
	return body, nil
}

// Decode parses a wire JSON body into a Packet.
func Decode(body []byte) (*Packet, error) {
	var p Packet
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("protocol: decode packet: %w", err)
	}
	return &p, nil
}
