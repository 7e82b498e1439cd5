// Package msg defines the daemon protocol: gob-encoded requests and
// responses, each framed by a little-endian uint32 length.
//
// Payloads travel as interface values, so every payload type must be
// registered. A request or response without a payload leaves it nil; gob
// rejects structs with no exported fields.
package msg

func init() {
	registerRequest()
	registerResponse()
}
