package captiveportal

import "github.com/fxamacker/cbor/v2"

// DecodeRequest unmarshals a binary-CBOR action payload off the
// WebSocket into a Request.
func DecodeRequest(raw []byte) (Request, error) {
	var req Request
	if err := cbor.Unmarshal(raw, &req); err != nil {
		return Request{}, err
	}
	return req, nil
}
