package metadata

import (
	"encoding/json"
	"fmt"
)

// RuntimeVersion is the result of state_getRuntimeVersion.
type RuntimeVersion struct {
	SpecName           string       `json:"specName"`
	ImplName           string       `json:"implName"`
	AuthoringVersion   uint32       `json:"authoringVersion"`
	SpecVersion        uint32       `json:"specVersion"`
	ImplVersion        uint32       `json:"implVersion"`
	TransactionVersion uint32       `json:"transactionVersion"`
	StateVersion       uint8        `json:"stateVersion"`
	APIs               []APIVersion `json:"apis"`
}

// APIVersion is one (api id, version) pair of a runtime version. The node
// sends it as a two element array.
type APIVersion struct {
	ID      string
	Version uint32
}

func (a APIVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{a.ID, a.Version})
}

func (a *APIVersion) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("api version: want 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &a.ID); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &a.Version)
}
