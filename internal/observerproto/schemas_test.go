package observerproto_test

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"dolworld.ai/internal/observerproto"
	"dolworld.ai/internal/sim/encoding"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", "observer", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// validateMsg marshals v and validates the decoded JSON, so the schemas are
// checked against what the server actually sends.
func validateMsg(t *testing.T, s *jsonschema.Schema, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(doc); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestSchemas_ValidateMessages(t *testing.T) {
	validateMsg(t, compile(t, "subscribe.schema.json"), observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		FocusSlot:       -1,
	})

	validateMsg(t, compile(t, "bootstrap.schema.json"), observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		RunID:           "5b0e8f0c-6f43-4b67-9a57-3f1d7c9d8e21",
		Update:          12,
		WorldParams: observerproto.WorldParams{
			Seed:            1337,
			CyclesPerUpdate: 30,
			DemeWidth:       5,
			DemeHeight:      5,
			MaxPopSize:      100,
			NumStatic:       1,
			NumPeriodic:     1,
			ResourceTags:    []string{"1111111111111111", "1010101010101010"},
		},
	})

	validateMsg(t, compile(t, "update.schema.json"), observerproto.UpdateMsg{
		Type:            observerproto.TypeUpdate,
		ProtocolVersion: observerproto.Version,
		Update:          3,
		Digest:          strings.Repeat("ab", 32),
		Organisms:       1,
		ActiveCells:     2,
		MeanCells:       2,
		Slots: []observerproto.SlotState{
			{Slot: 0, OrgID: 1, Age: 3, Pool: 1.5, ActiveCells: 2, EnvTotal: 4},
		},
	})

	codes := make([]uint16, 25)
	codes[12] = 1
	validateMsg(t, compile(t, "deme_frame.schema.json"), observerproto.DemeFrameMsg{
		Type:            observerproto.TypeDemeFrame,
		ProtocolVersion: observerproto.Version,
		Update:          3,
		Slot:            0,
		Width:           5,
		Height:          5,
		Encoding:        observerproto.EncodingRLE16,
		Data:            encoding.EncodeRLE(codes),
		Resources: []observerproto.ResourceState{
			{ID: 0, Kind: "STATIC", Amount: 1, Available: true, TimeInState: 3},
			{ID: 1, Kind: "PERIODIC"},
		},
	})
}

func TestSchemas_RejectWrongType(t *testing.T) {
	s := compile(t, "update.schema.json")
	var doc any
	_ = json.Unmarshal([]byte(`{"type":"DEME_FRAME","protocol_version":"0.1","update":0,"digest":"x","organisms":0,"active_cells":0,"slots":[]}`), &doc)
	if err := s.Validate(doc); err == nil {
		t.Fatalf("expected validation error")
	}
}
