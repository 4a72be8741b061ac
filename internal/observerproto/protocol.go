package observerproto

// Version is the observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeUpdate    = "UPDATE"
	TypeDemeFrame = "DEME_FRAME"

	// EncodingRLE16 is base64(uvarint code, uvarint run) pairs, cell ids in
	// row-major order.
	EncodingRLE16 = "RLE16"
)

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change the focused slot.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// FocusSlot selects the population slot streamed as DEME_FRAME messages.
	// Negative disables frames.
	FocusSlot int `json:"focus_slot"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	RunID           string      `json:"run_id"`
	Update          uint64      `json:"update"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	Seed            int64    `json:"seed"`
	TickRateHz      int      `json:"tick_rate_hz"`
	CyclesPerUpdate int      `json:"cycles_per_update"`
	DemeWidth       int      `json:"deme_width"`
	DemeHeight      int      `json:"deme_height"`
	MaxPopSize      int      `json:"max_pop_size"`
	NumStatic       int      `json:"num_static"`
	NumPeriodic     int      `json:"num_periodic"`
	ResourceTags    []string `json:"resource_tags"`
}

// Server -> Client. Sent every update.
type UpdateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Update          uint64 `json:"update"`
	Digest          string `json:"digest"`

	Organisms   int     `json:"organisms"`
	ActiveCells int     `json:"active_cells"`
	MeanCells   float64 `json:"mean_cells"`
	Births      int     `json:"births"`
	Deaths      int     `json:"deaths"`
	Divisions   int     `json:"divisions"`
	Pulses      int     `json:"pulses"`

	Slots []SlotState `json:"slots"`
}

type SlotState struct {
	Slot        int     `json:"slot"`
	OrgID       uint64  `json:"org_id"`
	Age         uint64  `json:"age"`
	Pool        float64 `json:"pool"`
	ActiveCells int     `json:"active_cells"`
	EnvTotal    float64 `json:"env_total"`
}

// Server -> Client. Cell states of the focused slot's organism.
// Codes: 0 inactive, 1+facing (N=0 .. NW=7) active.
type DemeFrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Update          uint64 `json:"update"`
	Slot            int    `json:"slot"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Encoding        string `json:"encoding"`
	Data            string `json:"data"`

	Resources []ResourceState `json:"resources"`
}

type ResourceState struct {
	ID          int     `json:"id"`
	Kind        string  `json:"kind"`
	Amount      float64 `json:"amount"`
	Available   bool    `json:"available"`
	TimeInState uint64  `json:"time_in_state"`
}
