package journey

import (
	"encoding/json"
	"strings"
	"time"
)

// Type distinguishes the two JourneyData payload shapes.
type Type int

const (
	TypeVector Type = iota
	TypeBitmap
)

func (t Type) String() string {
	switch t {
	case TypeVector:
		return "vector"
	case TypeBitmap:
		return "bitmap"
	default:
		return "unknown"
	}
}

// Kind identifies the grouping a journey belongs to for caching and
// layering purposes. It is a small closed set (Default, Flight) plus an
// open-ended Custom variant, matching journey_header.rs's JourneyKind enum.
type Kind interface {
	// Encoded returns a stable, injective string identifying the kind,
	// used both as a CacheLayerKind key and for persistence.
	Encoded() string
}

// KindDefault is the ordinary, non-flight journey kind.
type KindDefault struct{}

func (KindDefault) Encoded() string { return "default" }

// KindFlight marks a journey recorded aboard a flight.
type KindFlight struct{}

func (KindFlight) Encoded() string { return "flight" }

// KindCustom is an arbitrary, user-defined kind. Encoded is prefixed so it
// can never collide with KindDefault/KindFlight's fixed strings.
type KindCustom struct {
	Name string
}

func (k KindCustom) Encoded() string { return "custom:" + k.Name }

// KindsEqual reports whether two Kinds encode the same value.
func KindsEqual(a, b Kind) bool {
	return a.Encoded() == b.Encoded()
}

// DecodeKind is the inverse of Kind.Encoded, used when reading a stored
// journey's kind back out of a database column.
func DecodeKind(s string) Kind {
	switch {
	case s == "default":
		return KindDefault{}
	case s == "flight":
		return KindFlight{}
	case strings.HasPrefix(s, "custom:"):
		return KindCustom{Name: strings.TrimPrefix(s, "custom:")}
	default:
		return KindCustom{Name: s}
	}
}

// Header is a journey's metadata record.
type Header struct {
	ID          string
	Revision    string
	JourneyDate int64 // days since epoch, local calendar date
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	Start       *time.Time
	End         *time.Time
	Type        Type
	Kind        Kind
	Note        *string
}

// headerJSON is Header's wire shape for the journey table's header blob
// column, following tilejson.go's use of encoding/json for structured
// metadata rather than a binary format.
type headerJSON struct {
	ID          string     `json:"id"`
	Revision    string     `json:"revision"`
	JourneyDate int64      `json:"journey_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	Type        Type       `json:"type"`
	Kind        string     `json:"kind"`
	Note        *string    `json:"note,omitempty"`
}

// EncodeHeader serializes a Header to its blob-column representation.
func EncodeHeader(h Header) ([]byte, error) {
	return json.Marshal(headerJSON{
		ID:          h.ID,
		Revision:    h.Revision,
		JourneyDate: h.JourneyDate,
		CreatedAt:   h.CreatedAt,
		UpdatedAt:   h.UpdatedAt,
		Start:       h.Start,
		End:         h.End,
		Type:        h.Type,
		Kind:        h.Kind.Encoded(),
		Note:        h.Note,
	})
}

// DecodeHeader is the inverse of EncodeHeader.
func DecodeHeader(b []byte) (Header, error) {
	var hj headerJSON
	if err := json.Unmarshal(b, &hj); err != nil {
		return Header{}, err
	}
	return Header{
		ID:          hj.ID,
		Revision:    hj.Revision,
		JourneyDate: hj.JourneyDate,
		CreatedAt:   hj.CreatedAt,
		UpdatedAt:   hj.UpdatedAt,
		Start:       hj.Start,
		End:         hj.End,
		Type:        hj.Type,
		Kind:        DecodeKind(hj.Kind),
		Note:        hj.Note,
	}, nil
}
