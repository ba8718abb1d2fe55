package source

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nao1215/tornodes/internal/model"
)

// summaryDocument is the envelope of the Onionoo summary document.
// Only the relays collection is used; bridges and version fields are ignored.
type summaryDocument struct {
	Relays []summaryRelay `json:"relays"`
}

// summaryRelay maps the short keys of one relay entry.
// Pointers distinguish an absent key from an empty value where the absent
// case has a placeholder.
type summaryRelay struct {
	Nickname    *string  `json:"n"`
	Fingerprint string   `json:"f"`
	Addresses   []string `json:"a"`
	Running     bool     `json:"r"`
	Flags       []string `json:"s"`
	Bandwidth   float64  `json:"bw"`
	Country     *string  `json:"c"`
	ASName      *string  `json:"as_name"`
	FirstSeen   string   `json:"f_s"`
	LastSeen    string   `json:"l_s"`
}

// ParseRelaySummary decodes a relay summary document.
//
// The body must be a JSON object. A missing or null "relays" key is an empty
// payload, not an error; anything that is not a well-formed object is ErrParse.
func ParseRelaySummary(body []byte) ([]model.Relay, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: relay summary is not a JSON object", ErrParse)
	}

	var doc summaryDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: relay summary: %w", ErrParse, err)
	}

	relays := make([]model.Relay, 0, len(doc.Relays))
	for _, sr := range doc.Relays {
		relays = append(relays, sr.toModel())
	}
	return relays, nil
}

// toModel converts the wire entry, applying placeholders for absent keys.
func (sr summaryRelay) toModel() model.Relay {
	r := model.Relay{
		Nickname:    valueOr(sr.Nickname, model.Unknown),
		Fingerprint: sr.Fingerprint,
		Addresses:   sr.Addresses,
		Running:     sr.Running,
		Bandwidth:   int64(sr.Bandwidth),
		Country:     valueOr(sr.Country, model.Unknown),
		ASName:      valueOr(sr.ASName, model.Unknown),
		FirstSeen:   sr.FirstSeen,
		LastSeen:    sr.LastSeen,
	}
	if r.Addresses == nil {
		r.Addresses = []string{}
	}
	flags := sr.Flags
	if flags == nil {
		flags = []string{}
	}
	r.SetFlags(flags)
	return r
}

func valueOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}
