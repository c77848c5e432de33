package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// BlowData is an optional ordered sequence of blow counts, one per 15 cm
// penetration increment. The zero value is absent, which is distinct from a
// present but empty sequence.
type BlowData struct {
	counts []int
	valid  bool
}

// NewBlowData returns present blow data holding a copy of counts.
func NewBlowData(counts ...int) BlowData {
	c := make([]int, len(counts))
	copy(c, counts)
	return BlowData{counts: c, valid: true}
}

// Valid reports whether blow data was recorded at all.
func (b BlowData) Valid() bool { return b.valid }

// Len returns the number of recorded increments (0 when absent).
func (b BlowData) Len() int { return len(b.counts) }

// Counts returns a copy of the recorded increments, or nil when absent.
func (b BlowData) Counts() []int {
	if !b.valid {
		return nil
	}
	c := make([]int, len(b.counts))
	copy(c, b.counts)
	return c
}

// Equal reports whether both values are absent or hold the same increments.
func (b BlowData) Equal(other BlowData) bool {
	if b.valid != other.valid || len(b.counts) != len(other.counts) {
		return false
	}
	for i := range b.counts {
		if b.counts[i] != other.counts[i] {
			return false
		}
	}
	return true
}

func (b BlowData) String() string {
	if !b.valid {
		return "None"
	}
	return fmt.Sprint(b.counts)
}

// MarshalJSON encodes absent blow data as null and present data as an array.
func (b BlowData) MarshalJSON() ([]byte, error) {
	if !b.valid {
		return []byte("null"), nil
	}
	return json.Marshal(b.counts)
}

// UnmarshalJSON decodes null as absent and any array (including []) as present.
func (b *BlowData) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*b = BlowData{}
		return nil
	}
	var counts []int
	if err := json.Unmarshal(data, &counts); err != nil {
		return fmt.Errorf("decode blow data: %w", err)
	}
	*b = NewBlowData(counts...)
	return nil
}

// NValue applies the SPT convention: the sum of the last two recorded
// increments, or 0 when fewer than two increments were recorded.
func NValue(b BlowData) int {
	n := len(b.counts)
	if !b.valid || n < 2 {
		return 0
	}
	return b.counts[n-2] + b.counts[n-1]
}

// SPTRecord is a single SPT reading at a depth. It is immutable; the blow
// count is derived once at construction.
type SPTRecord struct {
	depth     float64
	blowData  BlowData
	blowCount int
}

// NewSPTRecord builds a reading and computes its blow count. Inputs are not
// validated.
func NewSPTRecord(depth float64, blowData BlowData) SPTRecord {
	// Re-wrap so the record never shares a backing array with the caller.
	if blowData.valid {
		blowData = NewBlowData(blowData.counts...)
	}
	return SPTRecord{
		depth:     depth,
		blowData:  blowData,
		blowCount: NValue(blowData),
	}
}

// Depth returns the test depth in meters.
func (r SPTRecord) Depth() float64 { return r.depth }

// BlowData returns the raw increments as recorded.
func (r SPTRecord) BlowData() BlowData { return r.blowData }

// BlowCount returns the derived N-value.
func (r SPTRecord) BlowCount() int { return r.blowCount }

type sptRecordJSON struct {
	Depth     float64  `json:"depth"`
	BlowData  BlowData `json:"blow_data"`
	BlowCount int      `json:"blow_count"`
}

func (r SPTRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(sptRecordJSON{
		Depth:     r.depth,
		BlowData:  r.blowData,
		BlowCount: r.blowCount,
	})
}

// UnmarshalJSON rebuilds the record through NewSPTRecord; an encoded
// blow_count is ignored in favor of the derived value.
func (r *SPTRecord) UnmarshalJSON(data []byte) error {
	var v sptRecordJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode spt record: %w", err)
	}
	*r = NewSPTRecord(v.Depth, v.BlowData)
	return nil
}
