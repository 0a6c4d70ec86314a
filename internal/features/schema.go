package features

import (
	"sort"
	"strings"
)

// DefaultTopStates is how many states get their own indicator slot.
const DefaultTopStates = 10

// Structural slot names, in schema order. State slots follow them.
const (
	SlotLatitude         = "latitude"
	SlotLongitude        = "longitude"
	SlotMonthNum         = "month_num"
	SlotQuarter          = "quarter"
	SlotCallDropped      = "is_call_dropped"
	SlotPoorQuality      = "is_poor_quality"
	SlotIndoor           = "is_indoor"
	SlotOutdoor          = "is_outdoor"
	SlotTravelling       = "is_travelling"
	Slot4G               = "is_4g"
	Slot3G               = "is_3g"
	Slot2G               = "is_2g"
	SlotUnknownNetwork   = "is_unknown_network"
	SlotAirtel           = "is_airtel"
	SlotRJio             = "is_rjio"
	SlotVI               = "is_vi"
	SlotBSNL             = "is_bsnl"
	statePrefix          = "is_"
	structuralSlotsCount = 17
)

var structuralSlots = [structuralSlotsCount]string{
	SlotLatitude, SlotLongitude, SlotMonthNum, SlotQuarter,
	SlotCallDropped, SlotPoorQuality,
	SlotIndoor, SlotOutdoor, SlotTravelling,
	Slot4G, Slot3G, Slot2G, SlotUnknownNetwork,
	SlotAirtel, SlotRJio, SlotVI, SlotBSNL,
}

// Positions of the structural slots. They never move.
const (
	idxLatitude = iota
	idxLongitude
	idxMonthNum
	idxQuarter
	idxCallDropped
	idxPoorQuality
	idxIndoor
	idxOutdoor
	idxTravelling
	idx4G
	idx3G
	idx2G
	idxUnknownNetwork
	idxAirtel
	idxRJio
	idxVI
	idxBSNL
)

// StructuralSlots returns the fixed, state-independent slot names.
func StructuralSlots() []string {
	out := make([]string, structuralSlotsCount)
	copy(out, structuralSlots[:])
	return out
}

// StateCount is a state name and how often it appears in a corpus.
type StateCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CountStates tallies state names, returned in order of first appearance.
// Empty names are ignored.
func CountStates(states []string) []StateCount {
	idx := make(map[string]int)
	var counts []StateCount
	for _, s := range states {
		if s == "" {
			continue
		}
		if i, ok := idx[s]; ok {
			counts[i].Count++
			continue
		}
		idx[s] = len(counts)
		counts = append(counts, StateCount{Name: s, Count: 1})
	}
	return counts
}

// TopStates picks the n most frequent states, most frequent first. Ties keep
// first-appearance order, so counts must be in first-appearance order (as
// CountStates returns them).
func TopStates(counts []StateCount, n int) []string {
	sorted := make([]StateCount, len(counts))
	copy(sorted, counts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	if n < 0 {
		n = 0
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = sorted[i].Name
	}
	return out
}

// Schema is the frozen, ordered list of model input slots.
// The zero value is not usable; build one with NewSchema or BuildSchema.
type Schema struct {
	names     []string
	index     map[string]int
	topStates []string
}

// NewSchema builds the schema for an already chosen list of top states.
// A state whose slug is already taken (by a structural slot or an earlier
// state) gets no slot of its own.
func NewSchema(topStates []string) Schema {
	s := Schema{
		names: make([]string, 0, structuralSlotsCount+len(topStates)),
		index: make(map[string]int, structuralSlotsCount+len(topStates)),
	}
	for _, name := range structuralSlots {
		s.index[name] = len(s.names)
		s.names = append(s.names, name)
	}
	for _, state := range topStates {
		slot := statePrefix + StateSlug(state)
		if _, dup := s.index[slot]; dup {
			continue
		}
		s.index[slot] = len(s.names)
		s.names = append(s.names, slot)
		s.topStates = append(s.topStates, state)
	}
	return s
}

// BuildSchema derives the schema from a training corpus's state column.
func BuildSchema(states []string, topN int) Schema {
	return NewSchema(TopStates(CountStates(states), topN))
}

// Len is the number of slots, and therefore the length of every encoded vector.
func (s Schema) Len() int { return len(s.names) }

// Names returns a copy of the slot names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// TopStates returns a copy of the states that own a slot, most frequent first.
func (s Schema) TopStates() []string {
	out := make([]string, len(s.topStates))
	copy(out, s.topStates)
	return out
}

// Index returns the position of a named slot.
func (s Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// StateSlot returns the slot for a state name, matched case-insensitively.
func (s Schema) StateSlot(state string) (int, bool) {
	if strings.TrimSpace(state) == "" {
		return 0, false
	}
	i, ok := s.index[statePrefix+StateSlug(state)]
	if !ok || i < structuralSlotsCount {
		return 0, false
	}
	return i, true
}

// HasState reports whether the state has its own indicator slot.
func (s Schema) HasState(state string) bool {
	_, ok := s.StateSlot(state)
	return ok
}

// Matches reports whether names is exactly this schema, slot for slot.
func (s Schema) Matches(names []string) bool {
	if len(names) != len(s.names) {
		return false
	}
	for i, n := range names {
		if s.names[i] != n {
			return false
		}
	}
	return true
}

// IsIndicator reports whether slot i is a 0/1 indicator.
func (s Schema) IsIndicator(i int) bool {
	return i > idxQuarter && i < len(s.names)
}
