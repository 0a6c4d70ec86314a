package features

// Vector is one encoded record, one value per schema slot.
type Vector []float64

// Encode builds the feature vector for r in schema order. It never fails:
// an unrecognized category leaves its indicators at 0, an unrecognized month
// encodes as January, and a state without its own slot sets nothing.
func Encode(r CallRecord, s Schema) Vector {
	v := make(Vector, s.Len())
	if len(v) < structuralSlotsCount {
		return v
	}

	v[idxLatitude] = r.Latitude
	v[idxLongitude] = r.Longitude
	v[idxMonthNum] = float64(r.Month.Num())
	v[idxQuarter] = float64(r.Month.Quarter())

	switch r.Quality {
	case QualityCallDropped:
		v[idxCallDropped] = 1
	case QualityPoorVoice:
		v[idxPoorQuality] = 1
	}

	switch r.Location {
	case LocationIndoor:
		v[idxIndoor] = 1
	case LocationOutdoor:
		v[idxOutdoor] = 1
	case LocationTravelling:
		v[idxTravelling] = 1
	}

	switch r.NetworkType {
	case Network4G:
		v[idx4G] = 1
	case Network3G:
		v[idx3G] = 1
	case Network2G:
		v[idx2G] = 1
	default:
		v[idxUnknownNetwork] = 1
	}

	switch r.Operator {
	case OperatorAirtel:
		v[idxAirtel] = 1
	case OperatorRJio:
		v[idxRJio] = 1
	case OperatorVI:
		v[idxVI] = 1
	case OperatorBSNL:
		v[idxBSNL] = 1
	}

	if i, ok := s.StateSlot(r.StateName); ok {
		v[i] = 1
	}
	return v
}

// EncodeAll encodes a batch of records into a row-major matrix.
func EncodeAll(records []CallRecord, s Schema) [][]float64 {
	out := make([][]float64, len(records))
	for i, r := range records {
		out[i] = Encode(r, s)
	}
	return out
}

// Get returns the value of a named slot, or 0 if the schema has no such slot.
func (v Vector) Get(s Schema, name string) float64 {
	i, ok := s.Index(name)
	if !ok || i >= len(v) {
		return 0
	}
	return v[i]
}
