// Package features holds the feature contract shared by training and serving:
// the typed call record, the frozen feature schema and the encoder that turns
// one into a dense vector for the other.
//
// Both the training pipeline and the prediction service import this package,
// so a vector built at training time and one built for a live request always
// come from the same code.
package features

import "strings"

// Operator is the telecom operator that carried the call.
type Operator int

const (
	OperatorOther Operator = iota
	OperatorAirtel
	OperatorRJio
	OperatorVI
	OperatorBSNL
)

var operatorNames = map[Operator]string{
	OperatorAirtel: "Airtel",
	OperatorRJio:   "RJio",
	OperatorVI:     "VI",
	OperatorBSNL:   "BSNL",
}

// ParseOperator matches the exact operator label. Anything else is OperatorOther.
func ParseOperator(s string) Operator {
	for op, name := range operatorNames {
		if s == name {
			return op
		}
	}
	return OperatorOther
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return "other"
}

// NetworkType is the radio technology reported for the call.
type NetworkType int

const (
	NetworkUnknown NetworkType = iota
	Network4G
	Network3G
	Network2G
)

// ParseNetworkType maps "4G", "3G" and "2G"; every other value, including the
// literal "Unknown", is NetworkUnknown.
func ParseNetworkType(s string) NetworkType {
	switch s {
	case "4G":
		return Network4G
	case "3G":
		return Network3G
	case "2G":
		return Network2G
	default:
		return NetworkUnknown
	}
}

func (n NetworkType) String() string {
	switch n {
	case Network4G:
		return "4G"
	case Network3G:
		return "3G"
	case Network2G:
		return "2G"
	default:
		return "Unknown"
	}
}

// LocationContext is where the caller was: inside, outside or on the move.
type LocationContext int

const (
	LocationOther LocationContext = iota
	LocationIndoor
	LocationOutdoor
	LocationTravelling
)

func ParseLocationContext(s string) LocationContext {
	switch s {
	case "Indoor":
		return LocationIndoor
	case "Outdoor":
		return LocationOutdoor
	case "Travelling":
		return LocationTravelling
	default:
		return LocationOther
	}
}

func (l LocationContext) String() string {
	switch l {
	case LocationIndoor:
		return "Indoor"
	case LocationOutdoor:
		return "Outdoor"
	case LocationTravelling:
		return "Travelling"
	default:
		return "other"
	}
}

// CallQuality is the user-reported call outcome category.
type CallQuality int

const (
	QualityOther CallQuality = iota
	QualityCallDropped
	QualityPoorVoice
	QualitySatisfactory
)

func ParseCallQuality(s string) CallQuality {
	switch s {
	case "Call Dropped":
		return QualityCallDropped
	case "Poor Voice Quality":
		return QualityPoorVoice
	case "Satisfactory":
		return QualitySatisfactory
	default:
		return QualityOther
	}
}

func (q CallQuality) String() string {
	switch q {
	case QualityCallDropped:
		return "Call Dropped"
	case QualityPoorVoice:
		return "Poor Voice Quality"
	case QualitySatisfactory:
		return "Satisfactory"
	default:
		return "other"
	}
}

// Month is a calendar month, 1..12. The zero value means the name was not recognized.
type Month int

// MonthNames lists the accepted month labels in calendar order.
var MonthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// ParseMonth matches a full English month name exactly. Unknown names return 0.
func ParseMonth(s string) Month {
	for i, name := range MonthNames {
		if s == name {
			return Month(i + 1)
		}
	}
	return 0
}

// Num is the 1-based calendar index. Unrecognized months fall back to 1 (January).
func (m Month) Num() int {
	if m < 1 || m > 12 {
		return 1
	}
	return int(m)
}

// Quarter is ceil(Num/3).
func (m Month) Quarter() int {
	return (m.Num()-1)/3 + 1
}

func (m Month) String() string {
	if m < 1 || m > 12 {
		return "unknown"
	}
	return MonthNames[m-1]
}

// Supported label lists, in the order clients are shown them.
var (
	OperatorLabels        = []string{"Airtel", "RJio", "VI", "BSNL"}
	NetworkTypeLabels     = []string{"4G", "3G", "2G", "Unknown"}
	LocationContextLabels = []string{"Indoor", "Outdoor", "Travelling"}
	CallQualityLabels     = []string{"Satisfactory", "Poor Voice Quality", "Call Dropped"}
)

// CallRecord is one call observation as seen by the encoder.
type CallRecord struct {
	Operator    Operator
	NetworkType NetworkType
	Location    LocationContext
	Quality     CallQuality
	Latitude    float64
	Longitude   float64
	StateName   string
	Month       Month
}

// NewCallRecord parses the raw categorical labels. Unrecognized labels become
// the neutral variant of their enum rather than an error.
func NewCallRecord(operator, networkType, inoutTravelling, calldropCategory string,
	latitude, longitude float64, stateName, month string,
) CallRecord {
	return CallRecord{
		Operator:    ParseOperator(operator),
		NetworkType: ParseNetworkType(networkType),
		Location:    ParseLocationContext(inoutTravelling),
		Quality:     ParseCallQuality(calldropCategory),
		Latitude:    latitude,
		Longitude:   longitude,
		StateName:   stateName,
		Month:       ParseMonth(month),
	}
}

// StateSlug lowercases the state name and replaces spaces with underscores.
func StateSlug(state string) string {
	return strings.ReplaceAll(strings.ToLower(state), " ", "_")
}
