package apdu

import "fmt"

// Status words observed from the vault applets.
const (
	SWSuccess         uint16 = 0x9000
	SWMoreDataPrefix  uint16 = 0x6100
	SWWrongLength     uint16 = 0x6700
	SWSecurityStatus  uint16 = 0x6982
	SWConditionsUnmet uint16 = 0x6985
	SWRecordNotFound  uint16 = 0x6A83
	SWFileFull        uint16 = 0x6A84
	SWUnknown         uint16 = 0x6F00
)

// OutcomeKind is the tri-state result of a single exchange.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeMoreData
	OutcomeFailure
)

// Outcome is the tagged interpretation of a status word.
//
// Hint is only meaningful for OutcomeMoreData: the low status byte as a
// coarse remaining-byte count. It saturates at 255 and some applets pin
// it to zero, so it is advisory, never a loop condition.
type Outcome struct {
	Kind OutcomeKind
	Hint int
	SW   uint16
}

// Outcome classifies the response status word.
func (r Response) Outcome() Outcome {
	switch {
	case r.SW == SWSuccess:
		return Outcome{Kind: OutcomeSuccess, SW: r.SW}
	case r.SW&0xFF00 == SWMoreDataPrefix:
		return Outcome{Kind: OutcomeMoreData, Hint: int(r.SW & 0x00FF), SW: r.SW}
	default:
		return Outcome{Kind: OutcomeFailure, SW: r.SW}
	}
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return "success"
	case OutcomeMoreData:
		return fmt.Sprintf("more-data(hint=%d)", o.Hint)
	default:
		return fmt.Sprintf("failure(0x%04X)", o.SW)
	}
}
