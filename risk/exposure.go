package risk

import (
	"fmt"
	"math"

	"github.com/rustyeddy/macrotrader/account"
)

// Caps are exposure limits as fractions of equity.
type Caps struct {
	Total    float64 // all open positions combined
	Sector   float64 // per sector
	Bucket   float64 // per correlation bucket
	Position float64 // single position
}

func DefaultCaps() Caps {
	return Caps{Total: 1.00, Sector: 0.25, Bucket: 0.30, Position: 0.10}
}

// Candidate is a hypothetical fill submitted for admission.
type Candidate struct {
	Symbol   string
	Notional float64 // |quantity| * price
}

// ExposureManager answers admission queries against the caps. It holds no
// position state of its own: exposure is always computed from the
// account's current positions at proposal time, never cached.
type ExposureManager struct {
	Caps    Caps
	Sectors map[string]string // symbol -> sector
	Buckets map[string]string // symbol -> correlation bucket
}

func NewExposureManager() *ExposureManager {
	return &ExposureManager{Caps: DefaultCaps()}
}

const unmapped = "default"

func (em *ExposureManager) sector(symbol string) string {
	if s, ok := em.Sectors[symbol]; ok {
		return s
	}
	return unmapped
}

func (em *ExposureManager) bucket(symbol string) string {
	if b, ok := em.Buckets[symbol]; ok {
		return b
	}
	return unmapped
}

// CanAdmit checks whether the candidate would leave every cap intact
// after a hypothetical fill. One position per symbol: a candidate for a
// symbol already held is rejected outright. Violations carry the reason
// for the decision trace.
func (em *ExposureManager) CanAdmit(c Candidate, acct *account.Account) *Violation {
	equity := acct.Equity()
	if equity <= 0 {
		return &Violation{Code: "NO_EQUITY", Msg: "account equity is not positive"}
	}
	if _, open := acct.Position(c.Symbol); open {
		return &Violation{Code: "POSITION_OPEN",
			Msg: fmt.Sprintf("position already open for %s", c.Symbol)}
	}

	frac := c.Notional / equity
	if frac > em.Caps.Position {
		return &Violation{Code: "POSITION_CAP",
			Msg: fmt.Sprintf("position %.1f%% of equity exceeds %.1f%% cap",
				100*frac, 100*em.Caps.Position)}
	}

	var total, sector, bucket float64
	candSector := em.sector(c.Symbol)
	candBucket := em.bucket(c.Symbol)
	for _, p := range acct.Positions() {
		n := math.Abs(p.Quantity) * p.MarkPrice
		total += n
		if em.sector(p.Symbol) == candSector {
			sector += n
		}
		if em.bucket(p.Symbol) == candBucket {
			bucket += n
		}
	}

	if (total+c.Notional)/equity > em.Caps.Total {
		return &Violation{Code: "TOTAL_CAP",
			Msg: fmt.Sprintf("total exposure %.1f%% would exceed %.1f%% cap",
				100*(total+c.Notional)/equity, 100*em.Caps.Total)}
	}
	if (sector+c.Notional)/equity > em.Caps.Sector {
		return &Violation{Code: "SECTOR_CAP",
			Msg: fmt.Sprintf("sector %q exposure %.1f%% would exceed %.1f%% cap",
				candSector, 100*(sector+c.Notional)/equity, 100*em.Caps.Sector)}
	}
	if (bucket+c.Notional)/equity > em.Caps.Bucket {
		return &Violation{Code: "BUCKET_CAP",
			Msg: fmt.Sprintf("correlation bucket %q exposure %.1f%% would exceed %.1f%% cap",
				candBucket, 100*(bucket+c.Notional)/equity, 100*em.Caps.Bucket)}
	}

	return nil
}
