package settlement

import (
	"math"

	pkgerrors "github.com/agritrace/agritrace-backend/pkg/errors"
)

// Adjustment thresholds for the reward computation.
const (
	QualityThresholdHigh = 80
	QualityThresholdLow  = 50
	TempThresholdC       = 30
	HumidityThreshold    = 90
)

// Snapshot is the subset of a produce batch the engine reads. Telemetry is
// nil when the carrier never recorded a reading.
type Snapshot struct {
	ProducerPrice     uint64
	CarrierFee        uint64
	VerifiedQuality   int
	DisputeOpen       bool
	TransportTempC    *int
	TransportHumidity *int
}

// Rewards is the engine output. Deferred means a dispute is open: the amounts
// are computed but no payment may execute and the floor is not applied.
type Rewards struct {
	Producer uint64
	Carrier  uint64
	Deferred bool
}

// Compute derives both rewards from the snapshot. The quality band and the
// environment adjustments are independent; integer division truncates at each
// step, subtractions saturate at zero, and any addition or multiplication
// that would exceed uint64 fails with OVERFLOW rather than wrapping.
func Compute(s Snapshot, minReward uint64) (Rewards, error) {
	producer := s.ProducerPrice
	carrier := s.CarrierFee

	switch {
	case s.VerifiedQuality >= QualityThresholdHigh:
		var err error
		if producer, err = checkedAdd(producer, producer/5); err != nil {
			return Rewards{}, err
		}
		if carrier, err = checkedAdd(carrier, carrier/10); err != nil {
			return Rewards{}, err
		}
	case s.VerifiedQuality < QualityThresholdLow && !s.DisputeOpen:
		producerPenalty, err := mulDiv(producer, 3, 10)
		if err != nil {
			return Rewards{}, err
		}
		carrierPenalty, err := mulDiv(carrier, 15, 100)
		if err != nil {
			return Rewards{}, err
		}
		producer = saturatingSub(producer, producerPenalty)
		carrier = saturatingSub(carrier, carrierPenalty)
	}

	if s.TransportTempC != nil && *s.TransportTempC > TempThresholdC {
		carrier = saturatingSub(carrier, carrier/5)
	}
	if s.TransportHumidity != nil && *s.TransportHumidity > HumidityThreshold {
		carrier = saturatingSub(carrier, carrier/10)
	}

	if s.DisputeOpen {
		return Rewards{Producer: producer, Carrier: carrier, Deferred: true}, nil
	}

	if producer < minReward {
		producer = minReward
	}
	if carrier < minReward {
		carrier = minReward
	}
	return Rewards{Producer: producer, Carrier: carrier}, nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, pkgerrors.New(pkgerrors.CodeOverflow, "reward addition overflow")
	}
	return a + b, nil
}

func mulDiv(value, num, den uint64) (uint64, error) {
	if num != 0 && value > math.MaxUint64/num {
		return 0, pkgerrors.New(pkgerrors.CodeOverflow, "reward multiplication overflow")
	}
	return value * num / den, nil
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
