package sale

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bitfsorg/libsale-go/host"
	"github.com/bitfsorg/libsale-go/ledger"
	"github.com/bitfsorg/libsale-go/whitelist"
)

type saleMetrics struct {
	purchases  *prometheus.CounterVec
	rejections *prometheus.CounterVec
	raised     prometheus.Gauge
}

// init creates the collectors. A nil registerer leaves them unregistered.
func (m *saleMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.purchases = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "sale_purchases_total",
		Help: "completed purchases by kind",
	}, []string{"kind"})
	m.rejections = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "sale_rejections_total",
		Help: "rejected purchases by reason",
	}, []string{"reason"})
	m.raised = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "sale_raised",
		Help: "total value raised in base units",
	})
}

// reason maps an error to a low-cardinality label.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrHalted):
		return "halted"
	case errors.Is(err, ErrPhase):
		return "phase"
	case errors.Is(err, ErrCapExceeded):
		return "cap"
	case errors.Is(err, whitelist.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNoActiveTier):
		return "no_tier"
	case errors.Is(err, ErrZeroValue):
		return "zero_value"
	case errors.Is(err, ledger.ErrSupplyCapExceeded):
		return "supply_cap"
	case errors.Is(err, host.ErrInsufficientFunds):
		return "funds"
	}
	return "other"
}

func toFloat(v *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
