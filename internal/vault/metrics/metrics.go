package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for vault operations.
type Metrics struct {
	VaultsInitialized prometheus.Counter
	RolesRegistered   *prometheus.CounterVec
	RolesRemoved      prometheus.Counter
	Deposits          prometheus.Counter
	VoucherMinted     prometheus.Counter
	Transfers         prometheus.Counter
	TransfersBlocked  *prometheus.CounterVec
	Settlements       prometheus.Counter
	ReserveReleased   prometheus.Counter
}

// New creates and registers all vault metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		VaultsInitialized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scrip_vaults_initialized_total",
			Help: "Total number of vaults initialized",
		}),
		RolesRegistered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scrip_roles_registered_total",
			Help: "Total role registrations by role",
		}, []string{"role"}),
		RolesRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scrip_roles_removed_total",
			Help: "Total role removals",
		}),
		Deposits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scrip_deposits_total",
			Help: "Total successful deposit operations",
		}),
		VoucherMinted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scrip_voucher_minted_units_total",
			Help: "Total voucher units minted by deposits",
		}),
		Transfers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scrip_transfers_total",
			Help: "Total successful gated transfers",
		}),
		TransfersBlocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scrip_transfers_blocked_total",
			Help: "Transfers blocked by the authorization gate, by reason",
		}, []string{"reason"}),
		Settlements: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scrip_settlements_total",
			Help: "Total successful settlement operations",
		}),
		ReserveReleased: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scrip_reserve_released_units_total",
			Help: "Total reserve units released by settlements",
		}),
	}
}
