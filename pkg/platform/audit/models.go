package audit

import (
	"context"
	"time"

	"scrip/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention.
	// Examples: vault initialization, role registration and removal.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring.
	// Examples: blocked transfers, unauthorized admin attempts.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for operational visibility.
	// These can be sampled or aggregated with shorter retention.
	// Examples: deposits, transfers, settlements.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory  `json:"category"`
	Timestamp time.Time      `json:"timestamp"`
	VaultID   domain.VaultID `json:"vault_id"`
	// Actor is the address that initiated the operation.
	Actor domain.Address `json:"actor"`
	// Subject is the address the operation acted on, when different from
	// the actor (role registrations, transfer recipients).
	Subject domain.Address `json:"subject,omitempty"`
	Action  string         `json:"action"`
	// ReserveAmount / VoucherAmount record the units moved, where the
	// action moves any.
	ReserveAmount uint64 `json:"reserve_amount,omitempty"`
	VoucherAmount uint64 `json:"voucher_amount,omitempty"`
	// Reason carries the error code for blocked operations.
	Reason string `json:"reason,omitempty"`
	// RequestID is the correlation ID from the request context.
	RequestID string `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	// Vault lifecycle
	EventVaultInitialized AuditEvent = "vault_initialized"

	// Role registry
	EventClientRegistered   AuditEvent = "client_registered"
	EventMerchantRegistered AuditEvent = "merchant_registered"
	EventRoleRemoved        AuditEvent = "role_removed"

	// Exchange operations
	EventVoucherDeposited   AuditEvent = "voucher_deposited"
	EventVoucherTransferred AuditEvent = "voucher_transferred"
	EventVoucherSettled     AuditEvent = "voucher_settled"

	// Blocked operations
	EventTransferBlocked AuditEvent = "transfer_blocked"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	// Compliance events - require tamper-proof storage
	EventVaultInitialized:   CategoryCompliance,
	EventClientRegistered:   CategoryCompliance,
	EventMerchantRegistered: CategoryCompliance,
	EventRoleRemoved:        CategoryCompliance,

	// Security events - feed into SIEM and alerting
	EventTransferBlocked: CategorySecurity,

	// Operations events - routine activity, can be sampled
	EventVoucherDeposited:   CategoryOperations,
	EventVoucherTransferred: CategoryOperations,
	EventVoucherSettled:     CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
}
