package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"scrip/internal/assets"
	"scrip/internal/vault/models"
	rolestore "scrip/internal/vault/store/role"
	vaultstore "scrip/internal/vault/store/vault"
	"scrip/pkg/domain"
	dErrors "scrip/pkg/domain-errors"
	audit "scrip/pkg/platform/audit"
	auditmemory "scrip/pkg/platform/audit/store/memory"
	"scrip/pkg/platform/sentinel"
	"scrip/pkg/requestcontext"
)

const (
	authority = domain.Address("authority-1")
	client    = domain.Address("client-1")
	merchant  = domain.Address("merchant-1")
	outsider  = domain.Address("outsider-1")
)

type ServiceSuite struct {
	suite.Suite
	svc    *Service
	vaults *vaultstore.InMemory
	roles  *rolestore.InMemory
	engine *assets.InMemoryEngine
	audits *auditmemory.InMemoryStore
	ctx    context.Context
}

func (s *ServiceSuite) SetupTest() {
	s.vaults = vaultstore.NewInMemory()
	s.roles = rolestore.NewInMemory()
	s.engine = assets.NewInMemoryEngine()
	s.audits = auditmemory.NewInMemoryStore()
	s.svc = New(s.vaults, s.roles, s.engine,
		WithAuditPublisher(s.audits),
	)
	s.ctx = requestcontext.WithTime(context.Background(),
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

// initVault creates a vault and funds addr with reserve currency.
func (s *ServiceSuite) initVault() *models.Vault {
	v, err := s.svc.InitializeVault(s.ctx, authority)
	s.Require().NoError(err)
	return v
}

func (s *ServiceSuite) fundReserve(addr domain.Address, amount uint64) {
	s.Require().NoError(s.engine.Mint(s.ctx, domain.ReserveAssetID, addr, amount))
}

func (s *ServiceSuite) registerParticipants(v *models.Vault) {
	_, err := s.svc.AddClient(s.ctx, v.ID, authority, client)
	s.Require().NoError(err)
	_, err = s.svc.AddMerchant(s.ctx, v.ID, authority, merchant)
	s.Require().NoError(err)
}

func (s *ServiceSuite) balance(asset domain.AssetID, addr domain.Address) uint64 {
	got, err := s.engine.Balance(s.ctx, asset, addr)
	s.Require().NoError(err)
	return got
}

func (s *ServiceSuite) assertCode(err error, code dErrors.Code) {
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, code), "got code %s, want %s", dErrors.CodeOf(err), code)
}

func (s *ServiceSuite) TestInitializeVault() {
	s.Run("creates a vault with zeroed counters", func() {
		v := s.initVault()
		s.Equal(domain.DeriveVaultID(authority), v.ID)
		s.Zero(v.TotalReserveDeposited)
		s.Zero(v.TotalVoucherMinted)
	})

	s.Run("second initialize by the same authority conflicts", func() {
		_, err := s.svc.InitializeVault(s.ctx, authority)
		s.assertCode(err, dErrors.CodeConflict)
	})

	s.Run("records a compliance audit event", func() {
		events, err := s.audits.ListByVault(s.ctx, domain.DeriveVaultID(authority))
		s.Require().NoError(err)
		s.Require().NotEmpty(events)
		s.Equal(string(audit.EventVaultInitialized), events[0].Action)
		s.Equal(audit.CategoryCompliance, events[0].Category)
	})
}

func (s *ServiceSuite) TestRoleAdministration() {
	v := s.initVault()

	s.Run("authority registers a client and a merchant", func() {
		entry, err := s.svc.AddClient(s.ctx, v.ID, authority, client)
		s.Require().NoError(err)
		s.Equal(models.RoleClient, entry.Role)
		s.True(entry.Active)

		entry, err = s.svc.AddMerchant(s.ctx, v.ID, authority, merchant)
		s.Require().NoError(err)
		s.Equal(models.RoleMerchant, entry.Role)
	})

	s.Run("non-authority cannot register, registry unchanged", func() {
		_, err := s.svc.AddClient(s.ctx, v.ID, outsider, domain.Address("mallory"))
		s.assertCode(err, dErrors.CodeUnauthorized)

		_, err = s.roles.Find(s.ctx, v.ID, domain.Address("mallory"))
		s.Require().Error(err)
	})

	s.Run("an address registers with the vault at most once", func() {
		_, err := s.svc.AddMerchant(s.ctx, v.ID, authority, client)
		s.assertCode(err, dErrors.CodeDuplicateRegistration)
	})

	s.Run("removal tombstones, and the tombstone is permanent", func() {
		s.Require().NoError(s.svc.RemoveRole(s.ctx, v.ID, authority, client))

		entry, err := s.roles.Find(s.ctx, v.ID, client)
		s.Require().NoError(err)
		s.False(entry.Active)

		// Re-registration is blocked by the tombstone.
		_, err = s.svc.AddClient(s.ctx, v.ID, authority, client)
		s.assertCode(err, dErrors.CodeDuplicateRegistration)

		// Removing again is not an error.
		s.Require().NoError(s.svc.RemoveRole(s.ctx, v.ID, authority, client))
	})

	s.Run("non-authority cannot remove", func() {
		err := s.svc.RemoveRole(s.ctx, v.ID, outsider, merchant)
		s.assertCode(err, dErrors.CodeUnauthorized)

		entry, err2 := s.roles.Find(s.ctx, v.ID, merchant)
		s.Require().NoError(err2)
		s.True(entry.Active)
	})

	s.Run("removing a never-registered address is not found", func() {
		err := s.svc.RemoveRole(s.ctx, v.ID, authority, domain.Address("ghost"))
		s.assertCode(err, dErrors.CodeNotFound)
	})

	s.Run("unknown vault is not found", func() {
		_, err := s.svc.AddClient(s.ctx, domain.DeriveVaultID("nobody"), authority, client)
		s.assertCode(err, dErrors.CodeNotFound)
	})
}

func (s *ServiceSuite) TestDeposit() {
	v := s.initVault()
	s.fundReserve(client, 1000)

	s.Run("mints voucher at the fixed rate and takes custody of reserve", func() {
		minted, err := s.svc.Deposit(s.ctx, v.ID, client, 100)
		s.Require().NoError(err)
		s.Equal(uint64(400), minted)

		s.Equal(uint64(900), s.balance(v.ReserveAsset, client))
		s.Equal(uint64(100), s.balance(v.ReserveAsset, v.AccountAddress()))
		s.Equal(uint64(400), s.balance(v.VoucherAsset, client))

		after, err := s.svc.GetVault(s.ctx, v.ID)
		s.Require().NoError(err)
		s.Equal(uint64(100), after.TotalReserveDeposited)
		s.Equal(uint64(400), after.TotalVoucherMinted)
	})

	s.Run("zero amount is rejected", func() {
		_, err := s.svc.Deposit(s.ctx, v.ID, client, 0)
		s.assertCode(err, dErrors.CodeInvalidAmount)
	})

	s.Run("depositing beyond held reserve fails and moves nothing", func() {
		_, err := s.svc.Deposit(s.ctx, v.ID, client, 901)
		s.assertCode(err, dErrors.CodeInsufficientFunds)
		s.Equal(uint64(900), s.balance(v.ReserveAsset, client))
		s.Equal(uint64(400), s.balance(v.VoucherAsset, client))
	})

	s.Run("overflowing deposit is rejected before any movement", func() {
		_, err := s.svc.Deposit(s.ctx, v.ID, client, 1<<62+1)
		s.assertCode(err, dErrors.CodeOverflow)
		s.Equal(uint64(900), s.balance(v.ReserveAsset, client))
	})

	s.Run("unknown vault is not found", func() {
		_, err := s.svc.Deposit(s.ctx, domain.DeriveVaultID("nobody"), client, 10)
		s.assertCode(err, dErrors.CodeNotFound)
	})

	s.Run("deposits require no registration", func() {
		// Any reserve holder may deposit; the gate governs transfer only.
		s.fundReserve(outsider, 50)
		minted, err := s.svc.Deposit(s.ctx, v.ID, outsider, 50)
		s.Require().NoError(err)
		s.Equal(uint64(200), minted)
	})
}

func (s *ServiceSuite) TestTransfer() {
	v := s.initVault()
	s.registerParticipants(v)
	s.fundReserve(client, 1000)
	_, err := s.svc.Deposit(s.ctx, v.ID, client, 100)
	s.Require().NoError(err)

	s.Run("client sends voucher to merchant", func() {
		s.Require().NoError(s.svc.Transfer(s.ctx, v.ID, client, merchant, 150))
		s.Equal(uint64(250), s.balance(v.VoucherAsset, client))
		s.Equal(uint64(150), s.balance(v.VoucherAsset, merchant))
	})

	s.Run("zero amount is rejected before the gate", func() {
		err := s.svc.Transfer(s.ctx, v.ID, client, merchant, 0)
		s.assertCode(err, dErrors.CodeInvalidAmount)
	})

	s.Run("unregistered sender is blocked", func() {
		err := s.svc.Transfer(s.ctx, v.ID, outsider, merchant, 10)
		s.assertCode(err, dErrors.CodeSenderNotRegistered)
	})

	s.Run("merchant cannot send", func() {
		err := s.svc.Transfer(s.ctx, v.ID, merchant, merchant, 10)
		s.assertCode(err, dErrors.CodeOnlyClientCanSend)
	})

	s.Run("unregistered recipient is blocked", func() {
		err := s.svc.Transfer(s.ctx, v.ID, client, outsider, 10)
		s.assertCode(err, dErrors.CodeRecipientNotRegistered)
	})

	s.Run("client cannot receive", func() {
		other := domain.Address("client-2")
		_, err := s.svc.AddClient(s.ctx, v.ID, authority, other)
		s.Require().NoError(err)

		err = s.svc.Transfer(s.ctx, v.ID, client, other, 10)
		s.assertCode(err, dErrors.CodeOnlyMerchantCanReceive)
	})

	s.Run("blocked transfers move nothing and leave a security event", func() {
		before := s.balance(v.VoucherAsset, client)
		err := s.svc.Transfer(s.ctx, v.ID, outsider, merchant, 10)
		s.Require().Error(err)
		s.Equal(before, s.balance(v.VoucherAsset, client))

		events, err2 := s.audits.ListByVault(s.ctx, v.ID)
		s.Require().NoError(err2)
		var blocked []audit.Event
		for _, ev := range events {
			if ev.Action == string(audit.EventTransferBlocked) {
				blocked = append(blocked, ev)
			}
		}
		s.Require().NotEmpty(blocked)
		s.Equal(audit.CategorySecurity, blocked[0].Category)
		s.Equal(string(dErrors.CodeSenderNotRegistered), blocked[0].Reason)
	})

	s.Run("removed client can no longer send", func() {
		s.Require().NoError(s.svc.RemoveRole(s.ctx, v.ID, authority, client))
		err := s.svc.Transfer(s.ctx, v.ID, client, merchant, 10)
		s.assertCode(err, dErrors.CodeSenderNotRegistered)
	})

	s.Run("removed merchant can no longer receive", func() {
		other := domain.Address("client-3")
		_, err := s.svc.AddClient(s.ctx, v.ID, authority, other)
		s.Require().NoError(err)
		s.Require().NoError(s.svc.RemoveRole(s.ctx, v.ID, authority, merchant))

		err = s.svc.Transfer(s.ctx, v.ID, other, merchant, 10)
		s.assertCode(err, dErrors.CodeRecipientNotRegistered)
	})
}

func (s *ServiceSuite) TestSettle() {
	v := s.initVault()
	s.registerParticipants(v)
	s.fundReserve(client, 1000)
	_, err := s.svc.Deposit(s.ctx, v.ID, client, 100)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Transfer(s.ctx, v.ID, client, merchant, 400))

	s.Run("only merchants settle", func() {
		_, err := s.svc.Settle(s.ctx, v.ID, client, 4)
		s.assertCode(err, dErrors.CodeOnlyMerchantCanSettle)

		_, err = s.svc.Settle(s.ctx, v.ID, outsider, 4)
		s.assertCode(err, dErrors.CodeNotRegistered)
	})

	s.Run("zero amount is rejected", func() {
		_, err := s.svc.Settle(s.ctx, v.ID, merchant, 0)
		s.assertCode(err, dErrors.CodeInvalidAmount)
	})

	s.Run("amounts below the rate are too small", func() {
		for _, amount := range []uint64{1, 2, 3} {
			_, err := s.svc.Settle(s.ctx, v.ID, merchant, amount)
			s.assertCode(err, dErrors.CodeAmountTooSmall)
		}
	})

	s.Run("uneven amount burns in full, pays the floor", func() {
		released, err := s.svc.Settle(s.ctx, v.ID, merchant, 7)
		s.Require().NoError(err)
		s.Equal(uint64(1), released)

		// 7 voucher burned, 1 reserve released, remainder forfeited.
		s.Equal(uint64(393), s.balance(v.VoucherAsset, merchant))
		s.Equal(uint64(1), s.balance(v.ReserveAsset, merchant))
		s.Equal(uint64(99), s.balance(v.ReserveAsset, v.AccountAddress()))
	})

	s.Run("settling beyond held voucher fails and moves nothing", func() {
		_, err := s.svc.Settle(s.ctx, v.ID, merchant, 400)
		s.assertCode(err, dErrors.CodeInsufficientFunds)
		s.Equal(uint64(393), s.balance(v.VoucherAsset, merchant))
	})

	s.Run("tombstoned merchant cannot settle", func() {
		s.Require().NoError(s.svc.RemoveRole(s.ctx, v.ID, authority, merchant))
		_, err := s.svc.Settle(s.ctx, v.ID, merchant, 4)
		s.assertCode(err, dErrors.CodeNotRegistered)
	})
}

func (s *ServiceSuite) TestSettleUnderflowGuard() {
	v := s.initVault()
	s.registerParticipants(v)
	s.fundReserve(client, 10)
	_, err := s.svc.Deposit(s.ctx, v.ID, client, 10)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Transfer(s.ctx, v.ID, client, merchant, 40))

	// Give the merchant voucher the ledger never minted so the counter
	// check, not the balance check, is what trips.
	s.Require().NoError(s.engine.Mint(s.ctx, v.VoucherAsset, merchant, 60))

	_, err = s.svc.Settle(s.ctx, v.ID, merchant, 100)
	s.assertCode(err, dErrors.CodeUnderflow)

	after, err := s.svc.GetVault(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(uint64(10), after.TotalReserveDeposited)
	s.Equal(uint64(40), after.TotalVoucherMinted)
}

// TestFullLifecycle walks one unit of value through the whole exchange:
// deposit, transfer, settle, counters back to zero.
func (s *ServiceSuite) TestFullLifecycle() {
	v := s.initVault()
	s.registerParticipants(v)
	s.fundReserve(client, 100)

	minted, err := s.svc.Deposit(s.ctx, v.ID, client, 100)
	s.Require().NoError(err)
	s.Equal(uint64(400), minted)

	s.Require().NoError(s.svc.Transfer(s.ctx, v.ID, client, merchant, 400))

	released, err := s.svc.Settle(s.ctx, v.ID, merchant, 400)
	s.Require().NoError(err)
	s.Equal(uint64(100), released)

	after, err := s.svc.GetVault(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Zero(after.TotalReserveDeposited)
	s.Zero(after.TotalVoucherMinted)

	s.Zero(s.balance(v.ReserveAsset, client))
	s.Zero(s.balance(v.VoucherAsset, client))
	s.Zero(s.balance(v.VoucherAsset, merchant))
	s.Equal(uint64(100), s.balance(v.ReserveAsset, merchant))
	s.Zero(s.balance(v.ReserveAsset, v.AccountAddress()))

	events, err := s.audits.ListAll(s.ctx)
	s.Require().NoError(err)
	var actions []string
	for _, ev := range events {
		actions = append(actions, ev.Action)
	}
	s.Contains(actions, string(audit.EventVoucherDeposited))
	s.Contains(actions, string(audit.EventVoucherTransferred))
	s.Contains(actions, string(audit.EventVoucherSettled))
}

// failingAuditStore stands in for an audit sink that is down.
type failingAuditStore struct{}

func (failingAuditStore) Append(context.Context, audit.Event) error {
	return errors.New("audit sink unavailable")
}

// TestAuditSinkFailureLeavesNoState covers the fail-closed contract from
// the other side: when the compliance sink rejects the event, the caller
// gets an error and the registry mutation must not have happened, so a
// retry after the sink recovers succeeds instead of colliding.
func (s *ServiceSuite) TestAuditSinkFailureLeavesNoState() {
	broken := New(s.vaults, s.roles, s.engine,
		WithAuditPublisher(failingAuditStore{}),
	)

	s.Run("vault initialization does not persist", func() {
		_, err := broken.InitializeVault(s.ctx, authority)
		s.assertCode(err, dErrors.CodeInternal)

		_, err = s.vaults.FindByID(s.ctx, domain.DeriveVaultID(authority))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	v := s.initVault()

	s.Run("role registration does not persist and a retry succeeds", func() {
		_, err := broken.AddClient(s.ctx, v.ID, authority, client)
		s.assertCode(err, dErrors.CodeInternal)

		_, err = s.roles.Find(s.ctx, v.ID, client)
		s.ErrorIs(err, sentinel.ErrNotFound)

		entry, err := s.svc.AddClient(s.ctx, v.ID, authority, client)
		s.Require().NoError(err)
		s.True(entry.Active)
	})

	s.Run("role removal does not stick", func() {
		err := broken.RemoveRole(s.ctx, v.ID, authority, client)
		s.assertCode(err, dErrors.CodeInternal)

		entry, err := s.roles.Find(s.ctx, v.ID, client)
		s.Require().NoError(err)
		s.True(entry.Active)
	})
}
