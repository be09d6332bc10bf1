//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"scrip/pkg/domain"
	audit "scrip/pkg/platform/audit"
	auditpostgres "scrip/pkg/platform/audit/store/postgres"
	"scrip/pkg/testutil/containers"
)

type PostgresAuditStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditpostgres.Store
	ctx      context.Context
}

func TestPostgresAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuditStoreSuite))
}

func (s *PostgresAuditStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = auditpostgres.New(s.postgres.Pool)
	s.ctx = context.Background()
}

func (s *PostgresAuditStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "audit_events"))
}

func (s *PostgresAuditStoreSuite) TestAppendAndList() {
	vaultID := domain.DeriveVaultID("authority-1")
	base := time.Now().UTC().Truncate(time.Microsecond)

	events := []audit.Event{
		{Action: string(audit.EventVaultInitialized), VaultID: vaultID, Actor: "authority-1", Timestamp: base},
		{Action: string(audit.EventClientRegistered), VaultID: vaultID, Actor: "authority-1", Subject: "client-1", Timestamp: base.Add(time.Second)},
		{Action: string(audit.EventVoucherDeposited), VaultID: vaultID, Actor: "client-1", ReserveAmount: 100, VoucherAmount: 400, Timestamp: base.Add(2 * time.Second)},
	}
	for _, ev := range events {
		s.Require().NoError(s.store.Append(s.ctx, ev))
	}

	got, err := s.store.ListByVault(s.ctx, vaultID)
	s.Require().NoError(err)
	s.Require().Len(got, 3)

	s.Run("insertion order is preserved", func() {
		s.Equal(string(audit.EventVaultInitialized), got[0].Action)
		s.Equal(string(audit.EventClientRegistered), got[1].Action)
		s.Equal(string(audit.EventVoucherDeposited), got[2].Action)
	})

	s.Run("category derives from the action", func() {
		s.Equal(audit.CategoryCompliance, got[0].Category)
		s.Equal(audit.CategoryOperations, got[2].Category)
	})

	s.Run("amounts and parties survive the round trip", func() {
		s.Equal(domain.Address("client-1"), got[2].Actor)
		s.Equal(uint64(100), got[2].ReserveAmount)
		s.Equal(uint64(400), got[2].VoucherAmount)
	})

	s.Run("other vaults see nothing", func() {
		other, err := s.store.ListByVault(s.ctx, domain.DeriveVaultID("authority-2"))
		s.Require().NoError(err)
		s.Empty(other)
	})
}
