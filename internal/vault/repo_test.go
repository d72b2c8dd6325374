package vault

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/pkg/db/models"
	"github.com/agritrace/agritrace-backend/pkg/enums"
)

func setupVaultTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	accounts := `
CREATE TABLE IF NOT EXISTS accounts (
  id TEXT PRIMARY KEY,
  owner_id TEXT,
  kind TEXT NOT NULL,
  balance INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	transfers := `
CREATE TABLE IF NOT EXISTS transfers (
  id TEXT PRIMARY KEY,
  from_account_id TEXT,
  to_account_id TEXT NOT NULL,
  amount INTEGER NOT NULL,
  kind TEXT NOT NULL,
  batch_id TEXT,
  created_at DATETIME
);`
	stakePositions := `
CREATE TABLE IF NOT EXISTS stake_positions (
  id TEXT PRIMARY KEY,
  participant_id TEXT NOT NULL UNIQUE,
  amount INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	for _, stmt := range []string{accounts, transfers, stakePositions} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func TestRepositoryAccountLifecycle(t *testing.T) {
	db := setupVaultTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	account := &models.Account{
		ID:      uuid.New(),
		OwnerID: &owner,
		Kind:    enums.AccountKindParticipant,
		Balance: 40,
	}
	require.NoError(t, repo.CreateAccount(ctx, account))

	byOwner, err := repo.GetAccountByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, account.ID, byOwner.ID)
	assert.Equal(t, uint64(40), byOwner.Balance)

	require.NoError(t, repo.SaveBalance(ctx, account.ID, 75))

	locked, err := repo.GetAccountForUpdate(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(75), locked.Balance)

	_, err = repo.GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositorySystemAccountRoundTrip(t *testing.T) {
	db := setupVaultTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateAccount(ctx, &models.Account{
		ID:   EscrowVaultID,
		Kind: enums.AccountKindEscrow,
	}))

	escrow, err := repo.GetAccount(ctx, EscrowVaultID)
	require.NoError(t, err)
	assert.Nil(t, escrow.OwnerID)
	assert.Equal(t, enums.AccountKindEscrow, escrow.Kind)
}

func TestRepositoryTransferRow(t *testing.T) {
	db := setupVaultTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	from := uuid.New()
	batchID := uuid.New()
	transfer := &models.Transfer{
		ID:            uuid.New(),
		FromAccountID: &from,
		ToAccountID:   uuid.New(),
		Amount:        125,
		Kind:          enums.TransferKindVaultFunding,
		BatchID:       &batchID,
	}
	require.NoError(t, repo.CreateTransfer(ctx, transfer))

	var count int64
	require.NoError(t, db.Model(&models.Transfer{}).Where("batch_id = ?", batchID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRepositoryStakePosition(t *testing.T) {
	db := setupVaultTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	participant := uuid.New()
	position := &models.StakePosition{
		ID:            uuid.New(),
		ParticipantID: participant,
		Amount:        30,
	}
	require.NoError(t, repo.CreateStakePosition(ctx, position))
	require.NoError(t, repo.SaveStakeAmount(ctx, position.ID, 45))

	reloaded, err := repo.GetStakePositionForUpdate(ctx, participant)
	require.NoError(t, err)
	assert.Equal(t, uint64(45), reloaded.Amount)
}
