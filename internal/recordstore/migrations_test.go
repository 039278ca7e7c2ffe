package recordstore

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_FreshStore(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, Migrate(s, zerolog.Nop()))

	version, err := SchemaVersion(s)
	require.NoError(t, err)
	assert.Equal(t, len(Migrations), version)

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{KeySchemaVersion}, keys)
}

func TestMigrate_BackfillsFrozenAmount(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetRaw(domain.KeyAccountFunds, json.RawMessage(`{
		"default": {"balances": {"HKD": 100}, "totalDeposit": {"HKD": 100}, "totalWithdraw": {"HKD": 0}}
	}`)))

	require.NoError(t, Migrate(s, zerolog.Nop()))

	var funds map[string]domain.AccountFunds
	_, err := s.Get(domain.KeyAccountFunds, &funds)
	require.NoError(t, err)

	f := funds["default"]
	assert.Equal(t, "default", f.AccountID)
	assert.True(t, f.FrozenAmount.Get(domain.CurrencyHKD).IsZero())
	assert.Equal(t, "100", f.Balances.Get(domain.CurrencyHKD).String())
}

func TestMigrate_NormalizesLegacyRecords(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetRaw(domain.KeyFundRecords, json.RawMessage(`[
		{"id": "f1", "accountId": "default", "type": "deposit", "amount": 10000, "datetime": "2024-03-01 09:30:00", "createTime": 1709256600000}
	]`)))
	require.NoError(t, s.SetRaw(domain.KeyBusinessTransactions, json.RawMessage(`[
		{"id": "t1", "accountId": "default", "type": "allot", "amount": 2500, "fees": 0, "datetime": "2024-03-05T10:00:00+08:00", "businessDate": "2024-03-05"},
		{"id": "t2", "accountId": "default", "type": "subscription", "amount": 5150, "fees": 150, "datetime": "2024-03-01T10:00:00+08:00"}
	]`)))
	require.NoError(t, s.SetRaw(domain.KeyStocks, json.RawMessage(`[
		{"id": "s1", "stockName": "Acme", "issuePrice": 5, "subscriptionHands": 10}
	]`)))

	require.NoError(t, Migrate(s, zerolog.Nop()))

	var records []domain.CashMovement
	_, err := s.Get(domain.KeyFundRecords, &records)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.StatusCompleted, records[0].Status)
	assert.Equal(t, domain.CurrencyHKD, records[0].Currency)
	assert.Equal(t, records[0].Datetime.UnixMilli(), records[0].Timestamp)
	assert.Equal(t, int64(1709256600000), records[0].CreateTime.UnixMilli())

	var txns []domain.BusinessTransaction
	_, err = s.Get(domain.KeyBusinessTransactions, &txns)
	require.NoError(t, err)
	require.Len(t, txns, 1, "unknown type must be quarantined")
	assert.Equal(t, "t1", txns[0].ID)
	require.NotNil(t, txns[0].BusinessDate)
	assert.Equal(t, time.March, txns[0].BusinessDate.Month())
	assert.NotZero(t, txns[0].Timestamp)

	var quarantine map[string][]map[string]interface{}
	found, err := s.Get(KeyQuarantine, &quarantine)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, quarantine[domain.KeyBusinessTransactions], 1)
	assert.Equal(t, "t2", quarantine[domain.KeyBusinessTransactions][0]["id"])

	var stocks []domain.Position
	_, err = s.Get(domain.KeyStocks, &stocks)
	require.NoError(t, err)
	require.Len(t, stocks, 1)
	assert.Equal(t, domain.PositionOngoing, stocks[0].Status)
	assert.Equal(t, domain.DefaultBoardLot, stocks[0].BoardLot)
	assert.Equal(t, domain.DefaultAccountID, stocks[0].AccountID)
}

func TestMigrate_NormalizesPositionAndAccountTimes(t *testing.T) {
	s := NewMemoryStore()
	// stores migrated before position times were handled
	require.NoError(t, s.Set(KeySchemaVersion, 4))
	require.NoError(t, s.SetRaw(domain.KeyStocks, json.RawMessage(`[
		{"id": "stock_1", "accountId": "default", "stockName": "Acme", "issuePrice": 5, "packageFee": 100,
		 "subscriptionHands": 5, "boardLot": 100, "status": "ongoing", "winningShares": 500,
		 "winningTime": 1700000000000, "createTime": 1699000000000,
		 "sellTime": "2023-11-20 10:00:00", "updateTime": ""},
		{"id": "stock_2", "accountId": "default", "stockName": "Beta", "issuePrice": 2, "subscriptionHands": 1,
		 "boardLot": 100, "status": "ongoing", "createTime": "2023-11-01", "winningTime": null}
	]`)))
	require.NoError(t, s.SetRaw(domain.KeyAccounts, json.RawMessage(`[
		{"id": "default", "name": "Default", "isDefault": true, "createTime": 1698000000000}
	]`)))

	require.NoError(t, Migrate(s, zerolog.Nop()))

	var stocks []domain.Position
	_, err := s.Get(domain.KeyStocks, &stocks)
	require.NoError(t, err)
	require.Len(t, stocks, 2)

	acme := stocks[0]
	assert.Equal(t, int64(1699000000000), acme.CreateTime.UnixMilli())
	require.NotNil(t, acme.WinningTime)
	assert.Equal(t, int64(1700000000000), acme.WinningTime.UnixMilli())
	require.NotNil(t, acme.SellTime)
	assert.Equal(t, 20, acme.SellTime.Day())
	assert.Nil(t, acme.UpdateTime)

	beta := stocks[1]
	assert.Equal(t, time.November, beta.CreateTime.Month())
	assert.Nil(t, beta.WinningTime)
	assert.False(t, beta.Allotted())

	var accounts []domain.Account
	_, err = s.Get(domain.KeyAccounts, &accounts)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, int64(1698000000000), accounts[0].CreateTime.UnixMilli())

	version, err := SchemaVersion(s)
	require.NoError(t, err)
	assert.Equal(t, len(Migrations), version)
}

func TestMigrate_RejectsUnreadablePositionTime(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set(KeySchemaVersion, 4))
	require.NoError(t, s.SetRaw(domain.KeyStocks, json.RawMessage(`[{"id": "stock_1", "createTime": "last week"}]`)))

	err := Migrate(s, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "normalize_position_times")

	version, err := SchemaVersion(s)
	require.NoError(t, err)
	assert.Equal(t, 4, version)
}

func TestMigrate_SkipsAppliedVersions(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set(KeySchemaVersion, len(Migrations)))
	// would fail frozen-amount decoding if migration 1 ran again
	require.NoError(t, s.SetRaw(domain.KeyAccountFunds, json.RawMessage(`[]`)))

	assert.NoError(t, Migrate(s, zerolog.Nop()))
}

func TestMigrate_StopsAtFailedStep(t *testing.T) {
	original := Migrations
	defer func() { Migrations = original }()

	boom := errors.New("boom")
	ran := 0
	Migrations = []Migration{
		{Version: 1, Name: "ok", Up: func(RawStore) error { ran++; return nil }},
		{Version: 2, Name: "fails", Up: func(RawStore) error { return boom }},
		{Version: 3, Name: "never", Up: func(RawStore) error { ran++; return nil }},
	}

	s := NewMemoryStore()
	err := Migrate(s, zerolog.Nop())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ran)

	version, err := SchemaVersion(s)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestParseLegacyTime(t *testing.T) {
	for _, in := range []string{"2024-03-01", "2024-03-01 09:30:00", "2024/03/01", "2024-03-01T09:30:00Z"} {
		_, err := parseLegacyTime(in)
		assert.NoError(t, err, in)
	}
	_, err := parseLegacyTime("yesterday")
	assert.Error(t, err)
}
