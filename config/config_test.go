package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, ":8645", cfg.ListenAddress)
	require.Equal(t, "./lendingd-data", cfg.DataDir)
	require.Empty(t, cfg.Assets)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
ListenAddress = ":9000"
DataDir = "/var/lib/lendingd"
Owner = "0x0000000000000000000000000000000000000001"
LedgerAddress = "0x0000000000000000000000000000000000000002"
FaucetAddress = "0x0000000000000000000000000000000000000003"

[[asset]]
Address = "0x0000000000000000000000000000000000000020"
Name = "Demo Dollar"
Symbol = "DUSD"
FaucetBalance = "1000000000000000000000"

[[asset]]
Address = "0x0000000000000000000000000000000000000021"
Name = "Demo Gold"
Symbol = "DGLD"
ScaledCollateralRatio = "1800000000000000000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddress)
	require.Equal(t, "/var/lib/lendingd", cfg.DataDir)
	require.Equal(t, common.HexToAddress("0x01"), cfg.OwnerAddress())
	require.Equal(t, common.HexToAddress("0x02"), cfg.Ledger())
	require.Equal(t, common.HexToAddress("0x03"), cfg.Faucet())
	require.Len(t, cfg.Assets, 2)

	dollar := cfg.Assets[0]
	require.Equal(t, common.HexToAddress("0x20"), dollar.ParsedAddress())
	require.Equal(t, "DUSD", dollar.Symbol)
	want, _ := new(big.Int).SetString("1000000000000000000000", 10)
	require.Equal(t, want, dollar.Balance())
	// No ratio configured: the asset is not accepted as collateral.
	require.Zero(t, dollar.Ratio().Sign())

	gold := cfg.Assets[1]
	ratio, _ := new(big.Int).SetString("1800000000000000000", 10)
	require.Equal(t, ratio, gold.Ratio())
	require.Zero(t, gold.Balance().Sign())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{
			name: "missing owner",
			body: `
LedgerAddress = "0x0000000000000000000000000000000000000002"
`,
		},
		{
			name: "malformed ledger address",
			body: `
Owner = "0x0000000000000000000000000000000000000001"
LedgerAddress = "not-an-address"
`,
		},
		{
			name: "malformed asset ratio",
			body: `
Owner = "0x0000000000000000000000000000000000000001"
LedgerAddress = "0x0000000000000000000000000000000000000002"

[[asset]]
Address = "0x0000000000000000000000000000000000000020"
ScaledCollateralRatio = "-5"
`,
		},
		{
			name: "malformed faucet balance",
			body: `
Owner = "0x0000000000000000000000000000000000000001"
LedgerAddress = "0x0000000000000000000000000000000000000002"

[[asset]]
Address = "0x0000000000000000000000000000000000000020"
FaucetBalance = "lots"
`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
		})
	}
}

func TestFaucetUnsetIsZeroAddress(t *testing.T) {
	path := writeConfig(t, `
Owner = "0x0000000000000000000000000000000000000001"
LedgerAddress = "0x0000000000000000000000000000000000000002"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, common.Address{}, cfg.Faucet())
}
