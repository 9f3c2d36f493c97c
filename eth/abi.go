package eth

import (
	_ "embed"
	"encoding/json"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/rs/zerolog/log"
)

//go:embed ABI/ERC20.json
var ERC20_ABI_JSON []byte

//go:embed ABI/TreasuryVault.json
var VAULT_ABI_JSON []byte

//go:embed ABI/AavePool.json
var AAVE_POOL_ABI_JSON []byte

//go:embed ABI/MockAavePool.json
var MOCK_AAVE_POOL_ABI_JSON []byte

var ERC20 = mustLoadABI("ERC20", ERC20_ABI_JSON)
var VAULT = mustLoadABI("TreasuryVault", VAULT_ABI_JSON)
var AAVE_POOL = mustLoadABI("AavePool", AAVE_POOL_ABI_JSON)
var MOCK_AAVE_POOL = mustLoadABI("MockAavePool", MOCK_AAVE_POOL_ABI_JSON)

const (
	EVENT_FUNDS_RECEIVED = "FundsReceived"
	EVENT_FUNDS_SUPPLIED = "FundsSupplied"
)

func mustLoadABI(name string, data []byte) abi.ABI {
	var a abi.ABI
	err := json.Unmarshal(data, &a)
	if err != nil {
		log.Fatal().Msgf("Error unmarshaling %s ABI: %v\n", name, err)
	}
	return a
}
