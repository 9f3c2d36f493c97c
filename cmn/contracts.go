package cmn

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const NOT_READY_WARNING = "Set vault, NAIRA, USDC, and Aave pool addresses in config."

// Contracts holds the resolved contract addresses. A nil field means the
// address was missing or malformed.
type Contracts struct {
	Vault      *common.Address
	NairaToken *common.Address
	UsdcToken  *common.Address
	AavePool   *common.Address
}

func (c *SConfig) Contracts() Contracts {
	return Contracts{
		Vault:      ResolveAddress(c.VaultAddress),
		NairaToken: ResolveAddress(c.NairaTokenAddress),
		UsdcToken:  ResolveAddress(c.UsdcTokenAddress),
		AavePool:   ResolveAddress(c.AavePoolAddress),
	}
}

func (c Contracts) Ready() bool {
	return c.Vault != nil && c.NairaToken != nil && c.UsdcToken != nil && c.AavePool != nil
}

func ResolveAddress(s string) *common.Address {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return nil
	}
	a := common.HexToAddress(s)
	return &a
}
