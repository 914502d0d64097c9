package config

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"web3mail/internal/validation"
)

// DefaultChain is used when the caller does not name one.
const DefaultChain = "bellecour"

//go:embed chains.yaml
var chainsYAML []byte

// SDKConfig is the fully resolved configuration a web3mail client runs with.
type SDKConfig struct {
	ChainID                uint64 `yaml:"chainId"`
	DappAddress            string `yaml:"dappAddress" validate:"required,address_or_ens"`
	WhitelistSmartContract string `yaml:"whitelistSmartContract" validate:"omitempty,address"`
	ProdWorkerpoolAddress  string `yaml:"prodWorkerpoolAddress" validate:"required,address_or_ens"`
	DataProtectorSubgraph  string `yaml:"dataProtectorSubgraph" validate:"required,url"`
	IPFSGateway            string `yaml:"ipfsGateway" validate:"required,url"`
	IPFSNode               string `yaml:"ipfsNode" validate:"required,url"`
	CallbackContract       string `yaml:"callbackContract" validate:"omitempty,address"`
}

type chainsFile struct {
	Chains map[string]SDKConfig `yaml:"chains"`
}

// ResolveSDKConfig merges the embedded defaults of chain (a name or a chain id)
// with the non-empty fields of overrides and validates the result. An empty
// chain selects DefaultChain.
func ResolveSDKConfig(chain string, overrides SDKConfig) (*SDKConfig, error) {
	var file chainsFile
	if err := yaml.Unmarshal(chainsYAML, &file); err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "embedded chain defaults are invalid", Err: err}
	}

	if chain == "" {
		chain = DefaultChain
	}
	base, ok := lookupChain(file.Chains, chain)
	if !ok {
		return nil, &ConfigError{Type: ErrUnknownChain, Message: fmt.Sprintf("no defaults for chain %q", chain)}
	}

	cfg := mergeSDKConfig(base, overrides)
	cfg.DappAddress = validation.NormalizeAddressOrENS(cfg.DappAddress)
	cfg.ProdWorkerpoolAddress = validation.NormalizeAddressOrENS(cfg.ProdWorkerpoolAddress)
	cfg.WhitelistSmartContract = strings.ToLower(cfg.WhitelistSmartContract)
	cfg.CallbackContract = strings.ToLower(cfg.CallbackContract)

	if err := validation.New(nil).Struct(cfg); err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "SDK configuration validation failed", Err: err}
	}
	return &cfg, nil
}

func lookupChain(chains map[string]SDKConfig, chain string) (SDKConfig, bool) {
	if cfg, ok := chains[strings.ToLower(chain)]; ok {
		return cfg, true
	}
	id, err := strconv.ParseUint(chain, 10, 64)
	if err != nil {
		return SDKConfig{}, false
	}
	for _, cfg := range chains {
		if cfg.ChainID == id {
			return cfg, true
		}
	}
	return SDKConfig{}, false
}

func mergeSDKConfig(base, o SDKConfig) SDKConfig {
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&base.DappAddress, o.DappAddress)
	pick(&base.WhitelistSmartContract, o.WhitelistSmartContract)
	pick(&base.ProdWorkerpoolAddress, o.ProdWorkerpoolAddress)
	pick(&base.DataProtectorSubgraph, o.DataProtectorSubgraph)
	pick(&base.IPFSGateway, o.IPFSGateway)
	pick(&base.IPFSNode, o.IPFSNode)
	pick(&base.CallbackContract, o.CallbackContract)
	return base
}
