// Package registry resolves token symbols and addresses to on-chain token
// metadata backed by a CSV table.
package registry

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/operari-hq/acp-trader/pkg/logger"
	"github.com/operari-hq/acp-trader/pkg/models"
)

const (
	// WrappedNativeAddress is the canonical wrapped-native token on Base.
	// The symbol "ETH" resolves here so the swap pipeline only ever deals
	// in ERC-20 addresses.
	WrappedNativeAddress = "0x4200000000000000000000000000000000000006"
	// NativeDecimals is the decimal count for the native asset.
	NativeDecimals = 18
)

// TokenInfo is the resolved metadata for a tradable token.
type TokenInfo struct {
	Symbol   string
	Address  common.Address
	Decimals int
}

// Registry is a lazily loaded, read-only token table. The backing CSV is read
// at most once per process; a missing or malformed file degrades to an empty
// table so address-form identifiers keep resolving.
type Registry struct {
	path   string
	logger logger.Logger

	once      sync.Once
	bySymbol  map[string]TokenInfo
	byAddress map[common.Address]TokenInfo
}

// New creates a registry backed by the CSV file at path. The file is not
// touched until the first Resolve call.
func New(path string, log logger.Logger) *Registry {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Registry{path: path, logger: log}
}

// load parses the CSV table. Expected layout: a header row followed by rows of
// Token,Full Name,Contract Address,Decimals. Rows with a bad address or
// decimal count are skipped, not fatal.
func (r *Registry) load() {
	r.bySymbol = make(map[string]TokenInfo)
	r.byAddress = make(map[common.Address]TokenInfo)

	f, err := os.Open(r.path)
	if err != nil {
		r.logger.ErrorWithScope(logger.Chain, "token table unavailable at %s: %v", r.path, err)
		return
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		r.logger.ErrorWithScope(logger.Chain, "failed to parse token table %s: %v", r.path, err)
		return
	}

	for i, record := range records {
		if i == 0 || len(record) < 4 {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSpace(record[0]))
		address := strings.TrimSpace(record[2])
		if symbol == "" || !common.IsHexAddress(address) {
			continue
		}
		decimals, err := strconv.Atoi(strings.TrimSpace(record[3]))
		if err != nil || decimals < 0 || decimals > 36 {
			continue
		}
		info := TokenInfo{
			Symbol:   symbol,
			Address:  common.HexToAddress(address),
			Decimals: decimals,
		}
		r.bySymbol[symbol] = info
		r.byAddress[info.Address] = info
	}

	r.logger.InfoWithScope(logger.Chain, "loaded %d tokens from %s", len(r.bySymbol), r.path)
}

// Resolve maps a token identifier, either a symbol or a hex address, to its
// metadata.
//
//   - "ETH" (any case) resolves to the wrapped native token with 18 decimals
//   - a hex address resolves to itself; decimals come from the table when the
//     address is listed, otherwise 18 is assumed
//   - any other symbol must be present in the table
func (r *Registry) Resolve(identifier string) (TokenInfo, error) {
	r.once.Do(r.load)

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return TokenInfo{}, models.NewFailure(models.FailureValidation, "token identifier is empty")
	}

	if strings.EqualFold(identifier, "ETH") {
		return TokenInfo{
			Symbol:   "ETH",
			Address:  common.HexToAddress(WrappedNativeAddress),
			Decimals: NativeDecimals,
		}, nil
	}

	if common.IsHexAddress(identifier) {
		addr := common.HexToAddress(identifier)
		if info, exists := r.byAddress[addr]; exists {
			return info, nil
		}
		return TokenInfo{
			Symbol:   addr.Hex(),
			Address:  addr,
			Decimals: NativeDecimals,
		}, nil
	}

	symbol := strings.ToUpper(identifier)
	if info, exists := r.bySymbol[symbol]; exists {
		return info, nil
	}
	return TokenInfo{}, models.NewFailure(models.FailureUnknownToken,
		fmt.Sprintf("unknown token %q: use an address or add it to the token table", identifier))
}

// ToBaseUnits converts a decimal amount string into the token's integer base
// units, truncating any precision beyond the token's decimals.
func ToBaseUnits(amount string, decimals int) (string, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" || strings.HasPrefix(amount, "-") {
		return "", models.NewFailure(models.FailureValidation, "amount must be a positive decimal number")
	}

	whole, frac := amount, ""
	if dot := strings.IndexByte(amount, '.'); dot >= 0 {
		whole, frac = amount[:dot], amount[dot+1:]
	}
	if whole == "" {
		whole = "0"
	}
	for _, part := range []string{whole, frac} {
		for _, c := range part {
			if c < '0' || c > '9' {
				return "", models.NewFailure(models.FailureValidation,
					fmt.Sprintf("amount %q is not a decimal number", amount))
			}
		}
	}

	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))

	units := strings.TrimLeft(whole+frac, "0")
	if units == "" {
		return "", models.NewFailure(models.FailureValidation, "amount must be greater than zero")
	}
	return units, nil
}
