// Package token provides state-backed collaborator ledgers: fungible tokens
// with a single mint authority and the native currency bank.
package token

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"eurocredit/core/state"
)

var (
	ErrUnauthorized          = errors.New("token: caller is not the mint authority")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrZeroAddress           = errors.New("token: zero address")
	ErrInvalidAmount         = errors.New("token: amount must be positive")
	ErrSupplyOverflow        = errors.New("token: supply overflow")
)

const (
	balanceNamespace   = "token/balance"
	allowanceNamespace = "token/allowance"
	supplyNamespace    = "token/supply"
	authorityNamespace = "token/authority"
)

// Token is an ERC-20 style ledger persisted in the shared state. Minting and
// burning are reserved to a single authority address.
type Token struct {
	state    *state.StateDB
	symbol   string
	decimals uint8
}

// New opens the token ledger registered under symbol. On first use authority
// is recorded as the only address allowed to mint and burn; an authority
// already present in state is kept.
func New(st *state.StateDB, symbol string, decimals uint8, authority common.Address) (*Token, error) {
	if st == nil {
		return nil, fmt.Errorf("token: state not configured")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("token: symbol required")
	}
	if authority == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	t := &Token{state: st, symbol: symbol, decimals: decimals}
	existing, err := st.Get(t.authorityKey())
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		st.Put(t.authorityKey(), authority.Bytes())
	}
	return t, nil
}

func (t *Token) Symbol() string  { return t.symbol }
func (t *Token) Decimals() uint8 { return t.decimals }

// Authority returns the address allowed to mint and burn.
func (t *Token) Authority() (common.Address, error) {
	raw, err := t.state.Get(t.authorityKey())
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(raw), nil
}

// TransferAuthority hands mint/burn rights to next. Only the current
// authority may call it.
func (t *Token) TransferAuthority(caller, next common.Address) error {
	if err := t.requireAuthority(caller); err != nil {
		return err
	}
	if next == (common.Address{}) {
		return ErrZeroAddress
	}
	t.state.Put(t.authorityKey(), next.Bytes())
	return nil
}

func (t *Token) TotalSupply() (*uint256.Int, error) {
	return t.state.GetUint256(t.supplyKey())
}

func (t *Token) BalanceOf(account common.Address) (*uint256.Int, error) {
	return t.state.GetUint256(t.balanceKey(account))
}

func (t *Token) Allowance(owner, spender common.Address) (*uint256.Int, error) {
	return t.state.GetUint256(t.allowanceKey(owner, spender))
}

// Approve sets the amount spender may move out of owner's balance.
func (t *Token) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrZeroAddress
	}
	return t.state.SetUint256(t.allowanceKey(owner, spender), amount)
}

// Transfer moves amount from the caller's balance to to.
func (t *Token) Transfer(from, to common.Address, amount *uint256.Int) error {
	return t.move(from, to, amount)
}

// TransferFrom moves amount from from to to on behalf of spender, consuming
// allowance. A spender moving its own balance needs no allowance.
func (t *Token) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	if spender != from {
		allowance, err := t.Allowance(from, spender)
		if err != nil {
			return err
		}
		if allowance.Lt(amount) {
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowance.Dec(), amount.Dec())
		}
		if err := t.state.SetUint256(t.allowanceKey(from, spender), new(uint256.Int).Sub(allowance, amount)); err != nil {
			return err
		}
	}
	return t.move(from, to, amount)
}

// Mint creates amount new tokens for to.
func (t *Token) Mint(caller, to common.Address, amount *uint256.Int) error {
	if err := t.requireAuthority(caller); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	supply, err := t.TotalSupply()
	if err != nil {
		return err
	}
	nextSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return ErrSupplyOverflow
	}
	balance, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := t.state.SetUint256(t.supplyKey(), nextSupply); err != nil {
		return err
	}
	return t.state.SetUint256(t.balanceKey(to), new(uint256.Int).Add(balance, amount))
}

// Burn destroys amount tokens from the caller's own balance.
func (t *Token) Burn(caller common.Address, amount *uint256.Int) error {
	if err := t.requireAuthority(caller); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	balance, err := t.BalanceOf(caller)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance.Dec(), amount.Dec())
	}
	supply, err := t.TotalSupply()
	if err != nil {
		return err
	}
	if err := t.state.SetUint256(t.balanceKey(caller), new(uint256.Int).Sub(balance, amount)); err != nil {
		return err
	}
	return t.state.SetUint256(t.supplyKey(), new(uint256.Int).Sub(supply, amount))
}

func (t *Token) move(from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	balance, err := t.BalanceOf(from)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	recipient, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := t.state.SetUint256(t.balanceKey(from), new(uint256.Int).Sub(balance, amount)); err != nil {
		return err
	}
	return t.state.SetUint256(t.balanceKey(to), new(uint256.Int).Add(recipient, amount))
}

func (t *Token) requireAuthority(caller common.Address) error {
	authority, err := t.Authority()
	if err != nil {
		return err
	}
	if caller != authority {
		return ErrUnauthorized
	}
	return nil
}

func (t *Token) balanceKey(account common.Address) []byte {
	return state.Key(balanceNamespace, []byte(t.symbol), account.Bytes())
}

func (t *Token) allowanceKey(owner, spender common.Address) []byte {
	return state.Key(allowanceNamespace, []byte(t.symbol), owner.Bytes(), spender.Bytes())
}

func (t *Token) supplyKey() []byte {
	return state.Key(supplyNamespace, []byte(t.symbol))
}

func (t *Token) authorityKey() []byte {
	return state.Key(authorityNamespace, []byte(t.symbol))
}
