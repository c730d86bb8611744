package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"eurocredit/core/state"
)

const nativeNamespace = "native/balance"

// NativeDecimals is the fixed precision of the native currency.
const NativeDecimals = 18

// Receiver is invoked when native currency is pushed to an address that
// registered one. Returning an error rejects the payment.
type Receiver interface {
	Receive(from common.Address, amount *uint256.Int) error
}

// ReceiverFunc adapts a function to the Receiver interface.
type ReceiverFunc func(from common.Address, amount *uint256.Int) error

func (f ReceiverFunc) Receive(from common.Address, amount *uint256.Int) error { return f(from, amount) }

// NativeBank tracks balances of the native currency.
type NativeBank struct {
	state *state.StateDB

	mu        sync.RWMutex
	receivers map[common.Address]Receiver
}

// NewNativeBank constructs a bank over the shared state.
func NewNativeBank(st *state.StateDB) *NativeBank {
	return &NativeBank{state: st, receivers: make(map[common.Address]Receiver)}
}

// RegisterReceiver installs a hook run whenever addr receives native funds.
// Passing nil removes the hook.
func (b *NativeBank) RegisterReceiver(addr common.Address, r Receiver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r == nil {
		delete(b.receivers, addr)
		return
	}
	b.receivers[addr] = r
}

func (b *NativeBank) BalanceOf(account common.Address) (*uint256.Int, error) {
	return b.state.GetUint256(state.Key(nativeNamespace, account.Bytes()))
}

// Credit adds amount to account, modelling funds entering the ledger from
// outside (genesis allocations, bridges).
func (b *NativeBank) Credit(account common.Address, amount *uint256.Int) error {
	balance, err := b.BalanceOf(account)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(balance, amount)
	if overflow {
		return ErrSupplyOverflow
	}
	return b.state.SetUint256(state.Key(nativeNamespace, account.Bytes()), next)
}

// Transfer pushes amount from from to to. The recipient's Receiver runs after
// the balances move; its failure fails the transfer and the caller is expected
// to revert state.
func (b *NativeBank) Transfer(from, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		amount = new(uint256.Int)
	}
	balance, err := b.BalanceOf(from)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance.Dec(), amount.Dec())
	}
	if from != to {
		recipient, err := b.BalanceOf(to)
		if err != nil {
			return err
		}
		if err := b.state.SetUint256(state.Key(nativeNamespace, from.Bytes()), new(uint256.Int).Sub(balance, amount)); err != nil {
			return err
		}
		if err := b.state.SetUint256(state.Key(nativeNamespace, to.Bytes()), new(uint256.Int).Add(recipient, amount)); err != nil {
			return err
		}
	}

	b.mu.RLock()
	hook := b.receivers[to]
	b.mu.RUnlock()
	if hook != nil {
		if err := hook.Receive(from, amount); err != nil {
			return fmt.Errorf("token: native recipient rejected payment: %w", err)
		}
	}
	return nil
}
