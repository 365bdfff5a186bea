// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package token defines TokenType, the tagged union identifying which asset
// a pool side or a transfer moves (spec.md GLOSSARY).
package token

import (
	"fmt"

	"swapd/bitcoin/ord/runes"
)

// Kind discriminates a TokenType.
type Kind byte

// TokenType variants.
const (
	Bitcoin Kind = iota
	NativeChainCoin
	WrappedBitcoin
	Rune
)

// TokenType is a comparable tagged union: Bitcoin, NativeChainCoin and
// WrappedBitcoin carry no payload, Rune carries a RuneID. It is valid as a
// map key; the pool registry's associative lookup keys on its String() form.
type TokenType struct {
	Kind   Kind
	RuneID runes.RuneID
}

// NewBitcoin builds the Bitcoin TokenType.
func NewBitcoin() TokenType { return TokenType{Kind: Bitcoin} }

// NewNativeChainCoin builds the NativeChainCoin TokenType.
func NewNativeChainCoin() TokenType { return TokenType{Kind: NativeChainCoin} }

// NewWrappedBitcoin builds the WrappedBitcoin TokenType.
func NewWrappedBitcoin() TokenType { return TokenType{Kind: WrappedBitcoin} }

// NewRune builds a Rune TokenType carrying id.
func NewRune(id runes.RuneID) TokenType { return TokenType{Kind: Rune, RuneID: id} }

// String renders a TokenType for logging and error messages.
func (t TokenType) String() string {
	switch t.Kind {
	case Bitcoin:
		return "Bitcoin"
	case NativeChainCoin:
		return "NativeChainCoin"
	case WrappedBitcoin:
		return "WrappedBitcoin"
	case Rune:
		return fmt.Sprintf("Rune(%s)", t.RuneID.String())
	default:
		return "Unknown"
	}
}
