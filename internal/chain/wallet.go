// Package chain — wallet.go хранит ключи подписи, доступные процессу.
// Пустой кошелёк — режим только просмотра.
package chain

import (
	"crypto/ecdsa"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet — набор ключей, найденных по адресу.
type Wallet struct {
	keys map[string]*ecdsa.PrivateKey
}

// ParseWallet разбирает hex-ключи (с 0x или без). Пустые строки пропускаются.
func ParseWallet(hexKeys []string) (*Wallet, error) {
	w := &Wallet{keys: make(map[string]*ecdsa.PrivateKey, len(hexKeys))}
	for i, raw := range hexKeys {
		raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
		if raw == "" {
			continue
		}
		key, err := crypto.HexToECDSA(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid private key #%d: %w", i+1, err)
		}
		addr := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
		w.keys[addr] = key
	}
	return w, nil
}

// Key возвращает ключ для адреса.
func (w *Wallet) Key(address string) (*ecdsa.PrivateKey, bool) {
	if w == nil {
		return nil, false
	}
	key, ok := w.keys[strings.ToLower(strings.TrimSpace(address))]
	return key, ok
}

// Has сообщает, может ли процесс подписать клейм от имени адреса.
func (w *Wallet) Has(address string) bool {
	_, ok := w.Key(address)
	return ok
}

// Empty — ключей нет, доступен только просмотр.
func (w *Wallet) Empty() bool {
	return w == nil || len(w.keys) == 0
}

// Addresses возвращает адреса ключей в отсортированном порядке.
func (w *Wallet) Addresses() []string {
	if w == nil {
		return nil
	}
	out := make([]string, 0, len(w.keys))
	for addr := range w.keys {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}
