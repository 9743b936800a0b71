package main

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// GenerateID returns a random hex string of the given byte length
func GenerateID(byteLen int) string {
	b := make([]byte, byteLen)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// GenerateGameCode returns a 4-digit join code ("1000".."9999")
func GenerateGameCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "1000"
	}
	code := n.Int64() + 1000
	return string([]byte{
		byte('0' + code/1000),
		byte('0' + code/100%10),
		byte('0' + code/10%10),
		byte('0' + code%10),
	})
}
