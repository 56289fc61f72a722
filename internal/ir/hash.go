package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainSource     = "automata/source/v1"
	DomainDefinition = "automata/definition/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SourceHash identifies a raw source document.
func SourceHash(text string) string {
	return hashWithDomain(DomainSource, []byte(text))
}

// DefinitionHash identifies a definition by key, normalized text and
// dependency list.
func DefinitionHash(src DefinitionSource) (string, error) {
	deps := src.Dependencies
	if deps == nil {
		deps = []DefinitionKey{}
	}
	data, err := json.Marshal(struct {
		Key  DefinitionKey   `json:"key"`
		Text string          `json:"text"`
		Deps []DefinitionKey `json:"deps"`
	}{src.Key, NormalizeText(src.Text), deps})
	if err != nil {
		return "", fmt.Errorf("DefinitionHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDefinition, data), nil
}

// MustDefinitionHash is like DefinitionHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDefinitionHash(src DefinitionSource) string {
	h, err := DefinitionHash(src)
	if err != nil {
		panic(err)
	}
	return h
}
