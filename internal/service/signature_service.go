package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACSignatureService implements ports.SignatureService using HMAC-SHA256
// under a single server-held key.
type HMACSignatureService struct {
	key []byte
}

// NewHMACSignatureService creates a round signer keyed by secretKey.
func NewHMACSignatureService(secretKey string) *HMACSignatureService {
	return &HMACSignatureService{key: []byte(secretKey)}
}

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func (s *HMACSignatureService) Sign(payload string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature in constant time.
func (s *HMACSignatureService) Verify(payload string, signature string) bool {
	expected := s.Sign(payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
