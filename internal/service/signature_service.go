package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// signaturePrefix names the MAC so receivers can tell schemes apart.
const signaturePrefix = "sha256="

// HMACSignatureService signs settlement notifications so a receiver can check
// they came from this ledger. Signatures look like "sha256=<lowercase hex>".
type HMACSignatureService struct{}

func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	return signaturePrefix + hex.EncodeToString(mac(secretKey, payload))
}

// Verify accepts upper or lower case hex and compares in constant time.
func (s *HMACSignatureService) Verify(secretKey string, payload string, signature string) bool {
	encoded, ok := strings.CutPrefix(signature, signaturePrefix)
	if !ok {
		return false
	}
	got, err := hex.DecodeString(encoded)
	if err != nil {
		return false
	}
	return hmac.Equal(mac(secretKey, payload), got)
}

func mac(secretKey, payload string) []byte {
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write([]byte(payload))
	return h.Sum(nil)
}
