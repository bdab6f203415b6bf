package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := `1767323045.{"eventType":"IOU_SETTLED","data":{"id":1,"amount":"12.5"}}`

	signature := svc.Sign("notify-secret", payload)

	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, signature)
	assert.True(t, svc.Verify("notify-secret", payload, signature))
	assert.True(t, svc.Verify("notify-secret", payload, "sha256="+strings.ToUpper(strings.TrimPrefix(signature, "sha256="))))
}

func TestHMACSignatureService_VerifyRejects(t *testing.T) {
	svc := NewHMACSignatureService()
	good := svc.Sign("key", "1.body")

	tests := []struct {
		name      string
		key       string
		payload   string
		signature string
	}{
		{"wrong key", "other", "1.body", good},
		{"tampered payload", "key", "1.bodY", good},
		{"replayed under new timestamp", "key", "2.body", good},
		{"missing prefix", "key", "1.body", strings.TrimPrefix(good, "sha256=")},
		{"not hex", "key", "1.body", "sha256=zz"},
		{"truncated", "key", "1.body", good[:len(good)-2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, svc.Verify(tt.key, tt.payload, tt.signature))
		})
	}
}

func TestHMACSignatureService_KnownVector(t *testing.T) {
	svc := NewHMACSignatureService()

	// RFC 4231 test case 2
	assert.Equal(t,
		"sha256=5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
		svc.Sign("Jefe", "what do ya want for nothing?"))
}
