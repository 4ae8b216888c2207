package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const secret = "rzp_test_secret"

func TestRoundTrip(t *testing.T) {
	sig := Sign("order_ABC", "pay_XYZ", secret)
	assert.Len(t, sig, 64)
	assert.True(t, Verify("order_ABC", "pay_XYZ", sig, secret))
}

func TestKnownVector(t *testing.T) {
	// echo -n "order_ABC|pay_XYZ" | openssl dgst -sha256 -hmac rzp_test_secret
	assert.Equal(t, "f23e1ffc8fb026b82e090b1d8f34c55c706c5fe9c4f5ad75cc5328f2d5ee6726", Sign("order_ABC", "pay_XYZ", secret))
}

func TestSingleCharacterMutation(t *testing.T) {
	sig := Sign("order_ABC", "pay_XYZ", secret)

	for i := range sig {
		b := []byte(sig)
		if b[i] == '0' {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
		assert.False(t, Verify("order_ABC", "pay_XYZ", string(b), secret), "mutated at %d", i)
	}

	assert.False(t, Verify("order_ABD", "pay_XYZ", sig, secret))
	assert.False(t, Verify("order_ABC", "pay_XYz", sig, secret))
	assert.False(t, Verify("order_ABC", "pay_XYZ", sig, secret+"x"))
}

func TestRejectsMalformed(t *testing.T) {
	assert.False(t, Verify("o", "p", "", secret))
	assert.False(t, Verify("o", "p", "not-hex", secret))
	assert.False(t, Verify("o", "p", Sign("o", "p", ""), ""))
}

func TestSeparatorMatters(t *testing.T) {
	assert.NotEqual(t, Sign("ab", "c", secret), Sign("a", "bc", secret))
}

func TestVerifyPayload(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	sig := SignPayload(body, "whsec")
	assert.True(t, VerifyPayload(body, sig, "whsec"))
	assert.False(t, VerifyPayload(append(body, ' '), sig, "whsec"))
}

func TestRejectsNonCanonicalForms(t *testing.T) {
	sig := Sign("order_ABC", "pay_XYZ", secret)

	for i, c := range sig {
		if c < 'a' || c > 'f' {
			continue
		}
		b := []byte(sig)
		b[i] = byte(c - 'a' + 'A')
		assert.False(t, Verify("order_ABC", "pay_XYZ", string(b), secret), "upper-cased at %d", i)
	}

	assert.False(t, Verify("order_ABC", "pay_XYZ", " "+sig, secret))
	assert.False(t, Verify("order_ABC", "pay_XYZ", sig+"\n", secret))
	assert.False(t, Verify("order_ABC", "pay_XYZ", sig[:63], secret))
}
