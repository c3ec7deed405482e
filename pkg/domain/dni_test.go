package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "qrscan/pkg/domain-errors"
)

// TestParseDNI_Invariants validates the parsing invariant:
// "a DNI is 8 to 10 decimal digits and nothing else"
func TestParseDNI_Invariants(t *testing.T) {
	t.Run("accepts 8, 9 and 10 digits", func(t *testing.T) {
		for _, in := range []string{"12345678", "123456789", "1234567890"} {
			dni, err := ParseDNI(in)
			require.NoError(t, err)
			assert.Equal(t, DNI(in), dni)
			assert.True(t, dni.IsValid())
		}
	})

	t.Run("rejects wrong lengths", func(t *testing.T) {
		for _, in := range []string{"", "1234567", "12345678901"} {
			_, err := ParseDNI(in)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})

	t.Run("rejects non digits and padding", func(t *testing.T) {
		for _, in := range []string{"1234567a", " 12345678", "12345678 ", "１２３４５６７８", "-12345678"} {
			_, err := ParseDNI(in)
			assert.Error(t, err, in)
		}
	})
}
