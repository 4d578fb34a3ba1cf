package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeE164(t *testing.T) {
	assert.Equal(t, "+60123456789", NormalizeE164(" 012-345 6789 ", "MY"))
	assert.Equal(t, "+60123456789", NormalizeE164("+60 12-345 6789", "NL"))
	assert.Equal(t, "", NormalizeE164("   ", "MY"))
	assert.Equal(t, "ext. front desk", NormalizeE164("ext. front desk", "MY"))
}
