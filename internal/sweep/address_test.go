package sweep

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddresses(t *testing.T) {
	addrs := Addresses("192.168.1")

	assert.Len(t, addrs, 254)
	assert.Equal(t, "192.168.1.1", addrs[0])
	assert.Equal(t, "192.168.1.254", addrs[len(addrs)-1])
	assert.NotContains(t, addrs, "192.168.1.0")
	assert.NotContains(t, addrs, "192.168.1.255")
}

func TestValidPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   bool
	}{
		{"192.168.1", true},
		{"10.0.0", true},
		{"0.0.0", true},
		{"255.255.255", true},
		{"192.168.1.0", false},
		{"192.168", false},
		{"192.168.256", false},
		{"192.168.-1", false},
		{"192.168.+1", false},
		{"192..1", false},
		{"a.b.c", false},
		{"", false},
		{"1000.1.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidPrefix(tt.prefix))
		})
	}
}
