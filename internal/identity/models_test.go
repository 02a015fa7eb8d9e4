package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
		ok   bool
	}{
		{"pending to verified", StatusPending, StatusVerified, true},
		{"pending to rejected", StatusPending, StatusRejected, true},
		{"rejected re-review to verified", StatusRejected, StatusVerified, true},
		{"rejected to rejected", StatusRejected, StatusRejected, true},
		{"verified to active", StatusVerified, StatusActive, true},
		{"verified to revoked", StatusVerified, StatusRevoked, true},
		{"active to revoked", StatusActive, StatusRevoked, true},

		{"pending to active skips review", StatusPending, StatusActive, false},
		{"pending to revoked skips review", StatusPending, StatusRevoked, false},
		{"verified back to pending", StatusVerified, StatusPending, false},
		{"rejected to revoked", StatusRejected, StatusRevoked, false},
		{"active to verified", StatusActive, StatusVerified, false},

		{"revoked is absorbing: to verified", StatusRevoked, StatusVerified, false},
		{"revoked is absorbing: to active", StatusRevoked, StatusActive, false},
		{"revoked is absorbing: to pending", StatusRevoked, StatusPending, false},
		{"revoked is absorbing: to revoked", StatusRevoked, StatusRevoked, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to))
		})
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusVerified, StatusActive, StatusRejected, StatusRevoked} {
		assert.True(t, ValidStatus(s), string(s))
	}
	assert.False(t, ValidStatus("suspended"))
	assert.False(t, ValidStatus(""))
}

func TestValidateDID(t *testing.T) {
	valid := []string{
		"did:campus:alice",
		"did:campus:9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d",
		"did:ethr:0xAb5801a7",
		"did:web:example.org",
	}
	for _, did := range valid {
		assert.NoError(t, ValidateDID(did), did)
	}

	invalid := []string{
		"",
		"did:campus",
		"did::alice",
		"did:CAMPUS:alice",
		"campus:alice",
		"did:campus:alice bob",
		"did:campus:",
	}
	for _, did := range invalid {
		assert.Error(t, ValidateDID(did), did)
	}
}

func TestValidateWallet(t *testing.T) {
	assert.NoError(t, ValidateWallet("0x"+"ab5801a7d398351b8be11c439e05c5b3259aec9b"))
	assert.NoError(t, ValidateWallet("0x"+"AB5801A7D398351B8BE11C439E05C5B3259AEC9B"))

	invalid := []string{
		"",
		"ab5801a7d398351b8be11c439e05c5b3259aec9b",     // no prefix
		"0xab5801a7d398351b8be11c439e05c5b3259aec",     // too short
		"0xab5801a7d398351b8be11c439e05c5b3259aec9b00", // too long
		"0xzz5801a7d398351b8be11c439e05c5b3259aec9b",   // non-hex
	}
	for _, w := range invalid {
		assert.Error(t, ValidateWallet(w), w)
	}
}
