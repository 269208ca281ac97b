package isolation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSharingLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected SharingLevel
		ok       bool
	}{
		{"TENANT", SharingLevelTenant, true},
		{"tenant", SharingLevelTenant, true},
		{"  Organization ", SharingLevelOrganization, true},
		{"PLATFORM", SharingLevelPlatform, true},
		{"user", SharingLevelUser, true},
		{"workspace", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, ok := ParseSharingLevel(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, level)
			}
		})
	}
}

func TestSharingLevel_Rank(t *testing.T) {
	// Broader levels rank lower
	assert.Less(t, SharingLevelPlatform.Rank(), SharingLevelTenant.Rank())
	assert.Less(t, SharingLevelTenant.Rank(), SharingLevelOrganization.Rank())
	assert.Less(t, SharingLevelOrganization.Rank(), SharingLevelDepartment.Rank())
	assert.Less(t, SharingLevelDepartment.Rank(), SharingLevelUser.Rank())
	assert.Equal(t, -1, SharingLevel("BOGUS").Rank())
}

func TestSharingLevel_Tier(t *testing.T) {
	tests := []struct {
		level    SharingLevel
		expected PermissionTier
	}{
		{SharingLevelPlatform, PermissionTierOwner},
		{SharingLevelTenant, PermissionTierAdmin},
		{SharingLevelOrganization, PermissionTierWrite},
		{SharingLevelDepartment, PermissionTierRead},
		{SharingLevelUser, PermissionTierRead},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.Tier())
		})
	}
}
