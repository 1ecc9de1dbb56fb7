package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/emory-libraries/fedora-indexdata/internal/access/mocks"
	"github.com/emory-libraries/fedora-indexdata/internal/config"
)

func TestCedarGuard_IsDenied(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		allowList  *config.AllowList
		remoteAddr string
		wantDenied bool
	}{
		{
			name:       "any sentinel allows loopback",
			allowList:  &config.AllowList{Any: true},
			remoteAddr: "127.0.0.1:52100",
		},
		{
			name:       "any sentinel allows arbitrary address",
			allowList:  &config.AllowList{Any: true},
			remoteAddr: "203.0.113.9:80",
		},
		{
			name:       "listed address is allowed",
			allowList:  &config.AllowList{Addresses: []string{"127.0.0.1"}},
			remoteAddr: "127.0.0.1:52100",
		},
		{
			name:       "address without port is matched",
			allowList:  &config.AllowList{Addresses: []string{"10.0.0.5", "127.0.0.1"}},
			remoteAddr: "10.0.0.5",
		},
		{
			name:       "unlisted address is denied",
			allowList:  &config.AllowList{Addresses: []string{"0.13.23.134"}},
			remoteAddr: "127.0.0.1:52100",
			wantDenied: true,
		},
		{
			name:       "prefix of a listed address is denied",
			allowList:  &config.AllowList{Addresses: []string{"127.0.0.10"}},
			remoteAddr: "127.0.0.1:52100",
			wantDenied: true,
		},
		{
			name:       "empty list denies everyone",
			allowList:  &config.AllowList{},
			remoteAddr: "127.0.0.1:52100",
			wantDenied: true,
		},
		{
			name:       "ipv6 loopback",
			allowList:  &config.AllowList{Addresses: []string{"::1"}},
			remoteAddr: "[::1]:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			guard, err := NewGuard(config.NewStaticManager(&config.Config{AllowedIPs: tt.allowList}))
			require.NoError(t, err)

			denied, err := guard.IsDenied(context.Background(), tt.remoteAddr)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDenied, denied)
		})
	}
}

func TestCedarGuard_MissingPolicy(t *testing.T) {
	t.Parallel()

	guard, err := NewGuard(config.NewStaticManager(&config.Config{SolrURL: "http://solr/"}))
	require.NoError(t, err)

	denied, err := guard.IsDenied(context.Background(), "127.0.0.1:1")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfigurationMissing)
	assert.False(t, denied)
}

func TestCedarGuard_ReadsConfigOnEveryCheck(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	source := mocks.NewMockConfigSource(ctrl)

	gomock.InOrder(
		source.EXPECT().GetConfig().Return(&config.Config{AllowedIPs: &config.AllowList{Any: true}}),
		source.EXPECT().GetConfig().Return(&config.Config{AllowedIPs: &config.AllowList{Addresses: []string{"10.1.1.1"}}}),
	)

	guard, err := NewGuard(source)
	require.NoError(t, err)

	denied, err := guard.IsDenied(context.Background(), "127.0.0.1:9000")
	require.NoError(t, err)
	assert.False(t, denied)

	denied, err = guard.IsDenied(context.Background(), "127.0.0.1:9000")
	require.NoError(t, err)
	assert.True(t, denied)
}

func TestNewGuard_RequiresSource(t *testing.T) {
	t.Parallel()

	_, err := NewGuard(nil)
	require.Error(t, err)
}

func TestHostOnly(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "127.0.0.1", HostOnly("127.0.0.1:80"))
	assert.Equal(t, "127.0.0.1", HostOnly("127.0.0.1"))
	assert.Equal(t, "::1", HostOnly("[::1]:443"))
	assert.Equal(t, "", HostOnly(""))
}
