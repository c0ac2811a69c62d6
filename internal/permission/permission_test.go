package permission

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPlatform records checks and requests.
type mockPlatform struct {
	os         string
	version    int
	versionErr error
	granted    map[Permission]bool
	checkErr   error
	answer     map[Permission]Result
	requestErr error

	checked   []Permission
	requested [][]Permission
}

func (m *mockPlatform) OS() string { return m.os }

func (m *mockPlatform) Version() (int, error) { return m.version, m.versionErr }

func (m *mockPlatform) Check(_ context.Context, p Permission) (bool, error) {
	m.checked = append(m.checked, p)
	if m.checkErr != nil {
		return false, m.checkErr
	}
	return m.granted[p], nil
}

func (m *mockPlatform) RequestMultiple(_ context.Context, perms []Permission) (map[Permission]Result, error) {
	m.requested = append(m.requested, append([]Permission(nil), perms...))
	if m.requestErr != nil {
		return nil, m.requestErr
	}
	return m.answer, nil
}

func allGranted(perms ...Permission) map[Permission]bool {
	m := make(map[Permission]bool)
	for _, p := range perms {
		m[p] = true
	}
	return m
}

func answerAll(r Result, perms ...Permission) map[Permission]Result {
	m := make(map[Permission]Result)
	for _, p := range perms {
		m[p] = r
	}
	return m
}

func TestRequired(t *testing.T) {
	assert.ElementsMatch(t, []Permission{FineLocation, CoarseLocation}, Required(30))
	assert.ElementsMatch(t, []Permission{FineLocation, CoarseLocation, BluetoothScan, BluetoothConnect}, Required(31))
}

func TestAuthorizeNonMobileAlwaysTrue(t *testing.T) {
	p := &mockPlatform{os: "linux"}
	assert.True(t, NewGate(p).Authorize(context.Background()))
	assert.Empty(t, p.checked, "non-mobile platform was checked")
	assert.Empty(t, p.requested, "non-mobile platform was prompted")
}

func TestAuthorizePreGrantedDoesNotPrompt(t *testing.T) {
	for _, version := range []int{29, 31, 34} {
		t.Run(fmt.Sprintf("sdk%d", version), func(t *testing.T) {
			p := &mockPlatform{
				os:      MobileOS,
				version: version,
				granted: allGranted(Required(version)...),
			}
			assert.True(t, NewGate(p).Authorize(context.Background()))
			assert.Empty(t, p.requested)
		})
	}
}

func TestAuthorizeOldSDKNeverAsksForBluetooth(t *testing.T) {
	for version := 23; version < BluetoothPermissionsSDK; version++ {
		p := &mockPlatform{
			os:      MobileOS,
			version: version,
			granted: map[Permission]bool{},
			answer:  answerAll(Granted, FineLocation, CoarseLocation),
		}
		assert.True(t, NewGate(p).Authorize(context.Background()), "sdk %d", version)
		for _, perm := range []Permission{BluetoothScan, BluetoothConnect} {
			assert.NotContains(t, p.checked, perm, "sdk %d", version)
			for _, req := range p.requested {
				assert.NotContains(t, req, perm, "sdk %d", version)
			}
		}
	}
}

func TestAuthorizeRequestsFullSetWhenOneMissing(t *testing.T) {
	p := &mockPlatform{
		os:      MobileOS,
		version: 33,
		granted: allGranted(FineLocation, CoarseLocation, BluetoothScan),
		answer:  answerAll(Granted, Required(33)...),
	}
	assert.True(t, NewGate(p).Authorize(context.Background()))
	require.Len(t, p.requested, 1)
	assert.Len(t, p.requested[0], 4, "all permissions requested together")
}

func TestAuthorizeDenied(t *testing.T) {
	answer := answerAll(Granted, Required(31)...)
	answer[BluetoothConnect] = NeverAskAgain
	p := &mockPlatform{
		os:      MobileOS,
		version: 31,
		granted: map[Permission]bool{},
		answer:  answer,
	}
	assert.False(t, NewGate(p).Authorize(context.Background()), "BLUETOOTH_CONNECT refused")
	assert.Len(t, p.requested, 1, "no re-prompt")
}

func TestAuthorizeErrorsYieldFalse(t *testing.T) {
	tests := []struct {
		name string
		p    *mockPlatform
	}{
		{"version error", &mockPlatform{os: MobileOS, versionErr: errors.New("no getprop")}},
		{"check error", &mockPlatform{os: MobileOS, version: 31, checkErr: errors.New("binder died")}},
		{"request error", &mockPlatform{os: MobileOS, version: 31, granted: map[Permission]bool{}, requestErr: errors.New("activity gone")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, NewGate(tt.p).Authorize(context.Background()))
		})
	}
}
