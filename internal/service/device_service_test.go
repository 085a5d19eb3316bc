package service_test

import (
	"strings"
	"testing"
	"time"

	"github.com/janusauth/janus/internal/model"
	"github.com/janusauth/janus/internal/service"

	"gotest.tools/v3/assert"
)

func TestDeviceStart(t *testing.T) {
	stack := newTestStack(t)

	// Case with a device-flow client
	authorization, err := stack.devices.Start("provisioner", "profile")
	assert.NilError(t, err)
	assert.Assert(t, authorization.DeviceCode != "")
	assert.Equal(t, 9, len(authorization.UserCode))
	assert.Equal(t, "https://auth.example.com/device", authorization.VerificationURI)
	assert.Assert(t, strings.Contains(authorization.VerificationURIComplete, "user_code="))
	assert.Equal(t, 600, authorization.ExpiresIn)
	assert.Equal(t, 5, authorization.Interval)

	// Case with a client not flagged for the device grant
	_, err = stack.devices.Start("dashboard", "profile")
	assert.ErrorIs(t, err, service.ErrGrantNotAllowed)

	// Case with an unknown client
	_, err = stack.devices.Start("ghost", "profile")
	assert.ErrorIs(t, err, service.ErrUnknownClient)
}

func TestDevicePollLifecycle(t *testing.T) {
	stack := newTestStack(t)

	client, err := stack.registry.Lookup("provisioner")
	assert.NilError(t, err)

	authorization, err := stack.devices.Start("provisioner", "profile")
	assert.NilError(t, err)

	// Case with the first poll before approval
	_, err = stack.devices.Poll(authorization.DeviceCode, client)
	assert.ErrorIs(t, err, service.ErrAuthorizationPending)

	// Case with polling again immediately, interval escalates
	_, err = stack.devices.Poll(authorization.DeviceCode, client)
	assert.ErrorIs(t, err, service.ErrSlowDown)

	var grant model.DeviceGrant
	assert.NilError(t, stack.database.Where("device_code = ?", authorization.DeviceCode).First(&grant).Error)
	assert.Equal(t, 10, grant.PollInterval)

	// Case with approval followed by a poll, tokens are issued
	assert.NilError(t, stack.devices.Approve(authorization.UserCode, "user-1", "org-primary"))

	minted, err := stack.devices.Poll(authorization.DeviceCode, client)
	assert.NilError(t, err)
	assert.Assert(t, minted.AccessToken != "")
	assert.Assert(t, minted.RefreshToken != "")

	// Case with polling a redeemed grant
	_, err = stack.devices.Poll(authorization.DeviceCode, client)
	assert.ErrorIs(t, err, service.ErrGrantConsumed)
}

func TestDeviceDeny(t *testing.T) {
	stack := newTestStack(t)

	client, err := stack.registry.Lookup("provisioner")
	assert.NilError(t, err)

	authorization, err := stack.devices.Start("provisioner", "profile")
	assert.NilError(t, err)

	// Case with the user denying
	assert.NilError(t, stack.devices.Deny(authorization.UserCode))

	_, err = stack.devices.Poll(authorization.DeviceCode, client)
	assert.ErrorIs(t, err, service.ErrAccessDenied)

	// Case with deciding an already decided grant
	err = stack.devices.Approve(authorization.UserCode, "user-1", "")
	assert.ErrorIs(t, err, service.ErrGrantConsumed)
}

func TestDeviceExpiry(t *testing.T) {
	stack := newTestStack(t)

	client, err := stack.registry.Lookup("provisioner")
	assert.NilError(t, err)

	authorization, err := stack.devices.Start("provisioner", "profile")
	assert.NilError(t, err)

	assert.NilError(t, stack.database.Model(&model.DeviceGrant{}).
		Where("device_code = ?", authorization.DeviceCode).
		Update("expires_at", time.Now().Add(-time.Minute).Unix()).Error)

	// Case with polling an expired grant
	_, err = stack.devices.Poll(authorization.DeviceCode, client)
	assert.ErrorIs(t, err, service.ErrExpiredToken)

	// Case with approving an expired grant
	err = stack.devices.Approve(authorization.UserCode, "user-1", "")
	assert.ErrorIs(t, err, service.ErrExpiredToken)

	// Case with an approved grant that expired before redemption
	authorization, err = stack.devices.Start("provisioner", "profile")
	assert.NilError(t, err)

	assert.NilError(t, stack.devices.Approve(authorization.UserCode, "user-1", ""))

	assert.NilError(t, stack.database.Model(&model.DeviceGrant{}).
		Where("device_code = ?", authorization.DeviceCode).
		Update("expires_at", time.Now().Add(-time.Hour).Unix()).Error)

	_, err = stack.devices.Poll(authorization.DeviceCode, client)
	assert.ErrorIs(t, err, service.ErrExpiredToken)
}

func TestDevicePollWrongClient(t *testing.T) {
	stack := newTestStack(t)

	authorization, err := stack.devices.Start("provisioner", "profile")
	assert.NilError(t, err)

	dashboard, err := stack.registry.Lookup("dashboard")
	assert.NilError(t, err)

	// Case with a different client presenting the device code
	_, err = stack.devices.Poll(authorization.DeviceCode, dashboard)
	assert.ErrorIs(t, err, service.ErrTokenInvalid)

	// Case with a device code that never existed
	provisioner, err := stack.registry.Lookup("provisioner")
	assert.NilError(t, err)

	_, err = stack.devices.Poll("no-such-code", provisioner)
	assert.ErrorIs(t, err, service.ErrTokenInvalid)
}
