package services

import (
	"testing"

	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateArgs(t *testing.T) {
	tests := []struct {
		name    string
		channel models.Channel
		args    ChannelArgs
		wantErr bool
	}{
		{
			name:    "valid linkedin connect",
			channel: models.ChannelLinkedIn,
			args:    LinkedInArgs{SessionCookie: "li_at=abc", ProfileURL: "https://www.linkedin.com/in/jane", Action: LinkedInActionConnect},
		},
		{
			name:    "linkedin missing session",
			channel: models.ChannelLinkedIn,
			args:    LinkedInArgs{ProfileURL: "https://www.linkedin.com/in/jane", Action: LinkedInActionConnect},
			wantErr: true,
		},
		{
			name:    "linkedin unknown action",
			channel: models.ChannelLinkedIn,
			args:    LinkedInArgs{SessionCookie: "x", ProfileURL: "https://www.linkedin.com/in/jane", Action: "endorse"},
			wantErr: true,
		},
		{
			name:    "valid email",
			channel: models.ChannelEmail,
			args:    EmailArgs{To: "jane@acme.com", Subject: "Hello"},
		},
		{
			name:    "email without subject",
			channel: models.ChannelEmail,
			args:    EmailArgs{To: "jane@acme.com"},
			wantErr: true,
		},
		{
			name:    "email bad recipient",
			channel: models.ChannelEmail,
			args:    EmailArgs{To: "jane-at-acme", Subject: "Hello"},
			wantErr: true,
		},
		{
			name:    "valid sms",
			channel: models.ChannelSMS,
			args:    SMSArgs{To: "+14155550100"},
		},
		{
			name:    "sms not e164",
			channel: models.ChannelSMS,
			args:    SMSArgs{To: "555-0100"},
			wantErr: true,
		},
		{
			name:    "channel mismatch",
			channel: models.ChannelSMS,
			args:    EmailArgs{To: "jane@acme.com", Subject: "Hello"},
			wantErr: true,
		},
		{
			name:    "nil args",
			channel: models.ChannelEmail,
			args:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArgs(tt.channel, tt.args)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.False(t, IsTransient(err), "validation failures must be permanent")
			assert.Equal(t, CodeInvalidArgument, ErrorCode(err))
		})
	}
}

func TestBuildArgs(t *testing.T) {
	target := Target{
		LeadID:      1,
		LinkedInURL: "https://www.linkedin.com/in/jane",
		Email:       "jane@acme.com",
		Phone:       "+14155550100",
	}
	defaults := ArgDefaults{LinkedInSessionCookie: "cookie", EmailFromName: "Sales", SMSSender: "ACME"}

	args, err := BuildArgs(models.StepTypeConnectionRequest, nil, target, defaults)
	require.NoError(t, err)
	assert.Equal(t, LinkedInArgs{SessionCookie: "cookie", ProfileURL: target.LinkedInURL, Action: LinkedInActionConnect}, args)

	args, err = BuildArgs(models.StepTypeMessage, nil, target, defaults)
	require.NoError(t, err)
	assert.Equal(t, LinkedInActionMessage, args.(LinkedInArgs).Action)

	args, err = BuildArgs(models.StepTypeEmail, utils.ToPtr("  Hi Jane "), target, defaults)
	require.NoError(t, err)
	assert.Equal(t, EmailArgs{To: "jane@acme.com", Subject: "Hi Jane", FromName: "Sales"}, args)

	args, err = BuildArgs(models.StepTypeSMS, nil, target, defaults)
	require.NoError(t, err)
	assert.Equal(t, SMSArgs{To: "+14155550100", Sender: "ACME"}, args)

	_, err = BuildArgs(models.StepType("fax"), nil, target, defaults)
	require.Error(t, err)
	assert.Equal(t, CodeUnsupportedChannel, ErrorCode(err))
}
