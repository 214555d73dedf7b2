package rosca

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInviteCode_Validate(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name   string
		invite InviteCode
		want   error
	}{
		{name: "valid unlimited", invite: InviteCode{IsActive: true}},
		{name: "valid with limits", invite: InviteCode{IsActive: true, MaxUses: 5, CurrentUses: 4, ExpiryTime: now.Unix() + 60}},
		{name: "inactive", invite: InviteCode{IsActive: false}, want: ErrInviteInactive},
		{name: "expired", invite: InviteCode{IsActive: true, ExpiryTime: now.Unix() - 1}, want: ErrInviteExpired},
		{name: "expiry equals now", invite: InviteCode{IsActive: true, ExpiryTime: now.Unix()}},
		{name: "zero expiry never expires", invite: InviteCode{IsActive: true, ExpiryTime: 0}},
		{name: "exhausted", invite: InviteCode{IsActive: true, MaxUses: 3, CurrentUses: 3}, want: ErrInviteExhausted},
		{name: "over used", invite: InviteCode{IsActive: true, MaxUses: 3, CurrentUses: 4}, want: ErrInviteExhausted},
		{name: "zero max uses is unlimited", invite: InviteCode{IsActive: true, MaxUses: 0, CurrentUses: 100}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.invite.Validate(now)
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestInviteCode_RemainingUses(t *testing.T) {
	assert.Equal(t, int64(-1), (&InviteCode{}).RemainingUses())
	assert.Equal(t, int64(2), (&InviteCode{MaxUses: 5, CurrentUses: 3}).RemainingUses())
	assert.Equal(t, int64(0), (&InviteCode{MaxUses: 5, CurrentUses: 7}).RemainingUses())
}

func TestGroupSummary_StatusLabel(t *testing.T) {
	tests := []struct {
		group GroupSummary
		want  string
	}{
		{group: GroupSummary{IsCompleted: true, IsActive: true}, want: StatusCompleted},
		{group: GroupSummary{IsActive: true}, want: StatusActive},
		{group: GroupSummary{CanJoin: true, CurrentMembers: 2, MaxMembers: 5}, want: StatusOpen},
		{group: GroupSummary{CanJoin: true, CurrentMembers: 5, MaxMembers: 5}, want: StatusPending},
		{group: GroupSummary{}, want: StatusPending},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.group.StatusLabel())
	}
}

func TestContributionStatus_Label(t *testing.T) {
	assert.Equal(t, ContributionPaid, (&ContributionStatus{HasContributed: true, IsLate: true}).Label())
	assert.Equal(t, ContributionLate, (&ContributionStatus{IsLate: true}).Label())
	assert.Equal(t, ContributionDue, (&ContributionStatus{}).Label())
}
