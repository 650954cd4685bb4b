package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-brokerage/internal/events"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommissionService_OverrideKeepsOriginal(t *testing.T) {
	f := newFixture(t)
	deal, _, _ := f.internalDeal(t)
	primary := deal.Commission.Entries[0]

	entry, err := f.svc.Commission.Override(adminCtx(), primary.ID, dec("120000"), "senior agent bonus")
	require.NoError(t, err)
	assert.True(t, entry.Amount.Equal(dec("120000")))
	require.NotNil(t, entry.OverrideAmount)
	assert.True(t, entry.OverrideAmount.Equal(dec("95000")))
	assert.Equal(t, models.CommissionStatusPending, entry.Status)
	assert.Equal(t, "senior agent bonus", entry.OverrideReason)
	assert.Equal(t, "admin-1", entry.OverriddenBy)
	assert.NotNil(t, entry.OverriddenAt)

	approved, err := f.svc.Commission.Approve(adminCtx(), primary.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommissionStatusApproved, approved.Status)

	// a second override needs a fresh approval and keeps the first computed amount
	again, err := f.svc.Commission.Override(adminCtx(), primary.ID, dec("110000"), "corrected bonus")
	require.NoError(t, err)
	assert.Equal(t, models.CommissionStatusPending, again.Status)
	assert.True(t, again.OverrideAmount.Equal(dec("95000")))
	assert.Empty(t, again.ApprovedBy)

	overridden := f.recorder.ofType(events.CommissionOverridden)
	require.Len(t, overridden, 2)
	assert.Equal(t, "95000", overridden[0].Attr("original_amount"))
	assert.Equal(t, deal.ID, overridden[0].Attr("deal_id"))
}

func TestCommissionService_OverrideValidation(t *testing.T) {
	f := newFixture(t)
	deal, _, _ := f.internalDeal(t)
	id := deal.Commission.Entries[0].ID

	_, err := f.svc.Commission.Override(adminCtx(), id, dec("120000"), "  ")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Commission.Override(adminCtx(), id, decimal.Zero, "bonus")
	assert.ErrorIs(t, err, ErrValidation)

	stored, err := f.svc.Deal.GetDeal(context.Background(), deal.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Commission.Entries[0].OverrideAmount)
	assert.Equal(t, deal.Version, stored.Version)
}

func TestCommissionService_Workflow(t *testing.T) {
	f := newFixture(t)
	deal, _, _ := f.internalDeal(t)
	id := deal.Commission.Entries[1].ID

	_, err := f.svc.Commission.MarkPaid(adminCtx(), id)
	assert.ErrorIs(t, err, ErrInvalidState, "pending entries cannot be paid")

	_, err = f.svc.Commission.Approve(adminCtx(), id)
	require.NoError(t, err)

	_, err = f.svc.Commission.Reject(adminCtx(), id, "")
	assert.ErrorIs(t, err, ErrValidation)

	rejected, err := f.svc.Commission.Reject(adminCtx(), id, "wrong agent")
	require.NoError(t, err)
	assert.Equal(t, models.CommissionStatusPending, rejected.Status)
	assert.Equal(t, "wrong agent", rejected.RejectionReason)
	assert.Equal(t, "admin-1", rejected.RejectedBy)
	assert.Nil(t, rejected.ApprovedAt)

	_, err = f.svc.Commission.Approve(adminCtx(), id)
	require.NoError(t, err)
	paid, err := f.svc.Commission.MarkPaid(adminCtx(), id)
	require.NoError(t, err)
	assert.Equal(t, models.CommissionStatusPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)

	_, err = f.svc.Commission.Reject(adminCtx(), id, "too late")
	assert.ErrorIs(t, err, ErrInvalidState, "paid is terminal")

	paidEvents := f.recorder.ofType(events.CommissionPaid)
	require.Len(t, paidEvents, 1)
	assert.Equal(t, []string{buyingAgent}, paidEvents[0].Recipients)
}

func TestCommissionService_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	deal, _, _ := f.internalDeal(t)
	id := deal.Commission.Entries[0].ID

	_, err := f.svc.Commission.Approve(agentCtx(listingAgent), id)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Commission.Approve(context.Background(), id)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Commission.Override(agentCtx(listingAgent), id, dec("1"), "mine")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Commission.BulkApprove(agentCtx(listingAgent), []string{id})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Commission.Approve(adminCtx(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommissionService_BulkApprove(t *testing.T) {
	f := newFixture(t)
	deal, _, _ := f.internalDeal(t)
	first := deal.Commission.Entries[0].ID
	second := deal.Commission.Entries[1].ID

	_, err := f.svc.Commission.Approve(adminCtx(), second)
	require.NoError(t, err)

	results, err := f.svc.Commission.BulkApprove(adminCtx(), []string{first, "missing", second})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.Equal(t, models.CommissionStatusApproved, results[0].Entry.Status)
	assert.ErrorIs(t, results[1].Err, ErrNotFound)
	assert.ErrorIs(t, results[2].Err, ErrInvalidState, "already approved")

	stored, err := f.svc.Deal.GetDeal(context.Background(), deal.ID)
	require.NoError(t, err)
	for _, e := range stored.Commission.Entries {
		assert.Equal(t, models.CommissionStatusApproved, e.Status)
	}

	paid, err := f.svc.Commission.BulkMarkPaid(adminCtx(), []string{first, second})
	require.NoError(t, err)
	assert.True(t, paid[0].OK())
	assert.True(t, paid[1].OK())

	_, err = f.svc.Commission.BulkReject(adminCtx(), []string{first}, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCommissionService_ComputeSplit(t *testing.T) {
	f := newFixture(t)
	deal, _, _ := f.internalDeal(t)
	ctx := context.Background()

	entries, err := f.svc.Commission.ComputeSplit(ctx, deal.ID, models.SplitPolicyCustom, []SplitShare{
		{Party: models.Agency(), Percentage: dec("40")},
		{Party: models.NamedAgent("agent-a"), Percentage: dec("35")},
		{Party: models.NamedAgent("agent-b"), Percentage: dec("25")},
	})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Amount.Equal(dec("76000")))
	assert.True(t, entries[1].Amount.Equal(dec("66500")))
	assert.True(t, entries[2].Amount.Equal(dec("47500")))

	stored, err := f.svc.Deal.GetDeal(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SplitPolicyCustom, stored.Commission.Policy)
	assert.True(t, stored.Commission.PercentageTotal().Equal(dec("100")))

	_, err = f.svc.Commission.ComputeSplit(ctx, deal.ID, models.SplitPolicyCustom, []SplitShare{
		{Party: models.Agency(), Percentage: dec("40")},
		{Party: models.NamedAgent("agent-a"), Percentage: dec("59.99")},
	})
	assert.ErrorIs(t, err, ErrValidation, "percentages must sum to exactly 100")

	_, err = f.svc.Commission.ComputeSplit(ctx, deal.ID, models.SplitPolicyCustom, []SplitShare{
		{Party: models.NamedAgent("agent-a"), Percentage: dec("50")},
		{Party: models.NamedAgent("agent-a"), Percentage: dec("50")},
	})
	assert.ErrorIs(t, err, ErrValidation, "duplicate parties")

	_, err = f.svc.Commission.ComputeSplit(ctx, deal.ID, models.SplitPolicyTwoWay, []SplitShare{
		{Party: models.PrimaryAgent(listingAgent)},
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Commission.Approve(adminCtx(), entries[0].ID)
	require.NoError(t, err)
	_, err = f.svc.Commission.ComputeSplit(ctx, deal.ID, models.SplitPolicySingle, []SplitShare{
		{Party: models.Agency()},
	})
	assert.ErrorIs(t, err, ErrValidation, "split is frozen once an entry left pending")
}

func TestBuildEntries_RemainderGoesToLast(t *testing.T) {
	planned, err := planSplit(models.SplitPolicyCustom, []SplitShare{
		{Party: models.NamedAgent("a"), Percentage: dec("33.33")},
		{Party: models.NamedAgent("b"), Percentage: dec("33.33")},
		{Party: models.NamedAgent("c"), Percentage: dec("33.34")},
	})
	require.NoError(t, err)

	entries := buildEntries("deal-1", dec("1000.01"), planned)
	require.Len(t, entries, 3)
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	assert.True(t, sum.Equal(dec("1000.01")), "sum %s", sum)
	assert.True(t, entries[0].Amount.Equal(dec("333.30")))

	again := buildEntries("deal-1", dec("1000.01"), planned)
	assert.Equal(t, entries[0].ID, again[0].ID)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestPlanSplit_Policies(t *testing.T) {
	tests := []struct {
		name    string
		policy  models.SplitPolicy
		shares  []SplitShare
		wantErr bool
	}{
		{"two way", models.SplitPolicyTwoWay, []SplitShare{{Party: models.PrimaryAgent("a")}, {Party: models.SecondaryAgent("b")}}, false},
		{"two way with three", models.SplitPolicyTwoWay, []SplitShare{{Party: models.PrimaryAgent("a")}, {Party: models.SecondaryAgent("b")}, {Party: models.Agency()}}, true},
		{"single", models.SplitPolicySingle, []SplitShare{{Party: models.Agency()}}, false},
		{"single empty", models.SplitPolicySingle, nil, true},
		{"agent without id", models.SplitPolicySingle, []SplitShare{{Party: models.PrimaryAgent("")}}, true},
		{"custom zero share", models.SplitPolicyCustom, []SplitShare{{Party: models.Agency(), Percentage: dec("100")}, {Party: models.NamedAgent("x")}}, true},
		{"unknown policy", models.SplitPolicy("tiered"), []SplitShare{{Party: models.Agency()}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planned, err := planSplit(tt.policy, tt.shares)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			total := decimal.Zero
			for _, s := range planned {
				total = total.Add(s.Percentage)
			}
			assert.True(t, total.Equal(dec("100")))
		})
	}
}
