package membership_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dmitrymomot/memberkit/svc/membership"
)

func TestCalculatorNext(t *testing.T) {
	t.Parallel()

	rolling := &membership.Plan{ID: "rolling"}
	rollingEOM := &membership.Plan{ID: "rolling-eom", ExpireEndOfMonth: true}
	july := &membership.Plan{ID: "july", RenewalMonth: time.July}
	january := &membership.Plan{ID: "january", RenewalMonth: time.January}
	calc := membership.NewCalculator(30)

	tests := []struct {
		name  string
		plan  *membership.Plan
		from  string
		today string
		want  string
	}{
		{"renewal rounds to end of month", rollingEOM, "2024-01-15", "2024-01-20", "2025-01-31"},
		{"fixed period renewed early", july, "2024-06-30", "2024-05-01", "2025-06-30"},
		{"rolling within grace keeps anniversary", rolling, "2024-01-15", "2024-01-20", "2025-01-15"},
		{"rolling on grace boundary keeps anniversary", rolling, "2023-12-21", "2024-01-20", "2024-12-21"},
		{"rolling past grace restarts from today", rolling, "2023-12-20", "2024-01-20", "2025-01-20"},
		{"rolling renewed early", rolling, "2024-03-10", "2024-01-20", "2025-03-10"},
		{"empty from means today", rolling, "", "2024-01-20", "2025-01-20"},
		{"leap day clamps to feb 28", rolling, "2024-02-29", "2024-02-20", "2025-02-28"},
		{"end of month lands on leap day", rollingEOM, "2023-02-10", "2023-02-01", "2024-02-29"},
		{"end of month in common february", rollingEOM, "2024-02-29", "2024-02-20", "2025-02-28"},
		{"fixed period after anchor this year", july, "2024-06-30", "2024-08-10", "2025-06-30"},
		{"fixed period lapsed member", july, "2021-06-30", "2024-08-10", "2025-06-30"},
		{"fixed period on anchor day", july, "2024-06-30", "2024-06-30", "2025-06-30"},
		{"fixed period future expiration", july, "2025-06-30", "2024-05-01", "2026-06-30"},
		{"fixed period new member", july, "", "2024-03-05", "2024-06-30"},
		{"january renewal anchors to december", january, "", "2024-01-20", "2024-12-31"},
		{"january renewal on new year's eve", january, "2023-12-31", "2023-12-31", "2024-12-31"},
		{"fixed period off-cycle future expiration", july, "2024-03-10", "2024-01-01", "2025-06-30"},
		{"fixed period lapsed renewal inside anchor month", july, "2023-06-30", "2024-06-15", "2025-06-30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from := time.Time{}
			if tt.from != "" {
				from = date(tt.from)
			}
			got := calc.Next(tt.plan, from, date(tt.today))
			assert.Equal(t, tt.want, day(got))
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	t.Parallel()

	today := date("2024-01-20")
	tests := []struct {
		expires string
		want    membership.Status
	}{
		{"2024-02-01", membership.StatusActive},
		{"2024-01-20", membership.StatusActive},
		{"2024-01-19", membership.StatusArrears},
		{"2024-01-15", membership.StatusArrears},
		{"2024-01-14", membership.StatusExpired},
		{"2020-01-01", membership.StatusExpired},
	}
	for _, tt := range tests {
		t.Run(tt.expires, func(t *testing.T) {
			assert.Equal(t, tt.want, membership.DeriveStatus(date(tt.expires), today, 5))
		})
	}
}

func TestDateHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2024-02-29", day(membership.EndOfMonth(date("2024-02-03"))))
	assert.Equal(t, "2023-02-28", day(membership.EndOfMonth(date("2023-02-03"))))
	assert.Equal(t, "2024-12-31", day(membership.EndOfMonth(date("2024-12-01"))))
	assert.Equal(t, "2025-02-28", day(membership.AddYears(date("2024-02-29"), 1)))
	assert.Equal(t, "2028-02-29", day(membership.AddYears(date("2024-02-29"), 4)))

	local := time.Date(2024, 3, 5, 23, 30, 0, 0, time.FixedZone("X", -5*3600))
	assert.Equal(t, "2024-03-05", day(membership.Date(local)))
	assert.True(t, membership.Date(time.Time{}).IsZero())

	_, err := membership.ParseDate("2024-13-01")
	require.Error(t, err)
}

func TestThresholds(t *testing.T) {
	t.Parallel()

	cfg := membership.DefaultConfig()
	th := cfg.Thresholds(date("2024-01-20"))
	assert.Equal(t, "2024-03-05", day(th.BeginRenewal))
	assert.Equal(t, "2023-12-21", day(th.EndGrace))
}

var epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

func drawDate(t *rapid.T, label string) time.Time {
	return epoch.AddDate(0, 0, rapid.IntRange(0, 40*365).Draw(t, label))
}

func TestRollingExpirationProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		today := drawDate(t, "today")
		from := today.AddDate(0, 0, rapid.IntRange(-400, 400).Draw(t, "offset"))
		grace := rapid.IntRange(0, 90).Draw(t, "grace")
		plan := &membership.Plan{ID: "p", ExpireEndOfMonth: rapid.Bool().Draw(t, "eom")}

		got := membership.NewCalculator(grace).Next(plan, from, today)

		base := from
		if from.Before(today.AddDate(0, 0, -grace)) {
			base = today
		}
		want := membership.AddYears(base, 1)
		if plan.ExpireEndOfMonth {
			want = membership.EndOfMonth(want)
		}
		require.Equal(t, day(want), day(got))
		require.Equal(t, base.Month(), got.Month())
	})
}

func TestFixedPeriodExpirationProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		today := drawDate(t, "today")
		from := today.AddDate(0, 0, rapid.IntRange(-800, 800).Draw(t, "offset"))
		month := time.Month(rapid.IntRange(1, 12).Draw(t, "renewal_month"))
		plan := &membership.Plan{ID: "p", RenewalMonth: month}

		got := membership.NewCalculator(30).Next(plan, from, today)

		wantMonth := month - 1
		if wantMonth == 0 {
			wantMonth = time.December
		}
		require.Equal(t, wantMonth, got.Month())
		require.Equal(t, day(membership.EndOfMonth(got)), day(got))
		require.True(t, got.After(today), "expiration %s not after today %s", day(got), day(today))
		require.True(t, got.After(from), "expiration %s not after from %s", day(got), day(from))

		wantYear := from.Year() + 1
		if !from.After(today) {
			wantYear = today.Year() + 1
			if today.Month() < wantMonth {
				wantYear--
			}
		}
		require.Equal(t, wantYear, got.Year())
	})
}

func TestDeriveStatusProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		today := drawDate(t, "today")
		expires := today.AddDate(0, 0, rapid.IntRange(-200, 200).Draw(t, "offset"))
		grace := rapid.IntRange(0, 60).Draw(t, "grace")

		got := membership.DeriveStatus(expires, today, grace)
		endGrace := today.AddDate(0, 0, -grace)
		switch {
		case !expires.Before(today):
			require.Equal(t, membership.StatusActive, got)
		case !expires.Before(endGrace):
			require.Equal(t, membership.StatusArrears, got)
		default:
			require.Equal(t, membership.StatusExpired, got)
		}
		require.Equal(t, got, membership.NewCalculator(grace).Status(expires, today))
	})
}
