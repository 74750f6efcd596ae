package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sideforge/binarymarket/internal/domain"
)

type stubFeed struct {
	price decimal.Decimal
	err   error
}

func (s stubFeed) Price(_ context.Context, _ string) (decimal.Decimal, error) {
	return s.price, s.err
}

func TestManual_UnsetThenPosted(t *testing.T) {
	m := NewManual()

	if _, err := m.Decide(context.Background(), domain.MarketInfo{}); !errors.Is(err, domain.ErrOutcomeNotSet) {
		t.Fatalf("unset: err = %v, want ErrOutcomeNotSet", err)
	}

	if err := m.Post(domain.SideYes); err != nil {
		t.Fatalf("Post() error: %v", err)
	}
	outcome, err := m.Decide(context.Background(), domain.MarketInfo{})
	if err != nil {
		t.Fatalf("Decide() error: %v", err)
	}
	if outcome != domain.SideYes {
		t.Errorf("outcome = %s, want YES", outcome)
	}

	// A second post cannot flip the decision.
	if err := m.Post(domain.SideNo); !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Errorf("double post: err = %v, want ErrAlreadyResolved", err)
	}
	if err := NewManual().Post("MAYBE"); !errors.Is(err, domain.ErrInvalidSide) {
		t.Errorf("bad side: err = %v, want ErrInvalidSide", err)
	}
}

func TestThreshold_ComparesAgainstStrike(t *testing.T) {
	strike := decimal.NewFromInt(50_000)

	cases := []struct {
		name  string
		price int64
		want  domain.Side
	}{
		{"above strike", 60_000, domain.SideYes},
		{"at strike", 50_000, domain.SideYes},
		{"below strike", 49_999, domain.SideNo},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			th := NewThreshold(stubFeed{price: decimal.NewFromInt(tc.price)}, "BTCUSDT", strike)
			got, err := th.Decide(context.Background(), domain.MarketInfo{})
			if err != nil {
				t.Fatalf("Decide() error: %v", err)
			}
			if got != tc.want {
				t.Errorf("price %d vs strike %s: outcome = %s, want %s", tc.price, strike, got, tc.want)
			}
		})
	}
}

func TestThreshold_PropagatesFeedFailure(t *testing.T) {
	feedErr := errors.New("exchange unreachable")
	th := NewThreshold(stubFeed{err: feedErr}, "BTCUSDT", decimal.NewFromInt(1))

	if _, err := th.Decide(context.Background(), domain.MarketInfo{}); !errors.Is(err, feedErr) {
		t.Errorf("err = %v, want wrapped feed error", err)
	}
}
