package registry

import (
	"testing"

	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/trinity-symphony/coordination/types"
)

// Trust scores must stay within [0,1] after any sequence of delivery
// successes and failures, and status must track the last outcome.
func TestRegistry_TrustScoreBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := New(DefaultConfig(), zap.NewNop())

		initial := rapid.Float64Range(0, 1).Draw(rt, "initial")
		if initial == 0 {
			initial = 0.01
		}
		if err := r.Register(&types.Manager{ID: "m", TrustScore: initial}); err != nil {
			rt.Fatalf("register: %v", err)
		}

		outcomes := rapid.SliceOfN(rapid.Bool(), 0, 200).Draw(rt, "outcomes")
		for _, success := range outcomes {
			if err := r.RecordOutcome("m", success); err != nil {
				rt.Fatalf("record outcome: %v", err)
			}

			m, err := r.Get("m")
			if err != nil {
				rt.Fatalf("get: %v", err)
			}
			if m.TrustScore < 0 || m.TrustScore > 1 {
				rt.Fatalf("trust score %v out of [0,1]", m.TrustScore)
			}
			if success && m.Status != types.ManagerOnline {
				rt.Fatalf("status %q after success", m.Status)
			}
			if !success && m.Status != types.ManagerOffline {
				rt.Fatalf("status %q after failure", m.Status)
			}
		}
	})
}
