package nakama

import (
	"context"
	"fmt"

	"whist/internal/bot"
	"whist/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// NakamaProgressionAdapter grants hand experience through the Nakama wallet,
// under the "xp" currency. Bots never accrue experience.
type NakamaProgressionAdapter struct {
	nk runtime.NakamaModule
}

func NewNakamaProgressionAdapter(nk runtime.NakamaModule) *NakamaProgressionAdapter {
	return &NakamaProgressionAdapter{nk: nk}
}

func (a *NakamaProgressionAdapter) AwardHandExperience(ctx context.Context, awards []ports.ExperienceAward) error {
	for _, award := range awards {
		if award.Points <= 0 || bot.IsBot(award.SeatID) {
			continue
		}
		changeset := map[string]int64{"xp": award.Points}
		metadata := map[string]interface{}{"reason": "hand_completed"}
		if _, _, err := a.nk.WalletUpdate(ctx, award.SeatID, changeset, metadata, true); err != nil {
			return fmt.Errorf("award xp to %s: %w", award.SeatID, err)
		}
	}
	return nil
}
