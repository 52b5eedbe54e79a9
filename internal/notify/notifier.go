package notify

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Event describes a member-facing notification.
type Event struct {
	OrgID   snowflake.ID
	UserID  snowflake.ID
	Type    string
	Message string
	Data    map[string]any
}

const (
	EventReferralStatusChanged = "referral.status_changed"
	EventReferralConverted     = "referral.converted"
	EventCommissionCredited    = "commission.credited"
)

// Notifier delivers events to members. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes notifications to the service log. It stands in until a
// real delivery channel is wired up.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) Notifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	_ = ctx
	n.log.Info("notification",
		zap.String("type", event.Type),
		zap.String("user_id", event.UserID.String()),
		zap.String("message", event.Message),
		zap.Any("data", event.Data),
	)
	return nil
}

var Module = fx.Module("notify",
	fx.Provide(NewLogNotifier),
)
