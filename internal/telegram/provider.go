package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_channel_gate_bot/internal/channel"
	"tg_channel_gate_bot/internal/logging"
	"tg_channel_gate_bot/internal/membership"
	"tg_channel_gate_bot/internal/metrics"
)

type chatMemberGetter interface {
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error)
}

// MembershipProvider answers membership lookups with the Bot API getChatMember
// call. Every call is bounded by timeout so one unresponsive channel cannot
// stall a verification.
type MembershipProvider struct {
	api     chatMemberGetter
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *logrus.Entry
	now     func() time.Time
}

// NewMembershipProvider builds a provider. A non-positive timeout leaves the
// call bounded only by the caller's context.
func NewMembershipProvider(api chatMemberGetter, timeout time.Duration, m *metrics.Metrics, logger *logrus.Entry) *MembershipProvider {
	if logger == nil {
		logger = logging.Logger()
	}

	return &MembershipProvider{
		api:     api,
		timeout: timeout,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// GetStatus implements membership.Provider.
func (p *MembershipProvider) GetStatus(ctx context.Context, ref channel.Reference, userID int64) (membership.MemberStatus, error) {
	if p == nil || p.api == nil {
		return membership.MemberStatus{}, errors.New("membership provider is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	started := p.now()
	member, err := p.api.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: ref.Value(),
		UserID: userID,
	})
	elapsed := p.now().Sub(started)

	if err != nil {
		p.metrics.ObserveCheck(metrics.OutcomeError, elapsed)
		return membership.MemberStatus{}, fmt.Errorf("get chat member %s: %w", ref.Value(), err)
	}

	status := memberStatus(member)
	outcome := metrics.OutcomeNotMember
	if membership.IsQualifyingMember(status) {
		outcome = metrics.OutcomeQualifying
	}
	p.metrics.ObserveCheck(outcome, elapsed)

	p.logger.WithFields(logging.Fields{
		"event":   "membership_lookup",
		"channel": ref.Value(),
		"user_id": userID,
		"status":  status.Kind.String(),
	}).Debug("membership looked up")

	return status, nil
}

func memberStatus(member *models.ChatMember) membership.MemberStatus {
	if member == nil {
		return membership.MemberStatus{}
	}

	switch member.Type {
	case models.ChatMemberTypeOwner:
		return membership.MemberStatus{Kind: membership.StatusCreator}
	case models.ChatMemberTypeAdministrator:
		return membership.MemberStatus{Kind: membership.StatusAdministrator}
	case models.ChatMemberTypeMember:
		return membership.MemberStatus{Kind: membership.StatusMember}
	case models.ChatMemberTypeRestricted:
		isMember := member.Restricted != nil && member.Restricted.IsMember
		return membership.MemberStatus{Kind: membership.StatusRestricted, IsMember: isMember}
	case models.ChatMemberTypeLeft:
		return membership.MemberStatus{Kind: membership.StatusLeft}
	case models.ChatMemberTypeBanned:
		return membership.MemberStatus{Kind: membership.StatusKicked}
	default:
		return membership.MemberStatus{Kind: membership.StatusUnknown}
	}
}
