// AngelaMos | 2026
// inbox.go

package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/socialsync/internal/core"
	"github.com/carterperez-dev/socialsync/internal/instagram"
	"github.com/carterperez-dev/socialsync/internal/linking"
	"github.com/carterperez-dev/socialsync/internal/subscription"
	"github.com/carterperez-dev/socialsync/internal/usage"
	"github.com/carterperez-dev/socialsync/internal/webhook"
)

type Linker interface {
	Match(
		ctx context.Context,
		platform linking.Platform,
		code, platformUserID string,
	) (*linking.LinkResult, error)
	AccountFor(
		ctx context.Context,
		platform linking.Platform,
		platformUserID string,
	) (*linking.SocialAccount, error)
	CodeLength() int
}

type PlanReader interface {
	PlanFor(ctx context.Context, userID string) (subscription.Plan, error)
}

type Metering interface {
	Consume(
		ctx context.Context,
		userID string,
		plan subscription.Plan,
		messageID string,
	) (usage.Outcome, usage.Snapshot, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, job IngestJob) (string, error)
}

type Replier interface {
	SendText(
		ctx context.Context,
		accessToken, recipientID, text string,
	) (*instagram.SendResult, error)
}

type Deps struct {
	Linker      Linker
	Plans       PlanReader
	Meter       Metering
	Queue       Enqueuer
	Replier     Replier
	Guard       *Guard
	AccessToken string
	Logger      *slog.Logger
}

// Inbox handles events addressed to our own platform account.
type Inbox struct {
	Deps
}

func New(deps Deps) *Inbox {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Inbox{Deps: deps}
}

// Register binds the inbox handlers to d, each behind the idempotency guard.
func (in *Inbox) Register(d *webhook.Dispatcher) {
	d.Register(webhook.KindDirectMessage, in.Guard.Once(webhook.HandlerFunc(in.HandleDirectMessage)))
	d.Register(webhook.KindMention, in.Guard.Once(webhook.HandlerFunc(in.HandleMention)))
	d.Register(webhook.KindComment, in.Guard.Once(webhook.HandlerFunc(in.HandleComment)))
}

func (in *Inbox) HandleDirectMessage(ctx context.Context, ev webhook.Event) error {
	if codes := ExtractCodes(ev.Text, in.Linker.CodeLength()); len(codes) > 0 {
		handled, err := in.tryLink(ctx, ev, codes)
		if err != nil || handled {
			return err
		}
	}

	if shared := ev.SharedMedia(); len(shared) > 0 {
		return in.ingestShares(ctx, ev, shared)
	}

	return nil
}

func (in *Inbox) tryLink(
	ctx context.Context,
	ev webhook.Event,
	codes []string,
) (bool, error) {
	for _, code := range codes {
		result, err := in.Linker.Match(ctx, linking.PlatformInstagram, code, ev.SenderID)
		switch {
		case err == nil:
			in.Logger.Info("platform account linked",
				"user_id", result.Account.UserID,
				"platform_user_id", ev.SenderID,
				"status", result.Status,
			)
			in.reply(ctx, ev.SenderID, replyLinked)
			return true, nil
		case errors.Is(err, linking.ErrLinkNotFound):
			continue
		case errors.Is(err, linking.ErrLinkExpired):
			in.reply(ctx, ev.SenderID, replyExpired)
			return true, nil
		case errors.Is(err, linking.ErrLinkConflict):
			in.reply(ctx, ev.SenderID, replyConflict)
			return true, nil
		case errors.Is(err, linking.ErrUnlinkRequired):
			in.reply(ctx, ev.SenderID, replyUnlinkFirst)
			return true, nil
		case errors.Is(err, linking.ErrEntitlementRequired):
			in.reply(ctx, ev.SenderID, replyUpgrade)
			return true, nil
		default:
			return false, fmt.Errorf("match link code: %w", err)
		}
	}

	// Only a message that is nothing but a code gets a not-found reply;
	// ordinary words of the right length fall through.
	if len(codes) == 1 && core.NormalizeCode(ev.Text) == codes[0] {
		in.reply(ctx, ev.SenderID, replyUnknownCode)
		return true, nil
	}
	return false, nil
}

func (in *Inbox) ingestShares(
	ctx context.Context,
	ev webhook.Event,
	shared []webhook.Attachment,
) error {
	account, err := in.Linker.AccountFor(ctx, linking.PlatformInstagram, ev.SenderID)
	if errors.Is(err, core.ErrNotFound) {
		in.reply(ctx, ev.SenderID, replyNotLinked)
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve sender: %w", err)
	}

	plan, err := in.Plans.PlanFor(ctx, account.UserID)
	if err != nil {
		return fmt.Errorf("resolve plan: %w", err)
	}

	outcome, snap, err := in.Meter.Consume(ctx, account.UserID, plan, ev.ID)
	if err != nil {
		return err
	}

	switch outcome {
	case usage.OutcomeDuplicate:
		return nil
	case usage.OutcomeOverLimit:
		in.Logger.Info("share rejected over monthly limit",
			"user_id", account.UserID,
			"plan", plan,
			"used", snap.Used,
		)
		in.reply(ctx, ev.SenderID, replyOverLimit)
		return nil
	}

	for i, media := range shared {
		_, err := in.Queue.Enqueue(ctx, IngestJob{
			Source:         "direct_message",
			EventID:        fmt.Sprintf("%s:%d", ev.ID, i),
			UserID:         account.UserID,
			PlatformUserID: ev.SenderID,
			MediaURL:       media.URL,
			ReceivedAt:     ev.Timestamp,
		})
		if err != nil {
			return err
		}
	}

	in.reply(ctx, ev.SenderID, replyQueued)
	return nil
}

func (in *Inbox) HandleMention(ctx context.Context, ev webhook.Event) error {
	_, err := in.Queue.Enqueue(ctx, IngestJob{
		Source:     "mention",
		EventID:    ev.ID,
		MediaID:    ev.MediaID,
		ReceivedAt: ev.Timestamp,
	})
	return err
}

func (in *Inbox) HandleComment(_ context.Context, ev webhook.Event) error {
	in.Logger.Info("comment received",
		"comment_id", ev.ID,
		"media_id", ev.MediaID,
		"platform_user_id", ev.SenderID,
	)
	return nil
}

// reply is best effort: a failed confirmation never undoes a link.
func (in *Inbox) reply(ctx context.Context, recipientID, text string) {
	if in.Replier == nil {
		return
	}

	_, err := in.Replier.SendText(ctx, in.AccessToken, recipientID, text)
	switch {
	case err == nil:
	case errors.Is(err, instagram.ErrNoAccessToken):
		in.Logger.Debug("reply skipped, no access token")
	default:
		in.Logger.Warn("send reply failed",
			"recipient_id", recipientID,
			"error", err,
		)
	}
}

const (
	replyLinked      = "Your account is now linked. Share a post or reel here to save it."
	replyExpired     = "That code has expired. Generate a new one in the app and send it again."
	replyConflict    = "This account is already linked to another user. Unlink it there first."
	replyUnlinkFirst = "Your app account is already linked to a different Instagram account. Unlink it in the app first."
	replyUpgrade     = "Linking needs an active subscription. Upgrade in the app and try again."
	replyUnknownCode = "We couldn't find that code. Check it in the app and send it again."
	replyNotLinked   = "Link your account first: generate a code in the app and send it here."
	replyOverLimit   = "You've reached this month's share limit for your plan."
	replyQueued      = "Got it. We're saving that for you."
)
