package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/nudge/internal/domain"
)

// Pusher sends one push notification. Send should return once ctx is done;
// Reminder stops waiting at its batch deadline whether or not it does.
type Pusher interface {
	Send(ctx context.Context, token, title, body string) error
}

// Mailer sends one email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewDispatcher returns a registry with the reminder, phone_call and
// email_ta channels wired to the given transports.
func NewDispatcher(pusher Pusher, mailer Mailer, batchTimeout time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := NewRegistry()
	r.MustRegister(domain.NudgeTypeReminder, Reminder(pusher, batchTimeout, logger))
	r.MustRegister(domain.NudgeTypePhoneCall, PhoneCall(logger))
	r.MustRegister(domain.NudgeTypeEmailTA, EmailTA(mailer, logger))
	return r
}

// Reminder pushes to every token of the receiver concurrently. Tokens still
// pending when batchTimeout elapses count as failed. A receiver without
// tokens is a successful delivery to nobody.
func Reminder(pusher Pusher, batchTimeout time.Duration, logger *zap.Logger) ChannelFunc {
	return func(ctx context.Context, nudge *domain.Nudge, details Details) Result {
		var tokens []string
		if details.Receiver != nil {
			tokens = details.Receiver.PushTokens
		}
		if len(tokens) == 0 {
			logger.Info("reminder has no push tokens, nothing to deliver",
				zap.String("nudge_id", nudge.NudgeID),
				zap.String("receiver", nudge.Receiver))
			return Result{Delivered: true, Deliveries: []domain.Delivery{}}
		}

		if batchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, batchTimeout)
			defer cancel()
		}

		title, body := reminderText(details)
		type sent struct {
			i int
			d domain.Delivery
		}
		results := make(chan sent, len(tokens))
		g, gctx := errgroup.WithContext(ctx)
		for i, token := range tokens {
			g.Go(func() error {
				d := domain.Delivery{Channel: domain.NudgeTypeReminder, Target: token, OK: true}
				if err := pusher.Send(gctx, token, title, body); err != nil {
					d.OK = false
					d.Error = err.Error()
				}
				results <- sent{i: i, d: d}
				// one token failing must not cancel the others
				return nil
			})
		}
		go func() {
			_ = g.Wait()
			close(results)
		}()

		deliveries := make([]domain.Delivery, len(tokens))
		done := make([]bool, len(tokens))
	collect:
		for {
			select {
			case r, ok := <-results:
				if !ok {
					break collect
				}
				deliveries[r.i], done[r.i] = r.d, true
			case <-ctx.Done():
				break collect
			}
		}
		for i, token := range tokens {
			if !done[i] {
				deliveries[i] = domain.Delivery{Channel: domain.NudgeTypeReminder, Target: token, Error: "push batch timed out"}
			}
		}

		delivered := false
		for _, d := range deliveries {
			if d.OK {
				delivered = true
				continue
			}
			logger.Warn("push delivery failed",
				zap.String("nudge_id", nudge.NudgeID),
				zap.String("token", d.Target),
				zap.String("error", d.Error))
		}
		return Result{Delivered: delivered, Deliveries: deliveries}
	}
}

// PhoneCall simulates a call. It always succeeds.
func PhoneCall(logger *zap.Logger) ChannelFunc {
	return func(ctx context.Context, nudge *domain.Nudge, details Details) Result {
		logger.Info("simulated phone call",
			zap.String("nudge_id", nudge.NudgeID),
			zap.String("receiver", nudge.Receiver))
		return Result{
			Delivered:  true,
			Deliveries: []domain.Delivery{{Channel: domain.NudgeTypePhoneCall, Target: nudge.Receiver, OK: true}},
		}
	}
}

// EmailTA escalates to the nudge's TA address.
func EmailTA(mailer Mailer, logger *zap.Logger) ChannelFunc {
	return func(ctx context.Context, nudge *domain.Nudge, details Details) Result {
		to := nudge.TAEmail()
		if to == "" {
			return Result{Err: domain.Invalid("ta_email is required for %s nudges", domain.NudgeTypeEmailTA)}
		}

		subject, body := escalationText(nudge, details)
		d := domain.Delivery{Channel: domain.NudgeTypeEmailTA, Target: to, OK: true}
		var err error
		if err = mailer.Send(ctx, to, subject, body); err != nil {
			d.OK = false
			d.Error = err.Error()
			logger.Error("TA escalation email failed",
				zap.String("nudge_id", nudge.NudgeID),
				zap.Error(err))
		}
		return Result{Delivered: d.OK, Deliveries: []domain.Delivery{d}, Err: err}
	}
}

func reminderText(details Details) (string, string) {
	sender := details.SenderName
	if sender == "" {
		sender = "A teammate"
	}
	title := "Friendly nudge"
	if details.GroupName != "" {
		title = fmt.Sprintf("Friendly nudge from %s", details.GroupName)
	}
	if details.TaskTitle == "" {
		return title, fmt.Sprintf("%s is checking in on your task.", sender)
	}
	return title, fmt.Sprintf("%s is checking in on %q.", sender, details.TaskTitle)
}

func escalationText(nudge *domain.Nudge, details Details) (string, string) {
	receiver := nudge.Receiver
	if details.Receiver != nil && details.Receiver.Name != "" {
		receiver = details.Receiver.Name
	}
	sender := details.SenderName
	if sender == "" {
		sender = nudge.Sender
	}
	task := details.TaskTitle
	if task == "" {
		task = nudge.TaskID
	}
	group := details.GroupName
	if group == "" {
		group = nudge.GroupID
	}

	subject := fmt.Sprintf("[%s] Teammate unresponsive on %q", group, task)
	body := fmt.Sprintf(
		"Hello,\n\n%s from group %s has asked for your help: %s has not responded about the task %q.\n\nNudge %s, sent %s.\n",
		sender, group, receiver, task, nudge.NudgeID, nudge.CreatedAt.UTC().Format(time.RFC1123))
	return subject, body
}
