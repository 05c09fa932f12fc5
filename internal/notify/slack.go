package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/slack-go/slack"
)

// SlackNotifier posts events either through an incoming webhook or, when no
// webhook is configured, through the chat API with a bot token.
type SlackNotifier struct {
	client     *slack.Client
	channel    string
	webhookURL string
}

func NewSlackNotifier(token, channel, webhookURL string, opts ...slack.Option) *SlackNotifier {
	s := &SlackNotifier{channel: channel, webhookURL: webhookURL}
	if token != "" {
		s.client = slack.New(token, opts...)
	}
	return s
}

func (s *SlackNotifier) Notify(ctx context.Context, ev Event) error {
	attachment := buildAttachment(ev)

	if s.webhookURL != "" {
		msg := &slack.WebhookMessage{
			Channel:     s.channel,
			IconEmoji:   emojiFor(ev.Kind),
			Attachments: []slack.Attachment{attachment},
		}
		if err := slack.PostWebhookContext(ctx, s.webhookURL, msg); err != nil {
			return fmt.Errorf("failed to send slack webhook: %w", err)
		}
		return nil
	}

	if s.client == nil {
		return fmt.Errorf("slack notifier has neither token nor webhook")
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("failed to send slack message: %w", err)
	}
	return nil
}

func buildAttachment(ev Event) slack.Attachment {
	vessel := ev.VesselName
	if vessel == "" {
		vessel = strconv.FormatUint(uint64(ev.VesselID), 10)
	}
	fields := []slack.AttachmentField{
		{Title: "Vessel", Value: vessel, Short: true},
		{Title: "Time", Value: ev.Time.UTC().Format("2006-01-02 15:04:05Z"), Short: true},
	}
	if ev.Kind == KindAlertEscalated {
		fields = append(fields, slack.AttachmentField{Title: "Repeats", Value: strconv.Itoa(ev.RepeatCount), Short: true})
	}
	return slack.Attachment{
		Color:  colorFor(ev.Kind),
		Title:  "VesselEye: " + ev.Title(),
		Text:   ev.Text,
		Fields: fields,
		Footer: "VesselEye Monitoring",
		Ts:     json.Number(strconv.FormatInt(ev.Time.Unix(), 10)),
	}
}

func colorFor(k Kind) string {
	switch k {
	case KindAlertOpened:
		return "#FF0000"
	case KindAlertEscalated:
		return "#FFA500"
	case KindGeofenceViolation:
		return "#800080"
	default:
		return "#808080"
	}
}

func emojiFor(k Kind) string {
	switch k {
	case KindAlertOpened:
		return ":red_circle:"
	case KindAlertEscalated:
		return ":warning:"
	case KindGeofenceViolation:
		return ":anchor:"
	default:
		return ":bell:"
	}
}
