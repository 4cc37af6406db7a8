package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/tablebot/pkg/logging"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func tags(in []types.MessageTag) map[string]string {
	out := make(map[string]string, len(in))
	for _, tag := range in {
		out[aws.ToString(tag.Name)] = aws.ToString(tag.Value)
	}
	return out
}

func TestNewSESMailer_NilClient(t *testing.T) {
	assert.Nil(t, NewSESMailer(nil, SESConfig{FromEmail: "book@example.com"}, nil))
}

func TestSESMailerTagsReservation(t *testing.T) {
	fake := &fakeSES{}
	m := newSESMailer(fake, SESConfig{FromEmail: "book@example.com", ConfigurationSet: "staff-mail"}, logging.New("error"))

	err := m.Send(context.Background(), Message{
		To:      "host@example.com",
		Subject: "[Tablebot] Reservation AB12CD confirmed",
		Text:    "text",
		HTML:    "<p>html</p>",
		Code:    "AB12CD",
		Kind:    "reservation.confirmed.v1",
	})
	require.NoError(t, err)
	require.NotNil(t, fake.input)

	assert.Equal(t, "Tablebot Reservations <book@example.com>", aws.ToString(fake.input.FromEmailAddress))
	assert.Equal(t, []string{"host@example.com"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "staff-mail", aws.ToString(fake.input.ConfigurationSetName))
	assert.Equal(t, "text", aws.ToString(fake.input.Content.Simple.Body.Text.Data))
	assert.Equal(t, "<p>html</p>", aws.ToString(fake.input.Content.Simple.Body.Html.Data))
	assert.Equal(t, map[string]string{
		"reservation_code": "AB12CD",
		"event_type":       "reservation_confirmed_v1",
	}, tags(fake.input.EmailTags))
}

func TestSESMailerWithoutTagsOrHTML(t *testing.T) {
	fake := &fakeSES{}
	m := newSESMailer(fake, SESConfig{FromEmail: "book@example.com"}, logging.New("error"))

	require.NoError(t, m.Send(context.Background(), Message{To: "host@example.com", Subject: "s", Text: "t"}))
	assert.Nil(t, fake.input.Content.Simple.Body.Html)
	assert.Nil(t, fake.input.ConfigurationSetName)
	assert.Empty(t, fake.input.EmailTags)
}

func TestSESMailerSendError(t *testing.T) {
	fake := &fakeSES{err: errors.New("throttled")}
	m := newSESMailer(fake, SESConfig{FromEmail: "book@example.com"}, logging.New("error"))

	err := m.Send(context.Background(), Message{To: "host@example.com", Subject: "s", Code: "AB12CD"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
