package mail_test

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	netmail "net/mail"
	"strings"
	"testing"

	"github.com/goliatone/go-registration"
	"github.com/goliatone/go-registration/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessagePlainText(t *testing.T) {
	raw, err := mail.BuildMessage(registration.EmailMessage{
		From:    "noreply@example.com",
		To:      []string{"foo@bar.com"},
		Subject: "Activate\r\nBcc: evil@example.com",
		Text:    "hello",
	})
	require.NoError(t, err)

	msg, err := netmail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "noreply@example.com", msg.Header.Get("From"))
	assert.Equal(t, "foo@bar.com", msg.Header.Get("To"))
	assert.Empty(t, msg.Header.Get("Bcc"))

	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "ActivateBcc: evil@example.com", subject)

	mediaType, _, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mediaType)

	body, err := io.ReadAll(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestBuildMessageAlternative(t *testing.T) {
	raw, err := mail.BuildMessage(registration.EmailMessage{
		From:    "noreply@example.com",
		To:      []string{"foo@bar.com", "baz@bar.com"},
		Subject: "Activate your account",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})
	require.NoError(t, err)

	msg, err := netmail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	addrs, err := msg.Header.AddressList("To")
	require.NoError(t, err)
	assert.Len(t, addrs, 2)

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	reader := multipart.NewReader(msg.Body, params["boundary"])

	var types, bodies []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(part)
		require.NoError(t, err)

		mt, _, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		require.NoError(t, err)
		types = append(types, mt)
		bodies = append(bodies, string(content))
	}

	assert.Equal(t, []string{"text/plain", "text/html"}, types)
	assert.Equal(t, []string{"plain body", "<p>html body</p>"}, bodies)
}

func TestSMTPTransportRequiresRecipients(t *testing.T) {
	transport := mail.NewSMTPTransport("localhost", "25", "", "")

	err := transport.Send(context.Background(), registration.EmailMessage{From: "a@b.c", Subject: "x"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "recipients"))
}

func TestBuildMessageRejectsHeaderInjection(t *testing.T) {
	tests := []struct {
		name string
		msg  registration.EmailMessage
	}{
		{
			name: "from",
			msg: registration.EmailMessage{
				From: "noreply@example.com\r\nBcc: victim@example.com",
				To:   []string{"foo@bar.com"},
			},
		},
		{
			name: "to",
			msg: registration.EmailMessage{
				From: "noreply@example.com",
				To:   []string{"foo@bar.com\r\nBcc: victim@example.com"},
			},
		},
		{
			name: "malformed",
			msg: registration.EmailMessage{
				From: "noreply@example.com",
				To:   []string{"not an address"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.msg.Subject = "Activate"
			tt.msg.Text = "hello"

			raw, err := mail.BuildMessage(tt.msg)
			require.Error(t, err)
			assert.Nil(t, raw)
			assert.True(t, registration.HasTextCode(err, registration.TextCodeEmailTransport))
		})
	}
}

func TestBuildMessageKeepsDisplayNames(t *testing.T) {
	raw, err := mail.BuildMessage(registration.EmailMessage{
		From:    "Example Site <noreply@example.com>",
		To:      []string{"foo@bar.com"},
		Subject: "Activate",
		Text:    "hello",
	})
	require.NoError(t, err)

	msg, err := netmail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	from, err := msg.Header.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "Example Site", from[0].Name)
	assert.Equal(t, "noreply@example.com", from[0].Address)
}

func TestSMTPTransportRejectsInjectedRecipient(t *testing.T) {
	transport := mail.NewSMTPTransport("localhost", "25", "", "")

	err := transport.Send(context.Background(), registration.EmailMessage{
		From:    "noreply@example.com",
		To:      []string{"foo@bar.com\r\nRCPT TO:<victim@example.com>"},
		Subject: "Activate",
		Text:    "hello",
	})
	require.Error(t, err)
	assert.True(t, registration.HasTextCode(err, registration.TextCodeEmailTransport))
}
