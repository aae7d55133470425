package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/longhornrumble/dealprep/internal/input"
	"github.com/longhornrumble/dealprep/internal/lifecycle"
	"github.com/longhornrumble/dealprep/internal/logger"
	"github.com/longhornrumble/dealprep/internal/render"
)

type GmailConfig struct {
	Sender       string
	ClientID     string
	ClientSecret string
	RefreshToken string
	// AccessToken is used as-is when set; no refresh happens.
	AccessToken string
	// Endpoint overrides the API base URL (tests, proxies).
	Endpoint string
	// HTTPClient is the transport under the OAuth2 layer.
	HTTPClient *http.Client
}

// Gmail sends the brief as a multipart/alternative message.
type Gmail struct {
	svc    *gmail.Service
	sender string
	log    logrus.FieldLogger
}

func NewGmail(ctx context.Context, cfg GmailConfig, log logrus.FieldLogger) (*Gmail, error) {
	sender := strings.TrimSpace(cfg.Sender)
	if sender == "" {
		return nil, fmt.Errorf("gmail sender is required")
	}

	var ts oauth2.TokenSource
	switch {
	case strings.TrimSpace(cfg.AccessToken) != "":
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(cfg.AccessToken), TokenType: "Bearer"})
	case strings.TrimSpace(cfg.RefreshToken) != "":
		oc := &oauth2.Config{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmail.GmailSendScope},
		}
		ts = oc.TokenSource(ctx, &oauth2.Token{RefreshToken: strings.TrimSpace(cfg.RefreshToken)})
	default:
		return nil, fmt.Errorf("gmail needs an access token or a refresh token")
	}

	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if strings.TrimSpace(cfg.Endpoint) != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init gmail service: %w", err)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Gmail{svc: svc, sender: sender, log: log}, nil
}

func (g *Gmail) Channel() lifecycle.Channel { return lifecycle.ChannelEmail }

func (g *Gmail) Deliver(ctx context.Context, v render.Views, routing input.Routing) error {
	var to []string
	for _, r := range routing.EmailRecipients {
		if r = strings.TrimSpace(r); r != "" {
			to = append(to, r)
		}
	}
	if len(to) == 0 {
		return ErrNotRouted
	}
	raw, err := BuildMIME(g.sender, to, v.Email, time.Now())
	if err != nil {
		return err
	}
	sent, err := g.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail send: %w", err)
	}
	logger.ForRun(g.log, v.RunID).WithField("message_id", sent.Id).Debug("email sent")
	return nil
}

// BuildMIME renders an RFC 5322 multipart/alternative message.
func BuildMIME(from string, to []string, v render.EmailView, date time.Time) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", v.PlainText},
		{"text/html; charset=UTF-8", v.HTML},
	} {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", part.contentType)
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		pw, err := mw.CreatePart(h)
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(part.content)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	hdr := func(k, v string) { fmt.Fprintf(&msg, "%s: %s\r\n", k, v) }
	hdr("From", from)
	hdr("To", strings.Join(to, ", "))
	hdr("Subject", mime.QEncoding.Encode("utf-8", v.Subject))
	hdr("Date", date.UTC().Format(time.RFC1123Z))
	hdr("Message-ID", fmt.Sprintf("<%s@dealprep>", uuid.NewString()))
	hdr("MIME-Version", "1.0")
	hdr("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", mw.Boundary()))
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
