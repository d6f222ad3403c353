package ingestion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/fmuoria/candidate-screener/internal/models"
)

// ErrNoMessages is returned when no mail matches the subject filter
var ErrNoMessages = errors.New("no messages found")

// ErrTokenMissing is returned when no cached OAuth token exists and no
// authorization prompt was configured.
var ErrTokenMissing = errors.New("gmail token missing")

// AuthCodePrompt shows the consent URL and returns the code the user pastes back
type AuthCodePrompt func(authURL string) (string, error)

// GmailOptions locates the OAuth client secret and token cache
type GmailOptions struct {
	CredentialsPath string
	TokenPath       string
	Prompt          AuthCodePrompt
}

// GmailSource fetches resume attachments from the authorised mailbox
type GmailSource struct {
	service *gmail.Service
	logger  *zap.Logger
}

// NewGmailSource authorises against Gmail with read-only scope. A missing
// token triggers the consent flow through opts.Prompt and is cached afterwards.
func NewGmailSource(ctx context.Context, opts GmailOptions, logger *zap.Logger) (*GmailSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CredentialsPath == "" {
		opts.CredentialsPath = "credentials.json"
	}
	if opts.TokenPath == "" {
		opts.TokenPath = "token.json"
	}

	b, err := os.ReadFile(opts.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	client, err := httpClient(ctx, config, opts, logger)
	if err != nil {
		return nil, err
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail client: %w", err)
	}

	return &GmailSource{service: srv, logger: logger}, nil
}

func httpClient(ctx context.Context, config *oauth2.Config, opts GmailOptions, logger *zap.Logger) (*http.Client, error) {
	tok, err := tokenFromFile(opts.TokenPath)
	if err == nil {
		return config.Client(ctx, tok), nil
	}
	if opts.Prompt == nil {
		return nil, fmt.Errorf("%w at %s: %w", ErrTokenMissing, opts.TokenPath, err)
	}

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	code, err := opts.Prompt(authURL)
	if err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}

	tok, err = config.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	if err := saveToken(opts.TokenPath, tok); err != nil {
		logger.Warn("failed to cache oauth token", zap.String("path", opts.TokenPath), zap.Error(err))
	}
	return config.Client(ctx, tok), nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// FetchAttachments returns the supported resume attachments of every message
// with the given subject. Unreadable messages and attachments are skipped.
func (gs *GmailSource) FetchAttachments(ctx context.Context, subject string) ([]models.FileHandle, error) {
	user := "me"
	query := fmt.Sprintf("subject:%q has:attachment", subject)

	r, err := gs.service.Users.Messages.List(user).Q(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve messages: %w", err)
	}
	if len(r.Messages) == 0 {
		return nil, fmt.Errorf("%w with subject: %s", ErrNoMessages, subject)
	}

	var handles []models.FileHandle
	for _, msg := range r.Messages {
		message, err := gs.service.Users.Messages.Get(user, msg.Id).Context(ctx).Do()
		if err != nil {
			gs.logger.Warn("unable to retrieve message", zap.String("id", msg.Id), zap.Error(err))
			continue
		}

		sender := extractSenderName(message)
		for _, part := range attachmentParts(message.Payload) {
			if !IsSupported(part.Filename, part.MimeType) {
				continue
			}

			attachment, err := gs.service.Users.Messages.Attachments.Get(user, msg.Id, part.Body.AttachmentId).Context(ctx).Do()
			if err != nil {
				gs.logger.Warn("unable to retrieve attachment", zap.String("file", part.Filename), zap.Error(err))
				continue
			}

			data, err := decodeAttachment(attachment.Data)
			if err != nil {
				gs.logger.Warn("unable to decode attachment", zap.String("file", part.Filename), zap.Error(err))
				continue
			}

			name := attachmentName(sender, part.Filename)
			handles = append(handles, FromBytes(name, part.MimeType, data))
			gs.logger.Info("downloaded attachment", zap.String("file", name), zap.Int("bytes", len(data)))
		}
	}
	return handles, nil
}

// attachmentParts walks nested multipart payloads
func attachmentParts(p *gmail.MessagePart) []*gmail.MessagePart {
	if p == nil {
		return nil
	}
	var out []*gmail.MessagePart
	if p.Filename != "" && p.Body != nil && p.Body.AttachmentId != "" {
		out = append(out, p)
	}
	for _, child := range p.Parts {
		out = append(out, attachmentParts(child)...)
	}
	return out
}

func decodeAttachment(data string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(data)
}

// attachmentName prefixes the sender so files from different people never collide
func attachmentName(sender, filename string) string {
	base := filepath.Base(filename)
	if sender == "" || sender == "Unknown" {
		return base
	}
	if strings.HasPrefix(strings.ToLower(base), strings.ToLower(sender)) {
		return base
	}
	return fmt.Sprintf("%s_%s", sender, base)
}

// extractSenderName extracts the sender's name from email headers
func extractSenderName(message *gmail.Message) string {
	if message.Payload == nil {
		return "Unknown"
	}
	for _, header := range message.Payload.Headers {
		if header.Name != "From" {
			continue
		}
		// "Name <email@example.com>"
		from := header.Value
		if idx := strings.Index(from, "<"); idx > 0 {
			name := strings.Trim(strings.TrimSpace(from[:idx]), `"`)
			return strings.ReplaceAll(name, " ", "_")
		}
		if idx := strings.Index(from, "@"); idx > 0 {
			return strings.TrimPrefix(from[:idx], "<")
		}
		return "Unknown"
	}
	return "Unknown"
}
