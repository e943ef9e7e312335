package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ForsunJay/TGTEST/internal/application/port"
	"github.com/ForsunJay/TGTEST/internal/bot"
)

// maxDocumentSize caps attachment downloads at 20 MB, the Bot API's own
// limit for getFile
const maxDocumentSize = 20 << 20

// UpdateHandler consumes normalized updates
type UpdateHandler interface {
	Handle(ctx context.Context, upd bot.Update)
}

// Transport is the long-polling Telegram adapter. It normalizes incoming
// messages into bot.Update values and implements port.Messenger for the
// outbound direction.
type Transport struct {
	api         *tgbotapi.BotAPI
	handler     UpdateHandler
	logger      *zap.Logger
	pollTimeout time.Duration
	client      *http.Client
}

// New connects to the Bot API and verifies the token
func New(token string, pollTimeout time.Duration, logger *zap.Logger) (*Transport, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", api.Self.UserName))

	return &Transport{
		api:         api,
		logger:      logger,
		pollTimeout: pollTimeout,
		client:      &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// SetHandler installs the update handler. Must be called before Run.
func (t *Transport) SetHandler(handler UpdateHandler) {
	t.handler = handler
}

// Run consumes the update stream until the context is cancelled. Each
// update is handled on its own goroutine; per-user ordering is enforced
// downstream by the session store's locks.
func (t *Transport) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = int(t.pollTimeout.Seconds())

	updates := t.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			go t.dispatch(ctx, update.Message)
		}
	}
}

// dispatch normalizes one message and hands it to the router
func (t *Transport) dispatch(ctx context.Context, msg *tgbotapi.Message) {
	upd := bot.Update{
		UserID:   msg.From.ID,
		Username: msg.From.UserName,
		Text:     msg.Text,
	}
	if upd.Text == "" {
		upd.Text = msg.Caption
	}

	fileID, fileName, fileSize := attachmentRef(msg)
	if fileID != "" {
		blob, err := t.downloadFile(fileID, fileSize)
		if err != nil {
			t.logger.Error("Failed to download attachment",
				zap.Int64("user_id", msg.From.ID),
				zap.String("file_id", fileID),
				zap.Error(err))
			_ = t.SendMessage(ctx, msg.From.ID, "Could not download the document, please try again.", nil)
			return
		}
		upd.Document = blob
		upd.DocumentName = fileName
	}

	t.handler.Handle(ctx, upd)
}

// attachmentRef picks the file reference of a message attachment: a
// document as-is, or the largest rendition of a photo
func attachmentRef(msg *tgbotapi.Message) (fileID, fileName string, fileSize int) {
	if msg.Document != nil {
		return msg.Document.FileID, msg.Document.FileName, msg.Document.FileSize
	}
	if len(msg.Photo) > 0 {
		largest := msg.Photo[len(msg.Photo)-1]
		return largest.FileID, "photo.jpg", largest.FileSize
	}
	return "", "", 0
}

// downloadFile fetches an attached file through the Bot API
func (t *Transport) downloadFile(fileID string, fileSize int) ([]byte, error) {
	if fileSize > maxDocumentSize {
		return nil, fmt.Errorf("document too large: %d bytes", fileSize)
	}

	url, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file url: %w", err)
	}

	resp, err := t.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching file", resp.StatusCode)
	}

	blob, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(blob) > maxDocumentSize {
		return nil, fmt.Errorf("document exceeds size limit")
	}

	return blob, nil
}

// SendMessage delivers text to a user. Options render as a one-time
// reply keyboard; without options any previous keyboard is removed.
func (t *Transport) SendMessage(ctx context.Context, userID int64, text string, options []string) error {
	msg := tgbotapi.NewMessage(userID, text)

	if len(options) > 0 {
		rows := make([][]tgbotapi.KeyboardButton, 0, len(options))
		for _, option := range options {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(option)))
		}
		keyboard := tgbotapi.NewReplyKeyboard(rows...)
		keyboard.OneTimeKeyboard = true
		msg.ReplyMarkup = keyboard
	} else {
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}

	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

var _ port.Messenger = (*Transport)(nil)
