package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"ukwikibot/internal/entities"
	"ukwikibot/internal/interfaces"
	"ukwikibot/pkg/log"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var _ interfaces.Gateway = (*WhatsAppClient)(nil)

var ErrNoQRCode = errors.New("no pairing code available")

type WhatsAppClient struct {
	Client *whatsmeow.Client

	qrCode string
	qrLock sync.RWMutex

	// lifetime of the session, used when pairing restarts after Logout
	sessionCtx context.Context
}

func NewWhatsAppClient(ctx context.Context, dbPath string) (*WhatsAppClient, error) {
	if dir := dirOf(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create device directory: %w", err)
		}
	}

	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)", NewWhatsAppLogger("Database"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device store: %w", err)
	}

	// Get the first device (or create one)
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return &WhatsAppClient{
		Client: whatsmeow.NewClient(deviceStore, NewWhatsAppLogger("Client")),
	}, nil
}

func dirOf(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i > 0 {
		return path[:i]
	}
	return ""
}

// Connect opens the session. A device without a stored identity starts
// pairing and publishes QR codes through GetQR.
func (w *WhatsAppClient) Connect(ctx context.Context) error {
	w.sessionCtx = ctx
	if w.Client.Store.ID != nil {
		if err := w.Client.Connect(); err != nil {
			return err
		}
		log.Info(log.Fields{"phone": w.GetPhoneNumber()}, "[WhatsAppClient.Connect] connected with existing session")
		return nil
	}
	return w.pair(ctx)
}

func (w *WhatsAppClient) pair(ctx context.Context) error {
	qrChan, err := w.Client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("open qr channel: %w", err)
	}
	if err := w.Client.Connect(); err != nil {
		return err
	}

	go func() {
		for evt := range qrChan {
			if evt.Event != "code" {
				log.Info(log.Fields{"event": evt.Event}, "[WhatsAppClient.pair] login event")
				continue
			}
			w.qrLock.Lock()
			w.qrCode = evt.Code
			w.qrLock.Unlock()

			if qr, err := qrcode.New(evt.Code, qrcode.Medium); err == nil {
				fmt.Fprintln(os.Stderr, qr.ToSmallString(false))
			}
		}
	}()
	return nil
}

func (w *WhatsAppClient) GetQR() string {
	w.qrLock.RLock()
	defer w.qrLock.RUnlock()
	return w.qrCode
}

// QRPNG renders the current pairing code as a PNG image.
func (w *WhatsAppClient) QRPNG(size int) ([]byte, error) {
	code := w.GetQR()
	if code == "" || w.IsLoggedIn() {
		return nil, ErrNoQRCode
	}
	return qrcode.Encode(code, qrcode.Medium, size)
}

func (w *WhatsAppClient) IsLoggedIn() bool {
	return w.Client.Store.ID != nil
}

// IsConnected returns true if client is connected and logged in
func (w *WhatsAppClient) IsConnected() bool {
	return w.Client.IsConnected() && w.Client.Store.ID != nil
}

// GetPhoneNumber returns the connected phone number
func (w *WhatsAppClient) GetPhoneNumber() string {
	if w.Client.Store.ID == nil {
		return ""
	}
	return w.Client.Store.ID.User
}

// Logout clears the session and starts pairing again.
func (w *WhatsAppClient) Logout(ctx context.Context) error {
	w.qrLock.Lock()
	w.qrCode = ""
	w.qrLock.Unlock()

	if err := w.Client.Logout(ctx); err != nil {
		return err
	}
	w.Client.Disconnect()

	pairCtx := w.sessionCtx
	if pairCtx == nil {
		pairCtx = context.Background()
	}
	return w.pair(pairCtx)
}

func (w *WhatsAppClient) Disconnect() {
	w.Client.Disconnect()
}

// OnMessage registers handler for inbound text messages.
func (w *WhatsAppClient) OnMessage(handler func(entities.Message)) {
	w.Client.AddEventHandler(func(evt interface{}) {
		v, ok := evt.(*events.Message)
		if !ok || v.Info.IsFromMe {
			return
		}
		if msg, ok := ParseMessage(v); ok {
			handler(msg)
		}
	})
}

// ParseMessage converts an event into a domain message.
func ParseMessage(evt *events.Message) (entities.Message, bool) {
	var content string
	if evt.Message.GetConversation() != "" {
		content = evt.Message.GetConversation()
	} else if ext := evt.Message.GetExtendedTextMessage(); ext != nil {
		content = ext.GetText()
	}
	if content == "" {
		return entities.Message{}, false
	}

	return entities.Message{
		ID:         evt.Info.ID,
		ChatID:     evt.Info.Chat.String(),
		From:       evt.Info.Sender.User,
		Content:    content,
		Platform:   entities.PlatformWhatsApp,
		ReceivedAt: evt.Info.Timestamp,
	}, true
}

func parseJID(to string) (types.JID, error) {
	if !strings.Contains(to, "@") {
		to += "@" + types.DefaultUserServer
	}
	jid, err := types.ParseJID(to)
	if err != nil {
		return types.JID{}, fmt.Errorf("invalid number format: %w", err)
	}
	return jid, nil
}

// Deliver sends text with WhatsApp markup, coordinates as a location and
// images as an uploaded photo carrying the caption.
func (w *WhatsAppClient) Deliver(ctx context.Context, to string, resp entities.Response) error {
	if resp.Empty() {
		return nil
	}
	jid, err := parseJID(to)
	if err != nil {
		return err
	}

	for _, item := range resp.Items {
		msg, err := w.buildMessage(ctx, item)
		if err != nil {
			return fmt.Errorf("build %s message: %w", item.Kind, err)
		}
		if _, err := w.Client.SendMessage(ctx, jid, msg); err != nil {
			return fmt.Errorf("deliver %s item: %w", item.Kind, err)
		}
	}
	return nil
}

func (w *WhatsAppClient) buildMessage(ctx context.Context, item entities.ResponseItem) (*waProto.Message, error) {
	switch item.Kind {
	case entities.KindText:
		return &waProto.Message{Conversation: proto.String(HTMLToWhatsApp(item.Text))}, nil
	case entities.KindCoordinates:
		return &waProto.Message{LocationMessage: &waProto.LocationMessage{
			DegreesLatitude:  proto.Float64(item.Latitude),
			DegreesLongitude: proto.Float64(item.Longitude),
		}}, nil
	case entities.KindImage:
		caption := HTMLToWhatsApp(item.Caption)
		if len(item.Image) == 0 {
			return &waProto.Message{Conversation: proto.String(caption)}, nil
		}
		uploaded, err := w.Client.Upload(ctx, item.Image, whatsmeow.MediaImage)
		if err != nil {
			return nil, fmt.Errorf("upload image: %w", err)
		}
		image := &waProto.ImageMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			Mimetype:      proto.String("image/jpeg"),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		}
		if caption != "" {
			image.Caption = proto.String(caption)
		}
		return &waProto.Message{ImageMessage: image}, nil
	default:
		return nil, fmt.Errorf("unknown item kind %q", item.Kind)
	}
}
