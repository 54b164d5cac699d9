package queue

// ParseMode selects how Telegram renders message text.
type ParseMode string

const (
	ModePlain    ParseMode = ""
	ModeHTML     ParseMode = "html"
	ModeMarkdown ParseMode = "markdown"
)

// Action is one pending outbound operation. The set of actions is closed;
// the worker dispatches each concrete type onto the matching Sender method.
type Action interface {
	actionKind() string
}

type SendText struct {
	ChatID  int64
	Text    string
	ReplyTo int32
	Mode    ParseMode
}

type EditText struct {
	ChatID    int64
	MessageID int32
	Text      string
	Mode      ParseMode
}

type DeleteMessages struct {
	ChatID int64
	IDs    []int32
}

// SendPhoto uploads a local file. TTL > 0 makes it self-destruct after
// being opened. CleanupPath, when set, is removed once the action has run.
type SendPhoto struct {
	ChatID      int64
	Path        string
	Caption     string
	TTL         int32
	ReplyTo     int32
	CleanupPath string
}

type SendVideo struct {
	ChatID      int64
	Path        string
	Caption     string
	TTL         int32
	ReplyTo     int32
	CleanupPath string
}

type SendVoice struct {
	ChatID      int64
	Path        string
	ReplyTo     int32
	CleanupPath string
}

type SendDocument struct {
	ChatID      int64
	Path        string
	Caption     string
	ReplyTo     int32
	CleanupPath string
}

// SendAlbum re-sends existing media messages from FromChat as one album.
type SendAlbum struct {
	ChatID     int64
	FromChat   int64
	MessageIDs []int32
	Caption    string
}

type CopyMessage struct {
	ChatID    int64
	FromChat  int64
	MessageID int32
}

func (SendText) actionKind() string       { return "send_text" }
func (EditText) actionKind() string       { return "edit_text" }
func (DeleteMessages) actionKind() string { return "delete_messages" }
func (SendPhoto) actionKind() string      { return "send_photo" }
func (SendVideo) actionKind() string      { return "send_video" }
func (SendVoice) actionKind() string      { return "send_voice" }
func (SendDocument) actionKind() string   { return "send_document" }
func (SendAlbum) actionKind() string      { return "send_album" }
func (CopyMessage) actionKind() string    { return "copy_message" }

// Sender is the chat-client surface the worker drives. Implementations may
// return *FloodError (or a gogram FLOOD_WAIT error) to request a backoff.
type Sender interface {
	SendText(a SendText) error
	EditText(a EditText) error
	DeleteMessages(a DeleteMessages) error
	SendPhoto(a SendPhoto) error
	SendVideo(a SendVideo) error
	SendVoice(a SendVoice) error
	SendDocument(a SendDocument) error
	SendAlbum(a SendAlbum) error
	CopyMessage(a CopyMessage) error
}

func cleanupPath(a Action) string {
	switch a := a.(type) {
	case SendPhoto:
		return a.CleanupPath
	case SendVideo:
		return a.CleanupPath
	case SendVoice:
		return a.CleanupPath
	case SendDocument:
		return a.CleanupPath
	}
	return ""
}
