package importer

// Notification levels
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notification is a user-facing message about an import's outcome
type Notification struct {
	Level   string
	Title   string
	Message string
}

// Notifier delivers notifications to whatever surface the app runs in
type Notifier interface {
	Notify(n Notification)
}

// NopNotifier discards every notification
type NopNotifier struct{}

// Notify implements Notifier
func (NopNotifier) Notify(Notification) {}
