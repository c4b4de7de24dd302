package catalog

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultbook/vaultbook/internal/domain"
)

// Hook receives lifecycle notifications after the local commit is durable.
// Calls are synchronous, made outside the writer lock, at most once per
// successful operation and never for a failed one.
type Hook interface {
	OnVaultCreated(v domain.VaultEntity)
	OnVaultUpdated(v domain.VaultEntity)
	OnVaultDeleted(id string)
}

// NopHook ignores every notification. Embed it to implement a subset.
type NopHook struct{}

func (NopHook) OnVaultCreated(domain.VaultEntity) {}
func (NopHook) OnVaultUpdated(domain.VaultEntity) {}
func (NopHook) OnVaultDeleted(string)             {}

// EventKind names a lifecycle notification
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// Event is the message form of a Hook notification
type Event struct {
	Kind    EventKind
	VaultID string
	// Vault is nil for deletions
	Vault *domain.VaultEntity
	At    time.Time
}

// ChannelHook forwards notifications to an outbound channel, typically read by
// a sync collaborator. Sends never block: when the channel is full the event
// is dropped and logged, and the collaborator is expected to resync from the catalog.
type ChannelHook struct {
	ch  chan<- Event
	log zerolog.Logger
}

// NewChannelHook returns a hook publishing to ch
func NewChannelHook(ch chan<- Event, log zerolog.Logger) *ChannelHook {
	return &ChannelHook{ch: ch, log: log}
}

func (h *ChannelHook) OnVaultCreated(v domain.VaultEntity) {
	h.publish(Event{Kind: EventCreated, VaultID: v.ID, Vault: &v})
}

func (h *ChannelHook) OnVaultUpdated(v domain.VaultEntity) {
	h.publish(Event{Kind: EventUpdated, VaultID: v.ID, Vault: &v})
}

func (h *ChannelHook) OnVaultDeleted(id string) {
	h.publish(Event{Kind: EventDeleted, VaultID: id})
}

func (h *ChannelHook) publish(ev Event) {
	ev.At = time.Now().UTC()
	select {
	case h.ch <- ev:
	default:
		h.log.Warn().Str("vault_id", ev.VaultID).Str("event", string(ev.Kind)).Msg("sync channel full, dropping event")
	}
}

// LogHook records lifecycle notifications in the log
type LogHook struct {
	Log zerolog.Logger
}

func (h LogHook) OnVaultCreated(v domain.VaultEntity) {
	h.Log.Info().Str("vault_id", v.ID).Str("name", v.Name).Msg("vault created")
}

func (h LogHook) OnVaultUpdated(v domain.VaultEntity) {
	h.Log.Debug().Str("vault_id", v.ID).Str("name", v.Name).Bool("archived", v.IsArchived).Msg("vault updated")
}

func (h LogHook) OnVaultDeleted(id string) {
	h.Log.Info().Str("vault_id", id).Msg("vault deleted")
}
