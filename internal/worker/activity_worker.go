package worker

import (
	"fmt"

	"github.com/pokerjest/animestream/internal/event"
	"github.com/pokerjest/animestream/internal/logger"
	"github.com/pokerjest/animestream/internal/model"
	"go.uber.org/zap"
)

// Recorder persists one activity line.
type Recorder interface {
	Record(level, action, message string) error
}

// ActivityWorker turns bus events into activity log rows.
type ActivityWorker struct {
	bus      event.Bus
	recorder Recorder
	subs     map[event.EventType]string
}

func NewActivityWorker(bus event.Bus, recorder Recorder) *ActivityWorker {
	return &ActivityWorker{bus: bus, recorder: recorder}
}

// Start subscribes to the import and catalog topics. Progress events are not recorded.
func (w *ActivityWorker) Start() {
	if w.subs != nil {
		return
	}
	w.subs = make(map[event.EventType]string)
	for _, t := range []event.EventType{event.EventImportComplete, event.EventImportFailed, event.EventCatalogChanged} {
		w.subs[t] = w.bus.Subscribe(t, w.handle)
	}
	logger.L().Info("activity worker started")
}

func (w *ActivityWorker) Stop() {
	for t, id := range w.subs {
		w.bus.Unsubscribe(t, id)
	}
	w.subs = nil
}

func (w *ActivityWorker) handle(e event.Event) {
	level, action, msg, ok := describe(e)
	if !ok {
		logger.L().Warn("activity worker: unexpected payload", zap.String("topic", string(e.Type)))
		return
	}
	if err := w.recorder.Record(level, action, msg); err != nil {
		logger.L().Error("activity worker: record failed", zap.String("action", action), zap.Error(err))
	}
}

func describe(e event.Event) (level, action, msg string, ok bool) {
	switch p := e.Payload.(type) {
	case event.ImportProgress:
		name := p.Title
		if name == "" {
			name = fmt.Sprintf("%s #%d", p.Provider, p.ExternalID)
		}
		if e.Type == event.EventImportFailed {
			return model.LogLevelError, "import_failed", fmt.Sprintf("Import of %s failed: %s", name, p.Error), true
		}
		return model.LogLevelSuccess, "import", fmt.Sprintf("Imported %s from %s (%s)", name, p.Provider, p.Step), true
	case event.CatalogChange:
		msg := fmt.Sprintf("%s %d %s", p.Entity, p.ID, p.Action)
		if p.Title != "" {
			msg = fmt.Sprintf("%s %q %s", p.Entity, p.Title, p.Action)
		}
		return model.LogLevelInfo, p.Entity + "_" + p.Action, msg, true
	}
	return "", "", "", false
}
