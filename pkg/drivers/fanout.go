package drivers

import (
	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/ports"
)

// Fanout broadcasts to several drivers. A failing member never stops the others
// and its error is logged, not returned.
type Fanout struct {
	*settings
	members []ports.Driver
}

// NewFanout creates a broadcaster over members.
func NewFanout(members []ports.Driver, opts ...Option) *Fanout {
	return &Fanout{settings: newSettings("fanout", opts), members: members}
}

func (f *Fanout) Name() string { return f.name }

func (f *Fanout) Open() error {
	for _, d := range f.members {
		if err := d.Open(); err != nil {
			f.logger.Warn("fanout member failed to open", "driver", d.Name(), "err", err)
		}
	}
	return nil
}

func (f *Fanout) Close() error {
	for _, d := range f.members {
		if err := d.Close(); err != nil {
			f.logger.Warn("fanout member failed to close", "driver", d.Name(), "err", err)
		}
	}
	return nil
}

func (f *Fanout) Send(event domain.TriggerEvent, wait bool) error {
	for _, d := range f.members {
		if err := d.Send(event, wait); err != nil {
			f.logger.Warn("fanout member failed to send", "driver", d.Name(), "event", event.Name, "err", err)
		}
	}
	return nil
}
