// Package oddsfile feeds odds snapshots from a YAML or JSON file into the
// odds registry, optionally re-reading the file whenever it changes.
package oddsfile

import (
	"fmt"

	"casino-engine/internal/core/domain"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Reloader installs a snapshot. *odds.Registry satisfies it.
type Reloader interface {
	Reload(s *domain.OddsSnapshot) error
}

// Loader reads one odds file. The file must describe a complete snapshot;
// missing sections fail validation rather than falling back to defaults.
type Loader struct {
	v   *viper.Viper
	reg Reloader
	log zerolog.Logger
}

// NewLoader binds path to reg. The format follows the file extension.
func NewLoader(path string, reg Reloader, log zerolog.Logger) *Loader {
	v := viper.New()
	v.SetConfigFile(path)
	return &Loader{v: v, reg: reg, log: log.With().Str("odds_file", path).Logger()}
}

// Load reads the file and hands the snapshot to the registry.
func (l *Loader) Load() error {
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading odds file: %w", err)
	}
	return l.install()
}

// Watch re-reads the file on every write. Rejected snapshots are logged by
// the registry and leave the current one live.
func (l *Loader) Watch() {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := l.install(); err != nil {
			l.log.Warn().Err(err).Str("op", e.Op.String()).Msg("odds file change ignored")
			return
		}
		l.log.Info().Msg("odds file reloaded")
	})
	l.v.WatchConfig()
}

func (l *Loader) install() error {
	snap, err := decode(l.v)
	if err != nil {
		return err
	}
	return l.reg.Reload(snap)
}

func decode(v *viper.Viper) (*domain.OddsSnapshot, error) {
	var snap domain.OddsSnapshot
	if err := v.Unmarshal(&snap); err != nil {
		return nil, fmt.Errorf("decoding odds file: %w", err)
	}
	return &snap, nil
}
