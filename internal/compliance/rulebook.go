package compliance

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// RuleBook holds the active rule set. Readers take a snapshot per check so a
// reload never mixes two rule sets inside one verdict.
type RuleBook struct {
	path    string
	current atomic.Pointer[RuleSet]
}

// NewRuleBook loads the rule set at path, or the embedded default when path
// is empty.
func NewRuleBook(path string) (*RuleBook, error) {
	book := &RuleBook{path: path}
	if path == "" {
		book.current.Store(DefaultRuleSet())
		return book, nil
	}
	rs, err := LoadRuleSet(path)
	if err != nil {
		return nil, err
	}
	book.current.Store(rs)
	return book, nil
}

// StaticRuleBook wraps a fixed rule set.
func StaticRuleBook(rs *RuleSet) *RuleBook {
	if rs == nil {
		rs = DefaultRuleSet()
	}
	book := &RuleBook{}
	book.current.Store(rs)
	return book
}

// Current returns the active rule set.
func (b *RuleBook) Current() *RuleSet {
	return b.current.Load()
}

// Reload re-reads the backing file. On failure the previous set stays active.
func (b *RuleBook) Reload() error {
	if b.path == "" {
		return nil
	}
	rs, err := LoadRuleSet(b.path)
	if err != nil {
		return err
	}
	b.current.Store(rs)
	return nil
}

// Watch reloads the rule set whenever its file is written or replaced, until
// ctx is done. Watching the parent directory keeps editors that rename into
// place working.
func (b *RuleBook) Watch(ctx context.Context) error {
	if b.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create rule set watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(b.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch rule set dir: %w", err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(b.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := b.Reload(); err != nil {
					logrus.WithError(err).WithField("path", b.path).Warn("rule set reload failed; keeping previous rules")
					continue
				}
				rs := b.Current()
				logrus.WithFields(logrus.Fields{
					"path":         b.path,
					"jurisdiction": rs.Jurisdiction,
				}).Info("rule set reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logrus.WithError(err).Warn("rule set watcher error")
			}
		}
	}()
	return nil
}
