// Package presence keeps group subscriptions in line with the requested
// groups and mirrors who is online in each of them.
package presence

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/dkeye/voicestate/internal/app/state"
	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

// ContactsByGroup is the published view: contacts of each requested group, sorted by ID.
type ContactsByGroup map[domain.GroupName][]domain.Contact

type Differ struct {
	log     zerolog.Logger
	onError func(error)

	mu         sync.Mutex
	sess       core.Session
	binding    *core.Binding
	requested  []domain.GroupName
	subscribed map[domain.GroupName]struct{}
	byGroup    map[domain.GroupName]map[domain.ContactID]domain.Contact
	tracked    map[domain.ContactID]domain.Contact

	emitMu   sync.Mutex
	contacts *state.Value[ContactsByGroup]
}

// NewDiffer builds a Differ. onError receives subscribe/unsubscribe failures; nil logs them.
func NewDiffer(log zerolog.Logger, onError func(error)) *Differ {
	return &Differ{
		log:        log.With().Str("module", "presence").Logger(),
		onError:    onError,
		subscribed: make(map[domain.GroupName]struct{}),
		byGroup:    make(map[domain.GroupName]map[domain.ContactID]domain.Contact),
		tracked:    make(map[domain.ContactID]domain.Contact),
		contacts:   state.NewValue(ContactsByGroup{}),
	}
}

func (d *Differ) ContactsByGroup() *state.Value[ContactsByGroup] { return d.contacts }

// Tracked returns every contact present in at least one requested group.
func (d *Differ) Tracked() []domain.Contact {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sortContacts(lo.Values(d.tracked))
}

// Subscribed returns the groups currently subscribed on the session.
func (d *Differ) Subscribed() []domain.GroupName {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := lo.Keys(d.subscribed)
	slices.Sort(out)
	return out
}

// SetSession swaps the session. All presence state is dropped; the requested
// groups are subscribed again on sess.
func (d *Differ) SetSession(sess core.Session) {
	d.mu.Lock()
	if d.sess == sess {
		d.mu.Unlock()
		return
	}
	d.binding.Release()
	d.binding = nil
	d.sess = sess
	d.subscribed = make(map[domain.GroupName]struct{})
	d.byGroup = make(map[domain.GroupName]map[domain.ContactID]domain.Contact)
	d.tracked = make(map[domain.ContactID]domain.Contact)
	d.mu.Unlock()

	d.emit()
	if sess == nil {
		return
	}

	b := core.Bind(sess, map[core.EventName]core.Handler{
		core.EventContactListUpdate: func(e core.Event) {
			if upd, ok := e.Payload.(core.ContactListUpdate); ok {
				d.onUpdate(sess, upd)
			}
		},
	})
	d.mu.Lock()
	if d.sess != sess {
		d.mu.Unlock()
		b.Release()
		return
	}
	d.binding = b
	d.mu.Unlock()
	d.sync(sess)
}

// SetGroups replaces the requested groups and subscribes/unsubscribes the difference.
func (d *Differ) SetGroups(groups []domain.GroupName) {
	d.mu.Lock()
	d.requested = lo.Uniq(groups)
	sess := d.sess
	d.mu.Unlock()
	if sess != nil {
		d.sync(sess)
	}
}

func (d *Differ) sync(sess core.Session) {
	d.mu.Lock()
	if d.sess != sess {
		d.mu.Unlock()
		return
	}
	toAdd, toRemove := lo.Difference(d.requested, lo.Keys(d.subscribed))
	for _, g := range toAdd {
		d.subscribed[g] = struct{}{}
	}
	dropped := false
	for _, g := range toRemove {
		delete(d.subscribed, g)
		if _, ok := d.byGroup[g]; ok {
			delete(d.byGroup, g)
			dropped = true
		}
	}
	if dropped {
		d.pruneTrackedLocked()
	}
	d.mu.Unlock()

	for _, g := range toAdd {
		if err := sess.SubscribeToGroup(g); err != nil {
			d.mu.Lock()
			if d.sess == sess {
				delete(d.subscribed, g)
			}
			d.mu.Unlock()
			d.report(fmt.Errorf("subscribe to group %s: %w", g, err))
			continue
		}
		d.log.Debug().Str("group", string(g)).Msg("subscribed to group")
	}
	for _, g := range toRemove {
		if err := sess.UnsubscribeToGroup(g); err != nil {
			d.report(fmt.Errorf("unsubscribe from group %s: %w", g, err))
			continue
		}
		d.log.Debug().Str("group", string(g)).Msg("unsubscribed from group")
	}
	if dropped {
		d.emit()
	}
}

func (d *Differ) onUpdate(sess core.Session, upd core.ContactListUpdate) {
	d.mu.Lock()
	if d.sess != sess {
		d.mu.Unlock()
		return
	}
	changed := false
	for g, contacts := range upd.JoinedGroup {
		if !slices.Contains(d.requested, g) {
			continue
		}
		set, ok := d.byGroup[g]
		if !ok {
			set = make(map[domain.ContactID]domain.Contact)
			d.byGroup[g] = set
		}
		for _, c := range contacts {
			if _, ok := set[c.ID]; !ok {
				changed = true
			}
			set[c.ID] = c.Clone()
			d.tracked[c.ID] = c.Clone()
		}
	}
	for g, contacts := range upd.LeftGroup {
		if !slices.Contains(d.requested, g) {
			continue
		}
		set := d.byGroup[g]
		for _, c := range contacts {
			if _, ok := set[c.ID]; !ok {
				continue
			}
			delete(set, c.ID)
			changed = true
			if !d.inAnyGroupLocked(c.ID) {
				delete(d.tracked, c.ID)
			}
		}
		if len(set) == 0 {
			delete(d.byGroup, g)
		}
	}
	for _, c := range upd.UserDataChanged {
		if _, ok := d.tracked[c.ID]; !ok {
			continue
		}
		d.tracked[c.ID] = c.Clone()
		for _, set := range d.byGroup {
			if _, ok := set[c.ID]; ok {
				set[c.ID] = c.Clone()
			}
		}
		changed = true
	}
	d.mu.Unlock()
	if changed {
		d.emit()
	}
}

// emit publishes the current membership. emitMu keeps snapshots in state order.
func (d *Differ) emit() {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()
	d.mu.Lock()
	out := d.snapshotLocked()
	d.mu.Unlock()
	d.contacts.Set(out)
}

func (d *Differ) inAnyGroupLocked(id domain.ContactID) bool {
	for _, set := range d.byGroup {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

func (d *Differ) pruneTrackedLocked() {
	for id := range d.tracked {
		if !d.inAnyGroupLocked(id) {
			delete(d.tracked, id)
		}
	}
}

func (d *Differ) snapshotLocked() ContactsByGroup {
	out := make(ContactsByGroup, len(d.byGroup))
	for g, set := range d.byGroup {
		out[g] = sortContacts(lo.Map(lo.Values(set), func(c domain.Contact, _ int) domain.Contact { return c.Clone() }))
	}
	return out
}

// Close drops the session binding and all state.
func (d *Differ) Close() { d.SetSession(nil) }

func (d *Differ) report(err error) {
	if d.onError != nil {
		d.onError(err)
		return
	}
	d.log.Warn().Err(err).Msg("group operation failed")
}

func sortContacts(list []domain.Contact) []domain.Contact {
	slices.SortFunc(list, func(a, b domain.Contact) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return list
}

// Groups lists the groups of a snapshot in name order.
func (c ContactsByGroup) Groups() []domain.GroupName {
	return slices.Sorted(maps.Keys(c))
}
