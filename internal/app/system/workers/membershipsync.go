// internal/app/system/workers/membershipsync.go
package workers

import (
	"context"
	"sync"
	"time"

	groupstore "github.com/dalemusser/mentorhub/internal/app/store/groups"
	orgstore "github.com/dalemusser/mentorhub/internal/app/store/organizations"
	userstore "github.com/dalemusser/mentorhub/internal/app/store/users"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MembershipSync is a background worker that reconciles each organization's
// two default chat groups against the live user roster. It runs on a timer,
// on demand (Kick) after role or roster changes made through this node, and
// on user-collection change signals for writes made elsewhere.
//
// Reconciliation is idempotent: a pass over an already-consistent
// organization writes nothing.
type MembershipSync struct {
	users    *userstore.Store
	groups   *groupstore.Store
	orgs     *orgstore.Store
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	kickCh   chan struct{}
	wg       sync.WaitGroup
}

// NewMembershipSync creates the synchronizer.
//
// Parameters:
//   - interval: how often to run a full reconcile pass (e.g., 1 minute)
func NewMembershipSync(users *userstore.Store, groups *groupstore.Store, orgs *orgstore.Store, logger *zap.Logger, interval time.Duration) *MembershipSync {
	return &MembershipSync{
		users:    users,
		groups:   groups,
		orgs:     orgs,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
		kickCh:   make(chan struct{}, 1),
	}
}

// Start begins the background reconcile loop.
func (w *MembershipSync) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("membership sync worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *MembershipSync) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("membership sync worker stopped")
}

// Kick requests an immediate pass. Coalesces: kicking a worker that already
// has a pending pass is a no-op.
func (w *MembershipSync) Kick() {
	select {
	case w.kickCh <- struct{}{}:
	default:
	}
}

func (w *MembershipSync) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Roster writes from any node (imports, role changes, direct DB edits)
	// trigger a pass without waiting for the ticker. The ticker remains the
	// fallback when the change signal is unavailable.
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	rosterChanged := w.users.SubscribeChanges(watchCtx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.syncAll()
		case <-w.kickCh:
			w.syncAll()
		case _, ok := <-rosterChanged:
			if !ok {
				rosterChanged = nil
				continue
			}
			w.syncAll()
		}
	}
}

func (w *MembershipSync) syncAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	orgs, err := w.orgs.ListActive(ctx)
	if err != nil {
		w.log.Error("membership sync: listing organizations failed", zap.Error(err))
		return
	}
	for _, org := range orgs {
		if err := w.SyncOrg(ctx, org.ID); err != nil {
			w.log.Error("membership sync failed for organization",
				zap.String("org_id", org.ID.Hex()), zap.Error(err))
		}
	}
}

// SyncOrg reconciles one organization's default groups.
func (w *MembershipSync) SyncOrg(ctx context.Context, orgID primitive.ObjectID) error {
	roster, err := w.users.ListRoster(ctx, orgID)
	if err != nil {
		return err
	}
	existing, err := w.groups.ListByOrg(ctx, orgID)
	if err != nil {
		return err
	}

	for _, kind := range []models.GroupKind{models.GroupDefaultMentors, models.GroupDefaultMentees} {
		if err := w.syncDefaultGroup(ctx, orgID, kind, roster, existing); err != nil {
			return err
		}
	}
	return nil
}

func (w *MembershipSync) syncDefaultGroup(ctx context.Context, orgID primitive.ObjectID, kind models.GroupKind, roster []models.User, existing []models.ChatGroup) error {
	canonicalID := models.DefaultGroupID(orgID, kind)

	var current models.ChatGroup
	found := false
	for _, g := range existing {
		if g.ID == canonicalID {
			current = g
			found = true
			continue
		}
		// A default-kind group under a non-canonical id is a legacy or
		// hand-made artifact. Merging member sets unprompted would grant
		// access, so it is reported, not merged.
		if g.Kind == kind {
			w.log.Warn("default group exists under a non-canonical id; leaving it alone",
				zap.String("org_id", orgID.Hex()),
				zap.String("kind", string(kind)),
				zap.String("group_id", g.ID.Hex()))
		}
	}

	expected := ExpectedMembers(roster, kind, current.MemberSet())

	if !found {
		_, err := w.groups.Create(ctx, models.ChatGroup{
			OrganizationID: orgID,
			Name:           models.DefaultGroupName(kind),
			Kind:           kind,
			MemberIDs:      expected,
		}, &canonicalID)
		if err == groupstore.ErrGroupExists {
			// Another node created it between our list and insert; the next
			// pass heals any member drift.
			return nil
		}
		if err == nil {
			w.log.Info("created default group",
				zap.String("org_id", orgID.Hex()), zap.String("kind", string(kind)),
				zap.Int("members", len(expected)))
		}
		return err
	}

	if SameMemberSet(current.MemberIDs, expected) {
		return nil
	}
	if err := w.groups.SetMembers(ctx, current.ID, expected); err != nil {
		return err
	}
	w.log.Info("healed default group membership",
		zap.String("org_id", orgID.Hex()), zap.String("kind", string(kind)),
		zap.Int("before", len(current.MemberIDs)), zap.Int("after", len(expected)))
	return nil
}

// ExpectedMembers computes a default group's member set from the roster:
// every user whose role qualifies for the side, plus any platform operators
// already present (operators join only by invitation, and a role sync must
// not evict them).
func ExpectedMembers(roster []models.User, kind models.GroupKind, current map[primitive.ObjectID]struct{}) []primitive.ObjectID {
	var out []primitive.ObjectID
	seen := make(map[primitive.ObjectID]struct{}, len(roster))
	for _, u := range roster {
		if _, dup := seen[u.ID]; dup {
			continue
		}
		keep := models.QualifiesForDefaultGroup(u.Role, kind)
		if !keep && u.Role == models.RolePlatformOperator {
			_, keep = current[u.ID]
		}
		if keep {
			seen[u.ID] = struct{}{}
			out = append(out, u.ID)
		}
	}
	return out
}

// SameMemberSet reports whether two member lists contain the same ids,
// ignoring order and duplicates.
func SameMemberSet(a, b []primitive.ObjectID) bool {
	as := make(map[primitive.ObjectID]struct{}, len(a))
	for _, id := range a {
		as[id] = struct{}{}
	}
	bs := make(map[primitive.ObjectID]struct{}, len(b))
	for _, id := range b {
		bs[id] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for id := range as {
		if _, ok := bs[id]; !ok {
			return false
		}
	}
	return true
}
