package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"readingclub/internal/model"
	"readingclub/internal/queue"
)

// =============================================================================
// IN-MEMORY STORE
// =============================================================================
//
// Services depend on repository interfaces, so tests run against an in-memory
// store. memTransactor snapshots the store before fn and restores it when fn
// fails, which is enough to observe all-or-nothing behaviour. Transactions are
// serialised, like row locks on the same key would serialise them in Postgres.

type likeKey struct {
	UserID int64
	Target model.Ref
}

type pair struct{ A, B int64 }

type memStore struct {
	mu sync.Mutex

	users         map[int64]*model.User
	follows       map[pair]time.Time
	requests      map[int64]*model.FollowRequest
	notifications map[int64]*model.Notification
	likes         map[likeKey]bool
	threads       map[int64]*model.Thread
	comments      map[int64]*model.Comment
	progress      map[pair]*model.ReadingProgress
	tokens        map[string]model.DeviceToken
	nextID        int64

	// failOn makes the named repository method return the error.
	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[int64]*model.User{},
		follows:       map[pair]time.Time{},
		requests:      map[int64]*model.FollowRequest{},
		notifications: map[int64]*model.Notification{},
		likes:         map[likeKey]bool{},
		threads:       map[int64]*model.Thread{},
		comments:      map[int64]*model.Comment{},
		progress:      map[pair]*model.ReadingProgress{},
		tokens:        map[string]model.DeviceToken{},
		nextID:        1000,
		failOn:        map[string]error{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) fail(name string) error {
	return s.failOn[name]
}

type memSnapshot struct {
	users         map[int64]model.User
	follows       map[pair]time.Time
	requests      map[int64]model.FollowRequest
	notifications map[int64]model.Notification
	likes         map[likeKey]bool
	threads       map[int64]model.Thread
	comments      map[int64]model.Comment
	progress      map[pair]model.ReadingProgress
	tokens        map[string]model.DeviceToken
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		users:         map[int64]model.User{},
		follows:       map[pair]time.Time{},
		requests:      map[int64]model.FollowRequest{},
		notifications: map[int64]model.Notification{},
		likes:         map[likeKey]bool{},
		threads:       map[int64]model.Thread{},
		comments:      map[int64]model.Comment{},
		progress:      map[pair]model.ReadingProgress{},
		tokens:        map[string]model.DeviceToken{},
	}
	for k, v := range s.tokens {
		snap.tokens[k] = v
	}
	for k, v := range s.users {
		snap.users[k] = *v
	}
	for k, v := range s.follows {
		snap.follows[k] = v
	}
	for k, v := range s.requests {
		snap.requests[k] = *v
	}
	for k, v := range s.notifications {
		snap.notifications[k] = *v
	}
	for k, v := range s.likes {
		snap.likes[k] = v
	}
	for k, v := range s.threads {
		snap.threads[k] = *v
	}
	for k, v := range s.comments {
		snap.comments[k] = *v
	}
	for k, v := range s.progress {
		snap.progress[k] = *v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.users = map[int64]*model.User{}
	for k, v := range snap.users {
		v := v
		s.users[k] = &v
	}
	s.follows = snap.follows
	s.tokens = snap.tokens
	s.requests = map[int64]*model.FollowRequest{}
	for k, v := range snap.requests {
		v := v
		s.requests[k] = &v
	}
	s.notifications = map[int64]*model.Notification{}
	for k, v := range snap.notifications {
		v := v
		s.notifications[k] = &v
	}
	s.likes = snap.likes
	s.threads = map[int64]*model.Thread{}
	for k, v := range snap.threads {
		v := v
		s.threads[k] = &v
	}
	s.comments = map[int64]*model.Comment{}
	for k, v := range snap.comments {
		v := v
		s.comments[k] = &v
	}
	s.progress = map[pair]*model.ReadingProgress{}
	for k, v := range snap.progress {
		v := v
		s.progress[k] = &v
	}
}

type memTransactor struct {
	store *memStore
	txMu  sync.Mutex
}

func (t *memTransactor) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	t.txMu.Lock()
	defer t.txMu.Unlock()

	t.store.mu.Lock()
	snap := t.store.snapshot()
	t.store.mu.Unlock()

	if err := fn(nil); err != nil {
		t.store.mu.Lock()
		t.store.restore(snap)
		t.store.mu.Unlock()
		return err
	}
	return nil
}

// seedUser adds a user with public settings unless mutate says otherwise.
func (s *memStore) seedUser(id int64, username string, mutate ...func(u *model.User)) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &model.User{
		ID:                        id,
		Username:                  username,
		Role:                      model.RoleUser,
		ProfileVisibility:         model.VisibilityPublic,
		ReadingProgressVisibility: model.VisibilityPublic,
		ActivityVisibility:        model.VisibilityPublic,
		AllowFollows:              true,
	}
	for _, m := range mutate {
		m(u)
	}
	s.users[id] = u
	cp := *u
	return &cp
}

func (s *memStore) seedFollow(followerID, followeeID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.follows[pair{followerID, followeeID}] = time.Now()
}

func (s *memStore) notificationsFor(recipientID int64) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Notification
	for _, n := range s.notifications {
		if n.UserID == recipientID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) notificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications)
}

func (s *memStore) hasEdge(followerID, followeeID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.follows[pair{followerID, followeeID}]
	return ok
}

func (s *memStore) requestFor(followerID, followeeID int64) *model.FollowRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.FollowerID == followerID && r.FolloweeID == followeeID {
			cp := *r
			return &cp
		}
	}
	return nil
}

func (s *memStore) user(id int64) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (s *memStore) likeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.likes)
}

// =============================================================================
// USERS
// =============================================================================

type memUsers struct{ *memStore }

func (r memUsers) GetByID(ctx context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("users.GetByID"); err != nil {
		return nil, err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[int64]*model.User{}
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (r memUsers) UpdatePrivacy(ctx context.Context, id int64, s model.PrivacySettings, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	u.ProfileVisibility = s.ProfileVisibility
	u.ReadingProgressVisibility = s.ReadingProgressVisibility
	u.ActivityVisibility = s.ActivityVisibility
	u.AllowFollows = s.AllowFollows
	u.RequireFollowApproval = s.RequireFollowApproval
	u.UpdatedAt = now
	return nil
}

func (r memUsers) Flag(ctx context.Context, tx *sqlx.Tx, id, moderatorID int64, reason string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("users.Flag"); err != nil {
		return false, err
	}
	u, ok := r.users[id]
	if !ok || u.IsFlagged || u.Role != model.RoleUser {
		return false, nil
	}
	u.IsFlagged = true
	u.FlaggedAt = &now
	u.FlagReason = &reason
	u.FlaggedBy = &moderatorID
	return true, nil
}

func (r memUsers) Unflag(ctx context.Context, id int64, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || !u.IsFlagged {
		return false, nil
	}
	u.IsFlagged = false
	u.FlaggedAt = nil
	u.FlagReason = nil
	u.FlaggedBy = nil
	return true, nil
}

func (r memUsers) ListFlagged(ctx context.Context) ([]model.FlaggedUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.FlaggedUser
	for _, u := range r.users {
		if u.IsFlagged {
			out = append(out, model.FlaggedUser{ID: u.ID, Username: u.Username, FlaggedAt: u.FlaggedAt, FlagReason: u.FlagReason})
		}
	}
	return out, nil
}

func (r memUsers) SetRole(ctx context.Context, tx *sqlx.Tx, id int64, from, to model.Role, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.Role != from || u.IsFlagged {
		return false, nil
	}
	u.Role = to
	u.UpdatedAt = now
	return true, nil
}

func (r memUsers) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("users.Delete"); err != nil {
		return err
	}
	if _, ok := r.users[id]; !ok {
		return model.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

// =============================================================================
// FOLLOWS
// =============================================================================

type memFollows struct{ *memStore }

func (r memFollows) Create(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("follows.Create"); err != nil {
		return false, err
	}
	k := pair{followerID, followeeID}
	if _, ok := r.follows[k]; ok {
		return false, nil
	}
	r.follows[k] = time.Now()
	return true, nil
}

func (r memFollows) Delete(ctx context.Context, followerID, followeeID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.follows, pair{followerID, followeeID})
	return nil
}

func (r memFollows) Exists(ctx context.Context, followerID, followeeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.follows[pair{followerID, followeeID}]
	return ok, nil
}

func (r memFollows) list(match func(pair) (int64, bool), limit, offset int) []model.UserSummary {
	var ids []int64
	for k := range r.follows {
		if id, ok := match(k); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	users := []model.UserSummary{}
	for i, id := range ids {
		if i < offset || len(users) >= limit {
			continue
		}
		users = append(users, model.UserSummary{ID: id, Username: r.users[id].Username})
	}
	return users
}

func (r memFollows) GetFollowers(ctx context.Context, userID int64, limit, offset int) ([]model.UserSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(k pair) (int64, bool) { return k.A, k.B == userID }, limit, offset), nil
}

func (r memFollows) GetFollowing(ctx context.Context, userID int64, limit, offset int) ([]model.UserSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(k pair) (int64, bool) { return k.B, k.A == userID }, limit, offset), nil
}

func (r memFollows) CheckFollows(ctx context.Context, followerID int64, followeeIDs []int64) (map[int64]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[int64]bool{}
	for _, id := range followeeIDs {
		_, out[id] = r.follows[pair{followerID, id}]
	}
	return out, nil
}

func (r memFollows) DeleteAllForUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k := range r.follows {
		if k.A == userID || k.B == userID {
			delete(r.follows, k)
			n++
		}
	}
	return n, nil
}

// =============================================================================
// FOLLOW REQUESTS
// =============================================================================

type memRequests struct{ *memStore }

func (r memRequests) UpsertPending(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) (*model.FollowRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if req.FollowerID == followerID && req.FolloweeID == followeeID {
			if req.Status == model.FollowRequestPending {
				return nil, model.ErrDuplicateRequest
			}
			req.Status = model.FollowRequestPending
			cp := *req
			return &cp, nil
		}
	}
	req := &model.FollowRequest{ID: r.id(), FollowerID: followerID, FolloweeID: followeeID, Status: model.FollowRequestPending}
	r.requests[req.ID] = req
	cp := *req
	return &cp, nil
}

func (r memRequests) Transition(ctx context.Context, tx *sqlx.Tx, requestID, followeeID int64, status model.FollowRequestStatus) (*model.FollowRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requestID]
	if !ok || req.FolloweeID != followeeID || req.Status != model.FollowRequestPending {
		return nil, model.ErrFollowRequestNotFound
	}
	req.Status = status
	cp := *req
	return &cp, nil
}

func (r memRequests) SetStatus(ctx context.Context, tx *sqlx.Tx, requestID int64, status model.FollowRequestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.requests[requestID]; ok {
		req.Status = status
	}
	return nil
}

func (r memRequests) DeletePending(ctx context.Context, followerID, followeeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, req := range r.requests {
		if req.FollowerID == followerID && req.FolloweeID == followeeID && req.Status == model.FollowRequestPending {
			delete(r.requests, id)
			return true, nil
		}
	}
	return false, nil
}

func (r memRequests) HasPending(ctx context.Context, followerID, followeeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if req.FollowerID == followerID && req.FolloweeID == followeeID && req.Status == model.FollowRequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (r memRequests) ListPending(ctx context.Context, followeeID int64) ([]model.FollowRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.FollowRequest
	for _, req := range r.requests {
		if req.FolloweeID == followeeID && req.Status == model.FollowRequestPending {
			cp := *req
			cp.Follower = &model.UserSummary{ID: req.FollowerID, Username: r.users[req.FollowerID].Username}
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r memRequests) DeleteAllForUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, req := range r.requests {
		if req.FollowerID == userID || req.FolloweeID == userID {
			delete(r.requests, id)
			n++
		}
	}
	return n, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

type memNotifications struct{ *memStore }

func (r memNotifications) Create(ctx context.Context, tx *sqlx.Tx, n model.NewNotification) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("notifications.Create"); err != nil {
		return nil, err
	}
	row := &model.Notification{
		ID:        r.id(),
		UserID:    n.RecipientID,
		ActorID:   n.ActorID,
		Type:      n.Type,
		Message:   n.Message,
		Data:      n.Data,
		CreatedAt: time.Now(),
	}
	if n.Related != nil {
		t, id := n.Related.Type, n.Related.ID
		row.RelatedType, row.RelatedID = &t, &id
	}
	r.notifications[row.ID] = row
	cp := *row
	return &cp, nil
}

func (r memNotifications) List(ctx context.Context, userID int64, q model.NotificationListQuery) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []model.Notification
	for _, n := range r.notifications {
		if n.UserID == userID && (!q.UnreadOnly || !n.IsRead) {
			all = append(all, *n)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if q.Offset >= len(all) {
		return []model.Notification{}, nil
	}
	all = all[q.Offset:]
	if len(all) > q.Limit {
		all = all[:q.Limit]
	}
	return all, nil
}

func (r memNotifications) GetUnreadCount(ctx context.Context, userID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r memNotifications) scoped(userID, id int64) (*model.Notification, error) {
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return nil, model.ErrNotificationNotFound
	}
	return n, nil
}

func (r memNotifications) MarkAsRead(ctx context.Context, userID, id int64, now time.Time) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.scoped(userID, id)
	if err != nil {
		return nil, err
	}
	n.IsRead = true
	n.ReadAt = &now
	cp := *n
	return &cp, nil
}

func (r memNotifications) MarkAsUnread(ctx context.Context, userID, id int64) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.scoped(userID, id)
	if err != nil {
		return nil, err
	}
	n.IsRead = false
	n.ReadAt = nil
	cp := *n
	return &cp, nil
}

func (r memNotifications) MarkAllAsRead(ctx context.Context, userID int64, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &now
			count++
		}
	}
	return count, nil
}

func (r memNotifications) Delete(ctx context.Context, userID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.scoped(userID, id); err != nil {
		return err
	}
	delete(r.notifications, id)
	return nil
}

func (r memNotifications) DeleteAllRead(ctx context.Context, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, n := range r.notifications {
		if n.UserID == userID && n.IsRead {
			delete(r.notifications, id)
			count++
		}
	}
	return count, nil
}

func (r memNotifications) DeleteInvolvingUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, n := range r.notifications {
		actor := n.ActorID != nil && *n.ActorID == userID
		related := n.RelatedType != nil && *n.RelatedType == model.RefUser && *n.RelatedID == userID
		if n.UserID == userID || actor || related {
			delete(r.notifications, id)
			count++
		}
	}
	return count, nil
}

func (r memNotifications) DeleteRelated(ctx context.Context, tx *sqlx.Tx, refType model.RefType, ids []int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := map[int64]bool{}
	for _, id := range ids {
		set[id] = true
	}
	var count int64
	for id, n := range r.notifications {
		if n.RelatedType != nil && *n.RelatedType == refType && set[*n.RelatedID] {
			delete(r.notifications, id)
			count++
		}
	}
	return count, nil
}

// =============================================================================
// LIKES
// =============================================================================

type memLikes struct{ *memStore }

func (r memLikes) Insert(ctx context.Context, tx *sqlx.Tx, userID int64, target model.Ref) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := likeKey{userID, target}
	if r.likes[k] {
		return false, nil
	}
	r.likes[k] = true
	return true, nil
}

func (r memLikes) Delete(ctx context.Context, tx *sqlx.Tx, userID int64, target model.Ref) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := likeKey{userID, target}
	existed := r.likes[k]
	delete(r.likes, k)
	return existed, nil
}

func (r memLikes) Count(ctx context.Context, target model.Ref) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for k := range r.likes {
		if k.Target == target {
			count++
		}
	}
	return count, nil
}

func (r memLikes) Exists(ctx context.Context, userID int64, target model.Ref) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.likes[likeKey{userID, target}], nil
}

func (r memLikes) DeleteByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for k := range r.likes {
		if k.UserID == userID {
			delete(r.likes, k)
			count++
		}
	}
	return count, nil
}

func (r memLikes) DeleteForTargets(ctx context.Context, tx *sqlx.Tx, targetType model.RefType, ids []int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, id := range ids {
		for k := range r.likes {
			if k.Target == (model.Ref{Type: targetType, ID: id}) {
				delete(r.likes, k)
				count++
			}
		}
	}
	return count, nil
}

// =============================================================================
// THREADS & COMMENTS
// =============================================================================

type memThreads struct{ *memStore }

func (r memThreads) Create(ctx context.Context, tx *sqlx.Tx, t *model.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.id()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	r.threads[t.ID] = &cp
	return nil
}

func (r memThreads) GetByID(ctx context.Context, id int64) (*model.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok {
		return nil, model.ErrThreadNotFound
	}
	cp := *t
	return &cp, nil
}

func (r memThreads) List(ctx context.Context, f model.ThreadFilter) ([]model.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Thread
	for _, t := range r.threads {
		if f.BookID != nil && t.BookID != *f.BookID {
			continue
		}
		if f.UserID != nil && t.UserID != *f.UserID {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memThreads) Update(ctx context.Context, t *model.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[t.ID]; !ok {
		return model.ErrThreadNotFound
	}
	t.UpdatedAt = time.Now()
	cp := *t
	r.threads[t.ID] = &cp
	return nil
}

func (r memThreads) deleteCascade(id int64) {
	delete(r.threads, id)
	for cid, c := range r.comments {
		if c.ThreadID == id {
			delete(r.comments, cid)
		}
	}
}

func (r memThreads) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[id]; !ok {
		return model.ErrThreadNotFound
	}
	r.deleteCascade(id)
	return nil
}

func (r memThreads) IDsByUser(ctx context.Context, tx *sqlx.Tx, userID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := []int64{}
	for id, t := range r.threads {
		if t.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r memThreads) DeleteByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, t := range r.threads {
		if t.UserID == userID {
			r.deleteCascade(id)
			count++
		}
	}
	return count, nil
}

type memComments struct{ *memStore }

func (r memComments) Create(ctx context.Context, tx *sqlx.Tx, c *model.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.id()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	r.comments[c.ID] = &cp
	return nil
}

func (r memComments) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, model.ErrCommentNotFound
	}
	cp := *c
	return &cp, nil
}

func (r memComments) ListByThread(ctx context.Context, threadID int64) ([]model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Comment
	for _, c := range r.comments {
		if c.ThreadID == threadID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memComments) UpdateContent(ctx context.Context, id int64, content string, now time.Time) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return time.Time{}, model.ErrCommentNotFound
	}
	c.Content = content
	c.UpdatedAt = now
	return now, nil
}

func (r memComments) subtree(root int64) []int64 {
	ids := []int64{root}
	for i := 0; i < len(ids); i++ {
		for id, c := range r.comments {
			if c.ParentCommentID != nil && *c.ParentCommentID == ids[i] {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func (r memComments) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[id]; !ok {
		return model.ErrCommentNotFound
	}
	for _, cid := range r.subtree(id) {
		delete(r.comments, cid)
	}
	return nil
}

func (r memComments) IDsInScope(ctx context.Context, tx *sqlx.Tx, userID int64, threadIDs []int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	threads := map[int64]bool{}
	for _, id := range threadIDs {
		threads[id] = true
	}
	seen := map[int64]bool{}
	ids := []int64{}
	for id, c := range r.comments {
		if c.UserID == userID || threads[c.ThreadID] {
			for _, sid := range r.subtree(id) {
				if !seen[sid] {
					seen[sid] = true
					ids = append(ids, sid)
				}
			}
		}
	}
	return ids, nil
}

func (r memComments) IDsByThread(ctx context.Context, tx *sqlx.Tx, threadID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := []int64{}
	for id, c := range r.comments {
		if c.ThreadID == threadID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r memComments) SubtreeIDs(ctx context.Context, tx *sqlx.Tx, commentID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subtree(commentID), nil
}

func (r memComments) DeleteByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, c := range r.comments {
		if c.UserID != userID {
			continue
		}
		if _, ok := r.comments[id]; !ok {
			continue
		}
		for _, sid := range r.subtree(id) {
			delete(r.comments, sid)
		}
		count++
	}
	return count, nil
}

// =============================================================================
// READING PROGRESS
// =============================================================================

type memProgress struct{ *memStore }

func (r memProgress) Upsert(ctx context.Context, rp *model.ReadingProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := pair{rp.UserID, rp.BookID}
	if existing, ok := r.progress[k]; ok {
		rp.ID = existing.ID
	} else {
		rp.ID = r.id()
	}
	rp.UpdatedAt = time.Now()
	cp := *rp
	r.progress[k] = &cp
	return nil
}

func (r memProgress) ListByUser(ctx context.Context, userID int64) ([]model.ReadingProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.ReadingProgress{}
	for k, rp := range r.progress {
		if k.A == userID {
			out = append(out, *rp)
		}
	}
	return out, nil
}

func (r memProgress) DeleteByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for k := range r.progress {
		if k.A == userID {
			delete(r.progress, k)
			count++
		}
	}
	return count, nil
}

// =============================================================================
// DEVICE TOKENS
// =============================================================================

type memTokens struct{ *memStore }

func (r memTokens) Upsert(ctx context.Context, userID int64, token, platform string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tokens[token]
	if !ok {
		existing = model.DeviceToken{ID: r.id(), Token: token, CreatedAt: time.Now()}
	}
	existing.UserID = userID
	existing.Platform = platform
	existing.UpdatedAt = time.Now()
	r.tokens[token] = existing
	return nil
}

func (r memTokens) GetByUserID(ctx context.Context, userID int64) ([]model.DeviceToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.DeviceToken
	for _, t := range r.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r memTokens) Delete(ctx context.Context, userID int64, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok || t.UserID != userID {
		return false, nil
	}
	delete(r.tokens, token)
	return true, nil
}

func (r memTokens) DeleteTokens(ctx context.Context, tokens []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, token := range tokens {
		if _, ok := r.tokens[token]; ok {
			delete(r.tokens, token)
			count++
		}
	}
	return count, nil
}

func (r memTokens) DeleteByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for token, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, token)
			count++
		}
	}
	return count, nil
}

// =============================================================================
// PUBLISHER
// =============================================================================

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, stream string, event queue.Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, event)
	return "1-0", nil
}

func (p *recordingPublisher) eventsOfType(t string) []queue.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []queue.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// STATS
// =============================================================================

type memStats struct{ *memStore }

func (r memStats) Overview(ctx context.Context, now time.Time) (*model.StatsOverview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := &model.StatsOverview{
		TotalUsers:           len(r.users),
		TotalThreads:         len(r.threads),
		TotalComments:        len(r.comments),
		TotalReadingProgress: len(r.progress),
	}
	books := map[int64]bool{}
	for _, u := range r.users {
		if u.IsFlagged {
			o.FlaggedUsers++
		}
		if !u.CreatedAt.Before(now.AddDate(0, 0, -30)) {
			o.ActiveUsers30d++
		}
		if !u.CreatedAt.Before(now.AddDate(0, 0, -7)) {
			o.NewUsers7d++
		}
	}
	for _, t := range r.threads {
		books[t.BookID] = true
	}
	for _, p := range r.progress {
		books[p.BookID] = true
		switch p.Status {
		case model.ReadingCompleted:
			o.CompletedBooks++
		case model.ReadingReading:
			o.CurrentlyReading++
		}
	}
	o.TotalBooks = len(books)
	return o, nil
}

func (r memStats) UsersByRole(ctx context.Context) (map[model.Role]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[model.Role]int{}
	for _, u := range r.users {
		out[u.Role]++
	}
	return out, nil
}

func (r memStats) MostActiveUsers(ctx context.Context, limit int) ([]model.ActiveUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byUser := map[int64]*model.ActiveUser{}
	for id, u := range r.users {
		byUser[id] = &model.ActiveUser{UserID: id, Username: u.Username}
	}
	for _, t := range r.threads {
		if a, ok := byUser[t.UserID]; ok {
			a.ThreadsCount++
			a.TotalActivity++
		}
	}
	for _, c := range r.comments {
		if a, ok := byUser[c.UserID]; ok {
			a.CommentsCount++
			a.TotalActivity++
		}
	}
	out := []model.ActiveUser{}
	for _, a := range byUser {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ThreadsCount != out[j].ThreadsCount {
			return out[i].ThreadsCount > out[j].ThreadsCount
		}
		if out[i].CommentsCount != out[j].CommentsCount {
			return out[i].CommentsCount > out[j].CommentsCount
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memStats) PopularBooks(ctx context.Context, limit int) ([]model.BookActivity, error) {
	return []model.BookActivity{}, nil
}

// =============================================================================
// WIRING
// =============================================================================

type testEnv struct {
	store     *memStore
	publisher *recordingPublisher

	notifications *NotificationService
	follows       *FollowService
	moderation    *ModerationService
	content       *ContentService
	likes         *LikeService
	privacy       *PrivacyService
	accounts      *AccountService
	devices       *DeviceService
	admin         *AdminService
}

func newTestEnv() *testEnv {
	store := newMemStore()
	pub := &recordingPublisher{}
	txr := &memTransactor{store: store}

	users := memUsers{store}
	follows := memFollows{store}
	requests := memRequests{store}
	notifs := memNotifications{store}
	likes := memLikes{store}
	threads := memThreads{store}
	comments := memComments{store}
	progress := memProgress{store}

	notifSvc := NewNotificationService(notifs, pub)
	contentSvc := NewContentService(users, follows, threads, comments, likes, notifs, notifSvc, txr)

	return &testEnv{
		store:         store,
		publisher:     pub,
		notifications: notifSvc,
		follows:       NewFollowService(users, follows, requests, notifSvc, txr),
		moderation:    NewModerationService(users, contentSvc, notifSvc, txr),
		content:       contentSvc,
		likes:         NewLikeService(likes, users, contentSvc, notifSvc, txr),
		privacy:       NewPrivacyService(users, follows, requests, progress),
		accounts: NewAccountService(AccountRepositories{
			Users:           users,
			Follows:         follows,
			FollowRequests:  requests,
			Threads:         threads,
			Comments:        comments,
			Likes:           likes,
			Notifications:   notifs,
			ReadingProgress: progress,
			DeviceTokens:    memTokens{store},
		}, txr, nil),
		devices: NewDeviceService(memTokens{store}),
		admin:   NewAdminService(users, memStats{store}, txr),
	}
}

func (e *testEnv) seedThread(ownerID int64, title string) *model.Thread {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	t := &model.Thread{ID: e.store.id(), UserID: ownerID, BookID: 1, Title: title, Content: "body", Scope: "general"}
	e.store.threads[t.ID] = t
	cp := *t
	return &cp
}

func (e *testEnv) seedComment(ownerID, threadID int64, parentID *int64) *model.Comment {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	c := &model.Comment{ID: e.store.id(), ThreadID: threadID, UserID: ownerID, ParentCommentID: parentID, Content: "text"}
	e.store.comments[c.ID] = c
	cp := *c
	return &cp
}

func private(u *model.User) {
	u.ProfileVisibility = model.VisibilityPrivate
	u.ReadingProgressVisibility = model.VisibilityPrivate
	u.ActivityVisibility = model.VisibilityPrivate
}

func requireApproval(u *model.User) { u.RequireFollowApproval = true }

func moderator(u *model.User) { u.Role = model.RoleModerator }

func admin(u *model.User) { u.Role = model.RoleAdmin }
