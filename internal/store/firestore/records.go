package firestore

import (
	"context"
	"strings"

	"cloud.google.com/go/firestore"

	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/store"
)

type Activities struct {
	client *firestore.Client
}

func (s *Activities) Add(ctx context.Context, a *models.Activity) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	ref := s.client.Collection(activitiesCollection).NewDoc()
	if _, err := ref.Create(ctx, a); err != nil {
		return mapErr(err)
	}
	a.ID = ref.ID
	return nil
}

func (s *Activities) List(ctx context.Context, q store.ActivityQuery) ([]models.Activity, error) {
	query := s.client.Collection(activitiesCollection).Where("boardId", "==", q.BoardID)
	if q.CardID != "" {
		query = query.Where("cardId", "==", q.CardID)
	}
	snaps, err := query.OrderBy("createdAt", firestore.Desc).
		Limit(store.Limit(q.Limit, store.DefaultActivityLimit)).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]models.Activity, 0, len(snaps))
	for _, snap := range snaps {
		var a models.Activity
		if err := snap.DataTo(&a); err != nil {
			return nil, err
		}
		a.ID = snap.Ref.ID
		out = append(out, a)
	}
	return out, nil
}

type Notifications struct {
	client *firestore.Client
}

func (s *Notifications) col() *firestore.CollectionRef {
	return s.client.Collection(notificationsCollection)
}

func (s *Notifications) Add(ctx context.Context, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	ref := s.col().NewDoc()
	if _, err := ref.Create(ctx, n); err != nil {
		return mapErr(err)
	}
	n.ID = ref.ID
	return nil
}

func (s *Notifications) ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	snaps, err := s.col().Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc).
		Limit(store.Limit(limit, store.DefaultNotificationLimit)).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]models.Notification, 0, len(snaps))
	for _, snap := range snaps {
		var n models.Notification
		if err := snap.DataTo(&n); err != nil {
			return nil, err
		}
		n.ID = snap.Ref.ID
		out = append(out, n)
	}
	return out, nil
}

func (s *Notifications) MarkRead(ctx context.Context, userID, notificationID string) error {
	ref := s.col().Doc(notificationID)
	snap, err := ref.Get(ctx)
	if err != nil {
		return mapErr(err)
	}
	if owner, _ := snap.DataAt("userId"); owner != userID {
		return store.ErrNotFound
	}
	_, err = ref.Update(ctx, []firestore.Update{{Path: "read", Value: true}})
	return mapErr(err)
}

func (s *Notifications) MarkAllRead(ctx context.Context, userID string) (int, error) {
	snaps, err := s.col().Where("userId", "==", userID).Where("read", "==", false).Documents(ctx).GetAll()
	if err != nil {
		return 0, mapErr(err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(snaps))
	for _, snap := range snaps {
		job, err := bw.Update(snap.Ref, []firestore.Update{{Path: "read", Value: true}})
		if err != nil {
			bw.End()
			return 0, err
		}
		jobs = append(jobs, job)
	}
	bw.End()
	marked := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return marked, mapErr(err)
		}
		marked++
	}
	return marked, nil
}

type Profiles struct {
	client *firestore.Client
}

func (s *Profiles) doc(uid string) *firestore.DocumentRef {
	return s.client.Collection(profilesCollection).Doc(uid)
}

func decodeProfile(snap *firestore.DocumentSnapshot) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := snap.DataTo(&p); err != nil {
		return nil, err
	}
	p.UID = snap.Ref.ID
	return &p, nil
}

func (s *Profiles) Get(ctx context.Context, uid string) (*models.UserProfile, error) {
	snap, err := s.doc(uid).Get(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return decodeProfile(snap)
}

// profileFields builds a merge write. Empty strings delete the field.
func profileFields(p models.ProfilePatch) map[string]any {
	fields := map[string]any{"updatedAt": now()}
	set := func(name string, v *string) {
		if v == nil {
			return
		}
		if s := strings.TrimSpace(*v); s != "" {
			fields[name] = s
		} else {
			fields[name] = firestore.Delete
		}
	}
	set("email", p.Email)
	set("displayName", p.DisplayName)
	set("firstName", p.FirstName)
	set("lastName", p.LastName)
	set("middleName", p.MiddleName)
	set("telegram", p.Telegram)
	set("discord", p.Discord)
	set("fcmToken", p.FCMToken)
	return fields
}

func (s *Profiles) Upsert(ctx context.Context, uid string, patch models.ProfilePatch) (*models.UserProfile, error) {
	if _, err := s.doc(uid).Set(ctx, profileFields(patch), firestore.MergeAll); err != nil {
		return nil, mapErr(err)
	}
	return s.Get(ctx, uid)
}

func (s *Profiles) GetMany(ctx context.Context, uids []string) (map[string]*models.UserProfile, error) {
	out := make(map[string]*models.UserProfile, len(uids))
	if len(uids) == 0 {
		return out, nil
	}
	refs := make([]*firestore.DocumentRef, len(uids))
	for i, uid := range uids {
		refs[i] = s.doc(uid)
	}
	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, mapErr(err)
	}
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		p, err := decodeProfile(snap)
		if err != nil {
			return nil, err
		}
		out[p.UID] = p
	}
	return out, nil
}
