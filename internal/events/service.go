package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew       = "events.service.new"
	opCreate           = "events.create"
	opCreateBatch      = "events.create_batch"
	opGet              = "events.get"
	opList             = "events.list"
	opUpdate           = "events.update"
	opDelete           = "events.delete"
	opRollback         = "events.rollback"
	opShare            = "events.share"
	opPermissions      = "events.permissions"
	opUpdatePermission = "events.update_permission"
	opDeletePermission = "events.delete_permission"
	opVersion          = "events.version"
	opVersions         = "events.versions"
	opChangelog        = "events.changelog"
	opDiff             = "events.diff"
	opOccurrences      = "events.occurrences"
)

const (
	initialChangeComment = "Initial creation"
	defaultListLimit     = 100
	defaultOccurrenceMax = 100
)

// IDProvider issues unique identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig carries the dependencies of the mutation service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Notifier   Notifier
	Logger     *zap.Logger
}

// Service orchestrates every event mutation: it authorizes the caller,
// validates time conflicts, and commits the event row together with its
// version history in a single transaction. Notices are handed to the
// Notifier only after the transaction commits.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	notifier   Notifier
	logger     *zap.Logger
}

// NewService constructs the event service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		notifier:   notifier,
		logger:     logger,
	}, nil
}

// CreateInput carries the full field set for a new event.
type CreateInput struct {
	Title       string
	Description *string
	StartTime   time.Time
	EndTime     time.Time
	Location    *string
	IsRecurring bool
	Recurrence  *RecurrencePattern
}

func (in CreateInput) snapshot() Snapshot {
	return Snapshot{
		Title:       in.Title,
		Description: in.Description,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Location:    in.Location,
		IsRecurring: in.IsRecurring,
		Recurrence:  in.Recurrence,
	}
}

// ListOptions controls pagination and the optional date window for listings.
type ListOptions struct {
	Skip      int
	Limit     int
	StartDate *time.Time
	EndDate   *time.Time
}

// Grant assigns one role to one user during a share.
type Grant struct {
	UserID string
	Role   Role
}

// Create inserts a new event, its creator's OWNER permission, and the
// initial version as one atomic unit. Conflicting intervals reject the
// creation before anything is written.
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*Event, error) {
	snap := input.snapshot()
	if err := validateSnapshot(snap); err != nil {
		return nil, err
	}

	var created Event
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conflicts, err := findConflicts(tx, userID, snap.StartTime, snap.EndTime, "")
		if err != nil {
			s.logError(opCreate, "conflict_query_failed", err, zap.String("user_id", userID))
			return newServiceError(opCreate, "conflict_query_failed", err)
		}
		if len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}
		event, err := s.insertEvent(tx, userID, snap)
		if err != nil {
			return err
		}
		created = *event
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.notifier.Notify(ctx, Notice{
		Kind:            NoticeEventCreated,
		EventID:         created.ID,
		EventTitle:      created.Title,
		ActorID:         userID,
		AffectedUserIDs: []string{userID},
	})
	return &created, nil
}

// CreateBatch creates several events in one transaction. Every candidate is
// checked for conflicts against the user's existing events before any row is
// written.
func (s *Service) CreateBatch(ctx context.Context, userID string, inputs []CreateInput) ([]Event, error) {
	if len(inputs) == 0 {
		return nil, &ValidationError{Reason: "at least one event is required"}
	}
	snapshots := make([]Snapshot, 0, len(inputs))
	for _, input := range inputs {
		snap := input.snapshot()
		if err := validateSnapshot(snap); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}

	var created []Event
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, snap := range snapshots {
			conflicts, err := findConflicts(tx, userID, snap.StartTime, snap.EndTime, "")
			if err != nil {
				s.logError(opCreateBatch, "conflict_query_failed", err, zap.String("user_id", userID))
				return newServiceError(opCreateBatch, "conflict_query_failed", err)
			}
			if len(conflicts) > 0 {
				return &ConflictError{Conflicts: conflicts}
			}
		}
		for _, snap := range snapshots {
			event, err := s.insertEvent(tx, userID, snap)
			if err != nil {
				return err
			}
			created = append(created, *event)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	for _, event := range created {
		s.notifier.Notify(ctx, Notice{
			Kind:            NoticeEventCreated,
			EventID:         event.ID,
			EventTitle:      event.Title,
			ActorID:         userID,
			AffectedUserIDs: []string{userID},
		})
	}
	return created, nil
}

// insertEvent writes the event row, the creator's OWNER permission, and
// version 1 inside the caller's transaction. Conflict detection is the
// caller's responsibility.
func (s *Service) insertEvent(tx *gorm.DB, userID string, snap Snapshot) (*Event, error) {
	eventID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opCreate, "id_generation_failed", err)
	}
	recurrenceJSON, err := encodeRecurrence(snap.Recurrence)
	if err != nil {
		return nil, newServiceError(opCreate, "recurrence_encode_failed", err)
	}

	now := s.clock().UTC()
	event := Event{
		ID:             eventID,
		Title:          snap.Title,
		Description:    snap.Description,
		StartTime:      snap.StartTime,
		EndTime:        snap.EndTime,
		Location:       snap.Location,
		IsRecurring:    snap.IsRecurring,
		RecurrenceJSON: recurrenceJSON,
		CreatedBy:      userID,
		CurrentVersion: 1,
	}
	if err := tx.Create(&event).Error; err != nil {
		s.logError(opCreate, "event_insert_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opCreate, "event_insert_failed", err)
	}

	permission := EventPermission{EventID: eventID, UserID: userID, Role: RoleOwner}
	if err := tx.Create(&permission).Error; err != nil {
		s.logError(opCreate, "permission_insert_failed", err, zap.String("event_id", eventID))
		return nil, newServiceError(opCreate, "permission_insert_failed", err)
	}

	comment := initialChangeComment
	if _, err := appendVersion(tx, eventID, 1, snap, userID, &comment, now); err != nil {
		s.logError(opCreate, "version_insert_failed", err, zap.String("event_id", eventID))
		return nil, newServiceError(opCreate, "version_insert_failed", err)
	}

	return &event, nil
}

// Get loads one event for a caller. A missing event and a missing permission
// are indistinguishable to the caller.
func (s *Service) Get(ctx context.Context, eventID, userID string) (*Event, Role, error) {
	db := s.db.WithContext(ctx)
	event, err := s.loadEvent(db, opGet, eventID)
	if err != nil {
		return nil, "", err
	}
	role, found, err := roleFor(db, eventID, userID)
	if err != nil {
		s.logError(opGet, "permission_query_failed", err, zap.String("event_id", eventID))
		return nil, "", newServiceError(opGet, "permission_query_failed", err)
	}
	if event == nil || !found {
		return nil, "", ErrNotFound
	}
	return event, role, nil
}

// List returns the events the user holds any permission on, optionally
// restricted to a date window.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) ([]Event, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := s.db.WithContext(ctx).Model(&Event{}).
		Joins("JOIN event_permissions ON event_permissions.event_id = events.id AND event_permissions.user_id = ?", userID)

	switch {
	case opts.StartDate != nil && opts.EndDate != nil:
		query = query.Where(
			s.db.Where("events.start_time BETWEEN ? AND ?", *opts.StartDate, *opts.EndDate).
				Or("events.end_time BETWEEN ? AND ?", *opts.StartDate, *opts.EndDate).
				Or("events.start_time <= ? AND events.end_time >= ?", *opts.StartDate, *opts.EndDate),
		)
	case opts.StartDate != nil:
		query = query.Where("events.end_time >= ?", *opts.StartDate)
	case opts.EndDate != nil:
		query = query.Where("events.start_time <= ?", *opts.EndDate)
	}

	var results []Event
	if err := query.Order("events.start_time ASC").
		Offset(opts.Skip).
		Limit(limit).
		Find(&results).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opList, "query_failed", err)
	}
	return results, nil
}

// Update merges the patch over the current event state, revalidates the
// interval when it changed, and appends the next version atomically with the
// event row update.
func (s *Service) Update(ctx context.Context, eventID, userID string, patch Patch, changeComment *string) (*Event, error) {
	var updated Event
	var recipients []string
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, role, err := s.lockVisibleEvent(tx, opUpdate, eventID, userID)
		if err != nil {
			return err
		}
		if !role.Meets(RoleEditor) {
			return ErrForbidden
		}

		current, err := event.Snapshot()
		if err != nil {
			return newServiceError(opUpdate, "recurrence_decode_failed", err)
		}
		merged, err := patch.Apply(current)
		if err != nil {
			return err
		}

		if patch.TouchesInterval() {
			conflicts, err := findConflicts(tx, userID, merged.StartTime, merged.EndTime, eventID)
			if err != nil {
				s.logError(opUpdate, "conflict_query_failed", err, zap.String("event_id", eventID))
				return newServiceError(opUpdate, "conflict_query_failed", err)
			}
			if len(conflicts) > 0 {
				return &ConflictError{Conflicts: conflicts}
			}
		}

		nextVersion := event.CurrentVersion + 1
		now := s.clock().UTC()
		if _, err := appendVersion(tx, eventID, nextVersion, merged, userID, changeComment, now); err != nil {
			s.logError(opUpdate, "version_insert_failed", err, zap.String("event_id", eventID))
			return newServiceError(opUpdate, "version_insert_failed", err)
		}
		if err := s.writeEventRow(tx, event, merged, nextVersion); err != nil {
			s.logError(opUpdate, "event_update_failed", err, zap.String("event_id", eventID))
			return newServiceError(opUpdate, "event_update_failed", err)
		}

		recipients, err = permissionHolders(tx, eventID)
		if err != nil {
			s.logError(opUpdate, "holders_query_failed", err, zap.String("event_id", eventID))
			return newServiceError(opUpdate, "holders_query_failed", err)
		}
		updated = *event
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.notifier.Notify(ctx, Notice{
		Kind:            NoticeEventUpdated,
		EventID:         updated.ID,
		EventTitle:      updated.Title,
		ActorID:         userID,
		AffectedUserIDs: recipients,
	})
	return &updated, nil
}

// Delete removes the event together with its permissions and versions. Only
// the OWNER role may delete.
func (s *Service) Delete(ctx context.Context, eventID, userID string) error {
	var title string
	var affected []string
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, role, err := s.lockVisibleEvent(tx, opDelete, eventID, userID)
		if err != nil {
			return err
		}
		if role != RoleOwner {
			return ErrForbidden
		}

		affected, err = permissionHolders(tx, eventID)
		if err != nil {
			s.logError(opDelete, "holders_query_failed", err, zap.String("event_id", eventID))
			return newServiceError(opDelete, "holders_query_failed", err)
		}
		title = event.Title

		if err := tx.Where("event_id = ?", eventID).Delete(&EventVersion{}).Error; err != nil {
			s.logError(opDelete, "version_delete_failed", err, zap.String("event_id", eventID))
			return newServiceError(opDelete, "version_delete_failed", err)
		}
		if err := tx.Where("event_id = ?", eventID).Delete(&EventPermission{}).Error; err != nil {
			s.logError(opDelete, "permission_delete_failed", err, zap.String("event_id", eventID))
			return newServiceError(opDelete, "permission_delete_failed", err)
		}
		if err := tx.Where("id = ?", eventID).Delete(&Event{}).Error; err != nil {
			s.logError(opDelete, "event_delete_failed", err, zap.String("event_id", eventID))
			return newServiceError(opDelete, "event_delete_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}

	s.notifier.Notify(ctx, Notice{
		Kind:            NoticeEventDeleted,
		EventID:         eventID,
		EventTitle:      title,
		ActorID:         userID,
		AffectedUserIDs: affected,
	})
	return nil
}

// Rollback appends a new version whose field values are copied verbatim from
// the target version and updates the event row to match. Conflict detection
// is intentionally skipped: rollback restores a state that was valid when it
// was first written, even if the calendar has changed since.
func (s *Service) Rollback(ctx context.Context, eventID string, targetVersion int64, userID string) (*Event, error) {
	var restored Event
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, role, err := s.lockVisibleEvent(tx, opRollback, eventID, userID)
		if err != nil {
			return err
		}
		if !role.Meets(RoleEditor) {
			return ErrForbidden
		}

		target, err := getVersion(tx, eventID, targetVersion)
		if err != nil {
			s.logError(opRollback, "version_query_failed", err, zap.String("event_id", eventID))
			return newServiceError(opRollback, "version_query_failed", err)
		}
		if target == nil {
			return ErrNotFound
		}
		snap, err := target.Snapshot()
		if err != nil {
			return newServiceError(opRollback, "recurrence_decode_failed", err)
		}

		nextVersion := event.CurrentVersion + 1
		comment := fmt.Sprintf("Rollback to version %d", targetVersion)
		now := s.clock().UTC()
		if _, err := appendVersion(tx, eventID, nextVersion, snap, userID, &comment, now); err != nil {
			s.logError(opRollback, "version_insert_failed", err, zap.String("event_id", eventID))
			return newServiceError(opRollback, "version_insert_failed", err)
		}
		if err := s.writeEventRow(tx, event, snap, nextVersion); err != nil {
			s.logError(opRollback, "event_update_failed", err, zap.String("event_id", eventID))
			return newServiceError(opRollback, "event_update_failed", err)
		}
		restored = *event
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &restored, nil
}

// Share grants or overwrites roles for a set of users. Only the OWNER may
// share; an existing permission row for a grantee is updated in place.
func (s *Service) Share(ctx context.Context, eventID, actorID string, grants []Grant) ([]EventPermission, error) {
	if len(grants) == 0 {
		return nil, &ValidationError{Reason: "at least one grant is required"}
	}
	for _, grant := range grants {
		if grant.Role.Rank() == 0 {
			return nil, &ValidationError{Reason: fmt.Sprintf("role must be one of OWNER, EDITOR, VIEWER, got %q", grant.Role)}
		}
		if grant.UserID == "" {
			return nil, &ValidationError{Reason: "grant user_id is required"}
		}
	}

	var title string
	var result []EventPermission
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, role, err := s.lockVisibleEvent(tx, opShare, eventID, actorID)
		if err != nil {
			return err
		}
		if role != RoleOwner {
			return ErrForbidden
		}
		title = event.Title

		for _, grant := range grants {
			permission := EventPermission{EventID: eventID, UserID: grant.UserID, Role: grant.Role}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{"role": grant.Role}),
			}).Create(&permission).Error
			if err != nil {
				s.logError(opShare, "permission_upsert_failed", err,
					zap.String("event_id", eventID),
					zap.String("user_id", grant.UserID))
				return newServiceError(opShare, "permission_upsert_failed", err)
			}
		}

		result, err = listPermissions(tx, eventID)
		if err != nil {
			s.logError(opShare, "permission_query_failed", err, zap.String("event_id", eventID))
			return newServiceError(opShare, "permission_query_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	for _, grant := range grants {
		s.notifier.Notify(ctx, Notice{
			Kind:          NoticePermissionChanged,
			EventID:       eventID,
			EventTitle:    title,
			ActorID:       actorID,
			SubjectUserID: grant.UserID,
			Role:          grant.Role,
		})
	}
	return result, nil
}

// Permissions lists every permission row on the event. Restricted to the
// OWNER, matching the sharing surface.
func (s *Service) Permissions(ctx context.Context, eventID, actorID string) ([]EventPermission, error) {
	db := s.db.WithContext(ctx)
	_, role, err := s.visibleEvent(db, opPermissions, eventID, actorID)
	if err != nil {
		return nil, err
	}
	if role != RoleOwner {
		return nil, ErrForbidden
	}
	permissions, err := listPermissions(db, eventID)
	if err != nil {
		s.logError(opPermissions, "query_failed", err, zap.String("event_id", eventID))
		return nil, newServiceError(opPermissions, "query_failed", err)
	}
	return permissions, nil
}

// UpdatePermission overwrites the role of an existing permission row.
func (s *Service) UpdatePermission(ctx context.Context, eventID, actorID, subjectID string, role Role) (*EventPermission, error) {
	if role.Rank() == 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("role must be one of OWNER, EDITOR, VIEWER, got %q", role)}
	}

	var title string
	var updated EventPermission
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, actorRole, err := s.lockVisibleEvent(tx, opUpdatePermission, eventID, actorID)
		if err != nil {
			return err
		}
		if actorRole != RoleOwner {
			return ErrForbidden
		}
		title = event.Title

		_, found, err := roleFor(tx, eventID, subjectID)
		if err != nil {
			s.logError(opUpdatePermission, "permission_query_failed", err, zap.String("event_id", eventID))
			return newServiceError(opUpdatePermission, "permission_query_failed", err)
		}
		if !found {
			return ErrNotFound
		}

		if err := tx.Model(&EventPermission{}).
			Where("event_id = ? AND user_id = ?", eventID, subjectID).
			Update("role", role).Error; err != nil {
			s.logError(opUpdatePermission, "permission_update_failed", err, zap.String("event_id", eventID))
			return newServiceError(opUpdatePermission, "permission_update_failed", err)
		}
		updated = EventPermission{EventID: eventID, UserID: subjectID, Role: role}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.notifier.Notify(ctx, Notice{
		Kind:          NoticePermissionChanged,
		EventID:       eventID,
		EventTitle:    title,
		ActorID:       actorID,
		SubjectUserID: subjectID,
		Role:          role,
	})
	return &updated, nil
}

// DeletePermission revokes one user's access. The creator's OWNER permission
// can never be removed through this path.
func (s *Service) DeletePermission(ctx context.Context, eventID, actorID, subjectID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, actorRole, err := s.lockVisibleEvent(tx, opDeletePermission, eventID, actorID)
		if err != nil {
			return err
		}
		if actorRole != RoleOwner {
			return ErrForbidden
		}
		if subjectID == event.CreatedBy {
			return &ValidationError{Reason: "the event creator's permission cannot be removed"}
		}

		_, found, err := roleFor(tx, eventID, subjectID)
		if err != nil {
			s.logError(opDeletePermission, "permission_query_failed", err, zap.String("event_id", eventID))
			return newServiceError(opDeletePermission, "permission_query_failed", err)
		}
		if !found {
			return ErrNotFound
		}

		if err := tx.Where("event_id = ? AND user_id = ?", eventID, subjectID).
			Delete(&EventPermission{}).Error; err != nil {
			s.logError(opDeletePermission, "permission_delete_failed", err, zap.String("event_id", eventID))
			return newServiceError(opDeletePermission, "permission_delete_failed", err)
		}
		return nil
	})
}

// Version returns one historical version of an event visible to the caller.
func (s *Service) Version(ctx context.Context, eventID string, versionNumber int64, userID string) (*EventVersion, error) {
	db := s.db.WithContext(ctx)
	if _, _, err := s.visibleEvent(db, opVersion, eventID, userID); err != nil {
		return nil, err
	}
	version, err := getVersion(db, eventID, versionNumber)
	if err != nil {
		s.logError(opVersion, "query_failed", err, zap.String("event_id", eventID))
		return nil, newServiceError(opVersion, "query_failed", err)
	}
	if version == nil {
		return nil, ErrNotFound
	}
	return version, nil
}

// Versions returns the full ordered history of an event visible to the
// caller.
func (s *Service) Versions(ctx context.Context, eventID, userID string) ([]EventVersion, error) {
	db := s.db.WithContext(ctx)
	if _, _, err := s.visibleEvent(db, opVersions, eventID, userID); err != nil {
		return nil, err
	}
	versions, err := listVersions(db, eventID)
	if err != nil {
		s.logError(opVersions, "query_failed", err, zap.String("event_id", eventID))
		return nil, newServiceError(opVersions, "query_failed", err)
	}
	return versions, nil
}

// Changelog returns the non-empty diffs between consecutive versions.
func (s *Service) Changelog(ctx context.Context, eventID, userID string) ([]ChangelogEntry, error) {
	versions, err := s.Versions(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	entries, err := BuildChangelog(versions)
	if err != nil {
		return nil, newServiceError(opChangelog, "recurrence_decode_failed", err)
	}
	return entries, nil
}

// DiffVersions computes the field-level differences between two stored
// versions of the same event.
func (s *Service) DiffVersions(ctx context.Context, eventID string, fromVersion, toVersion int64, userID string) ([]FieldChange, error) {
	db := s.db.WithContext(ctx)
	if _, _, err := s.visibleEvent(db, opDiff, eventID, userID); err != nil {
		return nil, err
	}

	from, err := getVersion(db, eventID, fromVersion)
	if err != nil {
		s.logError(opDiff, "query_failed", err, zap.String("event_id", eventID))
		return nil, newServiceError(opDiff, "query_failed", err)
	}
	to, err := getVersion(db, eventID, toVersion)
	if err != nil {
		s.logError(opDiff, "query_failed", err, zap.String("event_id", eventID))
		return nil, newServiceError(opDiff, "query_failed", err)
	}
	if from == nil || to == nil {
		return nil, ErrNotFound
	}

	fromSnap, err := from.Snapshot()
	if err != nil {
		return nil, newServiceError(opDiff, "recurrence_decode_failed", err)
	}
	toSnap, err := to.Snapshot()
	if err != nil {
		return nil, newServiceError(opDiff, "recurrence_decode_failed", err)
	}
	return Diff(fromSnap, toSnap), nil
}

// Occurrences expands a recurring event's pattern up to the until bound,
// capped at max entries. Non-recurring events yield their start time only.
func (s *Service) Occurrences(ctx context.Context, eventID, userID string, until time.Time, max int) ([]time.Time, error) {
	event, _, err := s.Get(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if max <= 0 {
		max = defaultOccurrenceMax
	}

	pattern, err := decodeRecurrence(event.RecurrenceJSON)
	if err != nil {
		return nil, newServiceError(opOccurrences, "recurrence_decode_failed", err)
	}
	if !event.IsRecurring || pattern == nil {
		return []time.Time{event.StartTime}, nil
	}
	occurrences, err := pattern.Occurrences(event.StartTime, until, max)
	if err != nil {
		return nil, newServiceError(opOccurrences, "expansion_failed", err)
	}
	return occurrences, nil
}

// CheckPermission reports whether the user's held role satisfies the
// required role on the event.
func (s *Service) CheckPermission(ctx context.Context, eventID, userID string, required Role) (bool, error) {
	return hasPermission(s.db.WithContext(ctx), eventID, userID, required)
}

// RoleOf returns the user's role on the event, if any.
func (s *Service) RoleOf(ctx context.Context, eventID, userID string) (Role, bool, error) {
	return roleFor(s.db.WithContext(ctx), eventID, userID)
}

// loadEvent fetches the event row without locking, or nil when absent.
func (s *Service) loadEvent(db *gorm.DB, operation, eventID string) (*Event, error) {
	var event Event
	err := db.Where("id = ?", eventID).Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logError(operation, "event_query_failed", err, zap.String("event_id", eventID))
		return nil, newServiceError(operation, "event_query_failed", err)
	}
	return &event, nil
}

// visibleEvent resolves the event and the caller's role, collapsing a
// missing event and a missing permission into ErrNotFound.
func (s *Service) visibleEvent(db *gorm.DB, operation, eventID, userID string) (*Event, Role, error) {
	event, err := s.loadEvent(db, operation, eventID)
	if err != nil {
		return nil, "", err
	}
	role, found, err := roleFor(db, eventID, userID)
	if err != nil {
		s.logError(operation, "permission_query_failed", err, zap.String("event_id", eventID))
		return nil, "", newServiceError(operation, "permission_query_failed", err)
	}
	if event == nil || !found {
		return nil, "", ErrNotFound
	}
	return event, role, nil
}

// lockVisibleEvent is visibleEvent with a row-level UPDATE lock on the event
// row, serializing concurrent version-number assignment.
func (s *Service) lockVisibleEvent(tx *gorm.DB, operation, eventID, userID string) (*Event, Role, error) {
	var event Event
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", eventID).
		Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Still resolve the role so both absences collapse the same way.
		if _, _, roleErr := roleFor(tx, eventID, userID); roleErr != nil {
			s.logError(operation, "permission_query_failed", roleErr, zap.String("event_id", eventID))
			return nil, "", newServiceError(operation, "permission_query_failed", roleErr)
		}
		return nil, "", ErrNotFound
	}
	if err != nil {
		s.logError(operation, "event_query_failed", err, zap.String("event_id", eventID))
		return nil, "", newServiceError(operation, "event_query_failed", err)
	}

	role, found, err := roleFor(tx, eventID, userID)
	if err != nil {
		s.logError(operation, "permission_query_failed", err, zap.String("event_id", eventID))
		return nil, "", newServiceError(operation, "permission_query_failed", err)
	}
	if !found {
		return nil, "", ErrNotFound
	}
	return &event, role, nil
}

// writeEventRow applies the merged snapshot and the new version number to
// the live event row inside the caller's transaction.
func (s *Service) writeEventRow(tx *gorm.DB, event *Event, snap Snapshot, versionNumber int64) error {
	recurrenceJSON, err := encodeRecurrence(snap.Recurrence)
	if err != nil {
		return err
	}
	event.Title = snap.Title
	event.Description = snap.Description
	event.StartTime = snap.StartTime
	event.EndTime = snap.EndTime
	event.Location = snap.Location
	event.IsRecurring = snap.IsRecurring
	event.RecurrenceJSON = recurrenceJSON
	event.CurrentVersion = versionNumber
	return tx.Save(event).Error
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("events service error", attrs...)
}
