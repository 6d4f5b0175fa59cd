package engine

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/barberq/scheduling-core/internal/models"
	"github.com/barberq/scheduling-core/pkg/apperr"
	"github.com/barberq/scheduling-core/pkg/logger"
)

// allowedTransitions is the status state machine of §4.6/I6.
var allowedTransitions = map[models.Status][]models.Status{
	models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled, models.StatusNoShow},
	models.StatusConfirmed: {models.StatusOngoing, models.StatusCancelled, models.StatusNoShow},
	models.StatusOngoing:   {models.StatusDone},
}

// CanTransitionTo reports whether the state machine permits from->to.
// Grounded on other_examples' barbershop-app booking_service.go
// ValidateStatusTransition/CanTransitionTo, narrowed to this spec's six
// statuses.
func CanTransitionTo(from, to models.Status) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// IsInTerminalState reports whether s has no further transitions.
func IsInTerminalState(s models.Status) bool {
	return s == models.StatusDone || s == models.StatusCancelled || s == models.StatusNoShow
}

// FriendBlock is the optional friend-booking sub-record from §3.
type FriendBlock struct {
	FriendName        string
	FriendPhone       string
	FriendEmail       string
	PrimaryCustomerID string
}

// BookRequest is the input to Coordinator.Book, mirroring POST /book's
// body in §6.
type BookRequest struct {
	BarberID       string
	ServiceDate    string
	StartMinute    *int // nil => queue kind
	ServiceIDs     []string
	AddOnIDs       []string
	Priority       models.Priority
	CustomerID     *string
	Friend         *FriendBlock
	Notes          string
	IdempotencyKey string
}

// BookResult is the response shape of §6's POST /book.
type BookResult struct {
	AppointmentID     string                 `json:"appointment_id"`
	Kind              models.AppointmentKind `json:"appointment_kind"`
	StartMinute       *int                   `json:"start_minute,omitempty"`
	QueuePosition     *int                   `json:"queue_position,omitempty"`
	EstimatedStartMin int                    `json:"estimated_start_min"`
	EstimatedEndMin   int                    `json:"estimated_end_min"`
	Version           int                    `json:"version"`
}

// Coordinator is C6: the Booking Coordinator. It is the only component
// that acquires the per-(barber, date) lock and the only writer of
// Appointment rows.
type Coordinator struct {
	Repo      Repository
	Lock      *KeyedLock
	Publisher EventPublisher
	Policy    Policy
	Clock     Clock
	Log       *logger.Logger
}

func (c *Coordinator) today() string {
	date, _ := NowAsOf(c.Clock)
	return date
}

func (c *Coordinator) nowMinute() int {
	_, m := NowAsOf(c.Clock)
	return m
}

func activeQueueSorted(appts []models.Appointment) []models.Appointment {
	queue := make([]models.Appointment, 0, len(appts))
	for _, a := range appts {
		if a.Kind == models.KindQueue && a.Status.IsActive() {
			queue = append(queue, a)
		}
	}
	sort.Slice(queue, func(i, j int) bool {
		pi, pj := 0, 0
		if queue[i].QueuePosition != nil {
			pi = *queue[i].QueuePosition
		}
		if queue[j].QueuePosition != nil {
			pj = *queue[j].QueuePosition
		}
		return pi < pj
	})
	return queue
}

func scheduledMinutes(appts []models.Appointment) int {
	total := 0
	for _, a := range appts {
		if a.Kind == models.KindScheduled && a.Status.IsActive() {
			total += a.TotalDurationMin
		}
	}
	return total
}

func queueMinutes(appts []models.Appointment) int {
	total := 0
	for _, a := range appts {
		if a.Kind == models.KindQueue && a.Status.IsActive() {
			total += a.TotalDurationMin
		}
	}
	return total
}

// lookupIdempotent returns the cached result for key, or nil if none is
// recorded yet (or the stored record doesn't decode, in which case the
// request proceeds as if uncached).
func (c *Coordinator) lookupIdempotent(ctx context.Context, key string) *BookResult {
	rec, err := c.Repo.GetIdempotencyRecord(ctx, key)
	if err != nil || rec == nil {
		return nil
	}
	var cached BookResult
	if jsonErr := json.Unmarshal([]byte(rec.ResponseJSON), &cached); jsonErr != nil {
		return nil
	}
	return &cached
}

// Book implements §4.6's book algorithm.
func (c *Coordinator) Book(ctx context.Context, req BookRequest) (*BookResult, error) {
	if req.IdempotencyKey != "" {
		if cached := c.lookupIdempotent(ctx, req.IdempotencyKey); cached != nil {
			return cached, nil
		}
	}

	// Step 1: normalize request.
	services, err := c.Repo.GetServices(ctx, req.ServiceIDs)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to load services", err)
	}
	addons, err := c.Repo.GetAddOns(ctx, req.AddOnIDs)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to load addons", err)
	}
	totalDuration := 0
	var totalPrice int64
	for _, id := range req.ServiceIDs {
		svc, ok := services[id]
		if !ok {
			return nil, apperr.New(apperr.CodeUnknownService, "unknown service id: "+id)
		}
		totalDuration += svc.DurationMin
		totalPrice += svc.PriceCents
	}
	for _, id := range req.AddOnIDs {
		add, ok := addons[id]
		if !ok {
			return nil, apperr.New(apperr.CodeUnknownAddOn, "unknown addon id: "+id)
		}
		totalDuration += add.DurationMin
		totalPrice += add.PriceCents
	}
	if err := CheckMinServiceDuration(c.Policy, totalDuration); err != nil {
		return nil, err
	}

	// Step 2: acquire the per-(barber, date) lock.
	release, err := c.Lock.Acquire(ctx, req.BarberID, req.ServiceDate)
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-check now that the lock is held: a concurrent request with the
	// same key may have already inserted its row and recorded the result
	// between the fast-path check above and this point. The record is
	// always saved before the lock is released (below), so this second
	// check is the authoritative one, guaranteeing at most one row per key.
	if req.IdempotencyKey != "" {
		if cached := c.lookupIdempotent(ctx, req.IdempotencyKey); cached != nil {
			return cached, nil
		}
	}

	// Step 3: snapshot.
	snapshot, err := c.Repo.ListAppointments(ctx, req.BarberID, req.ServiceDate, models.ActiveStatuses)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to load snapshot", err)
	}

	// Step 4: capacity & policy (cheap rejects).
	barber, err := c.Repo.GetBarber(ctx, req.BarberID)
	if err != nil {
		return nil, apperr.New(apperr.CodeUnknownBarber, "unknown barber id: "+req.BarberID)
	}
	isDayOff, err := c.Repo.IsDayOff(ctx, req.BarberID, req.ServiceDate)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to check day-off", err)
	}
	if err := CheckBarberBookable(barber, isDayOff); err != nil {
		return nil, err
	}
	if err := CheckBookingWindow(c.Policy, req.ServiceDate, c.today(), c.nowMinute()); err != nil {
		return nil, err
	}

	blocks, err := BuildTimeline(snapshot, c.Policy)
	if err != nil {
		return nil, err
	}

	var kind models.AppointmentKind
	var startMinute *int
	var queuePosition *int
	var renumberMapping map[string]int

	if req.StartMinute != nil {
		kind = models.KindScheduled
		start := *req.StartMinute
		if err := CheckWorkingHourFit(c.Policy, start, totalDuration); err != nil {
			return nil, err
		}
		if err := CheckNoLunchCrossing(c.Policy, start, totalDuration); err != nil {
			return nil, err
		}
		if !fits(blocks, c.Policy, start, totalDuration) {
			return nil, apperr.New(apperr.CodeSlotNotAvailable, "requested slot is not available")
		}
		startMinute = &start
	} else {
		kind = models.KindQueue
		activeQueue := activeQueueSorted(snapshot)
		if err := CheckQueueCap(c.Policy, len(activeQueue)); err != nil {
			return nil, err
		}
		if err := CheckQueueFit(c.Policy, scheduledMinutes(snapshot), queueMinutes(snapshot), totalDuration); err != nil {
			return nil, err
		}
		if req.Priority == models.PriorityUrgent && len(activeQueue) > 0 {
			pos := 1
			queuePosition = &pos
			renumberMapping = make(map[string]int, len(activeQueue))
			for i, a := range activeQueue {
				renumberMapping[a.ID] = i + 2
			}
		} else {
			pos := len(activeQueue) + 1
			queuePosition = &pos
		}
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	row := models.Appointment{
		BarberID:      req.BarberID,
		CustomerID:    req.CustomerID,
		ServiceDate:   req.ServiceDate,
		Kind:          kind,
		StartMinute:   startMinute,
		QueuePosition: queuePosition,
		Priority:      priority,
		Status:        models.StatusPending,
		TotalDurationMin: totalDuration,
		ServiceIDs:    models.StringList(req.ServiceIDs),
		AddOnIDs:      models.StringList(req.AddOnIDs),
		TotalPriceCents: totalPrice,
		Notes:         req.Notes,
		Version:       1,
	}
	if req.Friend != nil {
		row.FriendName = &req.Friend.FriendName
		row.FriendPhone = &req.Friend.FriendPhone
		row.FriendEmail = &req.Friend.FriendEmail
		row.PrimaryCustomerID = &req.Friend.PrimaryCustomerID
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		row.IdempotencyKey = &key
	}

	inserted, err := c.Repo.InsertAppointment(ctx, row)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to persist appointment", err)
	}
	if renumberMapping != nil {
		if err := c.Repo.RenumberQueue(ctx, req.BarberID, req.ServiceDate, renumberMapping); err != nil {
			return nil, apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to renumber queue", err)
		}
		for id, newPos := range renumberMapping {
			c.emit(EventQueuePositionChanged, req.BarberID, req.ServiceDate, id, nil, newPos, 0)
		}
	}

	rebuilt, err := BuildTimeline(append(snapshot, inserted), c.Policy)
	if err != nil {
		return nil, err
	}
	estStart, estEnd := estimatedWindow(rebuilt, inserted)

	c.emit(EventAppointmentCreated, req.BarberID, req.ServiceDate, inserted.ID, nil, inserted, inserted.Version)

	result := &BookResult{
		AppointmentID:     inserted.ID,
		Kind:              inserted.Kind,
		StartMinute:       inserted.StartMinute,
		QueuePosition:     inserted.QueuePosition,
		EstimatedStartMin: estStart,
		EstimatedEndMin:   estEnd,
		Version:           inserted.Version,
	}

	if req.IdempotencyKey != "" {
		if payload, err := json.Marshal(result); err == nil {
			_ = c.Repo.SaveIdempotencyRecord(ctx, models.IdempotencyRecord{
				Key:           req.IdempotencyKey,
				BarberID:      req.BarberID,
				ServiceDate:   req.ServiceDate,
				AppointmentID: inserted.ID,
				ResponseJSON:  string(payload),
			})
		}
	}

	return result, nil
}

func estimatedWindow(blocks []Block, a models.Appointment) (int, int) {
	for _, b := range blocks {
		if b.AppointmentID == a.ID {
			return b.StartMinute, b.EndMinute
		}
	}
	return 0, 0
}

func (c *Coordinator) emit(t EventType, barberID, date, apptID string, before, after any, version int) {
	seq := c.Lock.NextSequence(barberID, date)
	evt := Event{
		Type:          t,
		BarberID:      barberID,
		ServiceDate:   date,
		AppointmentID: apptID,
		Sequence:      seq,
		Before:        before,
		After:         after,
		Version:       version,
		OccurredAt:    c.Clock.Now(),
	}
	if err := c.Publisher.Publish(evt); err != nil && c.Log != nil {
		c.Log.Warn("failed to publish event", "type", t, "appointment_id", apptID, "error", err)
	}
}

// Cancel sets status to cancelled and, for a queue row, closes the gap
// left in queue_position, §4.6.
func (c *Coordinator) Cancel(ctx context.Context, appointmentID string) error {
	found, err := c.Repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return apperr.New(apperr.CodeNotFound, "appointment not found")
	}

	release, err := c.Lock.Acquire(ctx, found.BarberID, found.ServiceDate)
	if err != nil {
		return err
	}
	defer release()

	current, err := c.Repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return apperr.New(apperr.CodeNotFound, "appointment not found")
	}
	if !CanTransitionTo(current.Status, models.StatusCancelled) {
		return apperr.New(apperr.CodeInvalidTransition, "cannot cancel from status "+string(current.Status))
	}

	status := models.StatusCancelled
	updated, err := c.Repo.UpdateAppointment(ctx, appointmentID, AppointmentPatch{Status: &status}, current.Version)
	if err != nil {
		return err
	}

	if current.Kind == models.KindQueue {
		if err := c.renumberQueueContiguous(ctx, current.BarberID, current.ServiceDate); err != nil {
			return err
		}
	}

	c.emit(EventAppointmentCancelled, current.BarberID, current.ServiceDate, appointmentID, current, updated, updated.Version)
	return nil
}

// renumberQueueContiguous re-reads the active queue and assigns
// contiguous positions 1..N in existing order, closing any gaps left
// by a cancellation — I3.
func (c *Coordinator) renumberQueueContiguous(ctx context.Context, barberID, date string) error {
	snapshot, err := c.Repo.ListAppointments(ctx, barberID, date, models.ActiveStatuses)
	if err != nil {
		return apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to reload snapshot", err)
	}
	queue := activeQueueSorted(snapshot)
	mapping := make(map[string]int, len(queue))
	changed := false
	for i, a := range queue {
		want := i + 1
		if a.QueuePosition == nil || *a.QueuePosition != want {
			changed = true
		}
		mapping[a.ID] = want
	}
	if !changed {
		return nil
	}
	if err := c.Repo.RenumberQueue(ctx, barberID, date, mapping); err != nil {
		return apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to renumber queue", err)
	}
	for id, pos := range mapping {
		c.emit(EventQueuePositionChanged, barberID, date, id, nil, pos, 0)
	}
	return nil
}

// TransitionStatus validates and applies a status change, I6.
func (c *Coordinator) TransitionStatus(ctx context.Context, appointmentID string, newStatus models.Status) error {
	found, err := c.Repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return apperr.New(apperr.CodeNotFound, "appointment not found")
	}
	release, err := c.Lock.Acquire(ctx, found.BarberID, found.ServiceDate)
	if err != nil {
		return err
	}
	defer release()

	current, err := c.Repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return apperr.New(apperr.CodeNotFound, "appointment not found")
	}
	if !CanTransitionTo(current.Status, newStatus) {
		return apperr.New(apperr.CodeInvalidTransition, "cannot transition from "+string(current.Status)+" to "+string(newStatus))
	}
	updated, err := c.Repo.UpdateAppointment(ctx, appointmentID, AppointmentPatch{Status: &newStatus}, current.Version)
	if err != nil {
		return err
	}
	c.emit(EventAppointmentStatusChanged, current.BarberID, current.ServiceDate, appointmentID, current.Status, newStatus, updated.Version)
	return nil
}

// ChangePriority updates priority then re-derives queue order via a
// stable sort by (priority_rank asc, created_at asc), §4.6.
func (c *Coordinator) ChangePriority(ctx context.Context, appointmentID string, newPriority models.Priority) error {
	found, err := c.Repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return apperr.New(apperr.CodeNotFound, "appointment not found")
	}
	release, err := c.Lock.Acquire(ctx, found.BarberID, found.ServiceDate)
	if err != nil {
		return err
	}
	defer release()

	current, err := c.Repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return apperr.New(apperr.CodeNotFound, "appointment not found")
	}
	if _, err := c.Repo.UpdateAppointment(ctx, appointmentID, AppointmentPatch{Priority: &newPriority}, current.Version); err != nil {
		return err
	}
	c.emit(EventQueuePriorityChanged, current.BarberID, current.ServiceDate, appointmentID, current.Priority, newPriority, 0)

	if current.Kind != models.KindQueue {
		return nil
	}
	snapshot, err := c.Repo.ListAppointments(ctx, current.BarberID, current.ServiceDate, models.ActiveStatuses)
	if err != nil {
		return apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to reload snapshot", err)
	}
	queue := make([]models.Appointment, 0, len(snapshot))
	for _, a := range snapshot {
		if a.Kind == models.KindQueue && a.Status.IsActive() {
			queue = append(queue, a)
		}
	}
	sort.SliceStable(queue, func(i, j int) bool {
		ri, rj := queue[i].Priority.PriorityRank(), queue[j].Priority.PriorityRank()
		if ri != rj {
			return ri < rj
		}
		return queue[i].CreatedAt.Before(queue[j].CreatedAt)
	})
	mapping := make(map[string]int, len(queue))
	for i, a := range queue {
		mapping[a.ID] = i + 1
	}
	if err := c.Repo.RenumberQueue(ctx, current.BarberID, current.ServiceDate, mapping); err != nil {
		return apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to renumber queue", err)
	}
	for _, a := range queue {
		newPos := mapping[a.ID]
		if a.QueuePosition == nil || *a.QueuePosition != newPos {
			c.emit(EventQueuePositionChanged, current.BarberID, current.ServiceDate, a.ID, a.QueuePosition, newPos, 0)
		}
	}
	return nil
}

// MoveQueuePosition validates 1 <= new_position <= active_queue_length,
// shifts the affected run by ±1, and renumbers atomically, §4.6.
func (c *Coordinator) MoveQueuePosition(ctx context.Context, appointmentID string, newPosition int) error {
	found, err := c.Repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return apperr.New(apperr.CodeNotFound, "appointment not found")
	}
	release, err := c.Lock.Acquire(ctx, found.BarberID, found.ServiceDate)
	if err != nil {
		return err
	}
	defer release()

	snapshot, err := c.Repo.ListAppointments(ctx, found.BarberID, found.ServiceDate, models.ActiveStatuses)
	if err != nil {
		return apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to reload snapshot", err)
	}
	queue := activeQueueSorted(snapshot)
	if newPosition < 1 || newPosition > len(queue) {
		return apperr.New(apperr.CodeInvalidRequest, "new_position out of range")
	}

	var current *models.Appointment
	oldPosition := -1
	for i, a := range queue {
		if a.ID == appointmentID {
			current = &queue[i]
			oldPosition = i + 1
			break
		}
	}
	if current == nil {
		return apperr.New(apperr.CodeNotFound, "appointment not found in active queue")
	}
	if oldPosition == newPosition {
		return nil
	}

	reordered := make([]models.Appointment, 0, len(queue))
	for _, a := range queue {
		if a.ID == appointmentID {
			continue
		}
		reordered = append(reordered, a)
	}
	insertAt := newPosition - 1
	tail := append([]models.Appointment{*current}, reordered[insertAt:]...)
	reordered = append(reordered[:insertAt], tail...)

	mapping := make(map[string]int, len(reordered))
	for i, a := range reordered {
		mapping[a.ID] = i + 1
	}
	if err := c.Repo.RenumberQueue(ctx, found.BarberID, found.ServiceDate, mapping); err != nil {
		return apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to renumber queue", err)
	}
	for _, a := range reordered {
		newPos := mapping[a.ID]
		if a.QueuePosition == nil || *a.QueuePosition != newPos {
			c.emit(EventQueuePositionChanged, found.BarberID, found.ServiceDate, a.ID, a.QueuePosition, newPos, 0)
		}
	}
	return nil
}

// PromoteQueueToScheduled finds the earliest bookable slot and converts
// the row to a scheduled appointment at that slot, §4.6.
func (c *Coordinator) PromoteQueueToScheduled(ctx context.Context, appointmentID string) error {
	found, err := c.Repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return apperr.New(apperr.CodeNotFound, "appointment not found")
	}
	release, err := c.Lock.Acquire(ctx, found.BarberID, found.ServiceDate)
	if err != nil {
		return err
	}
	defer release()

	snapshot, err := c.Repo.ListAppointments(ctx, found.BarberID, found.ServiceDate, models.ActiveStatuses)
	if err != nil {
		return apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to reload snapshot", err)
	}
	blocks, err := BuildTimeline(snapshot, c.Policy)
	if err != nil {
		return err
	}
	isToday := found.ServiceDate == c.today()
	slots := UnifiedSlots(blocks, c.Policy, found.TotalDurationMin, isToday, c.nowMinute())
	start := NextAvailable(slots)
	if start == nil {
		return apperr.New(apperr.CodeSlotNotAvailable, "no available slot to promote into")
	}

	kind := models.KindScheduled
	var noQueuePos *int
	patch := AppointmentPatch{Kind: &kind, StartMinute: ptrPtr(start), QueuePosition: ptrPtr(noQueuePos)}
	before := found
	updated, err := c.Repo.UpdateAppointment(ctx, appointmentID, patch, found.Version)
	if err != nil {
		return err
	}
	if err := c.renumberQueueContiguous(ctx, found.BarberID, found.ServiceDate); err != nil {
		return err
	}
	c.emit(EventScheduledTimeChanged, found.BarberID, found.ServiceDate, appointmentID, before, updated, updated.Version)
	return nil
}

// DemoteScheduledToQueue is the inverse of PromoteQueueToScheduled. Per
// PR7, the row returns to the tail of the active queue (position =
// new_max), not to its former queue position.
func (c *Coordinator) DemoteScheduledToQueue(ctx context.Context, appointmentID string) error {
	found, err := c.Repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return apperr.New(apperr.CodeNotFound, "appointment not found")
	}
	release, err := c.Lock.Acquire(ctx, found.BarberID, found.ServiceDate)
	if err != nil {
		return err
	}
	defer release()

	snapshot, err := c.Repo.ListAppointments(ctx, found.BarberID, found.ServiceDate, models.ActiveStatuses)
	if err != nil {
		return apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to reload snapshot", err)
	}
	activeQueue := activeQueueSorted(snapshot)
	newPos := len(activeQueue) + 1

	kind := models.KindQueue
	var noStart *int
	before := found
	patch := AppointmentPatch{Kind: &kind, StartMinute: ptrPtr(noStart), QueuePosition: ptrPtr(&newPos)}
	updated, err := c.Repo.UpdateAppointment(ctx, appointmentID, patch, found.Version)
	if err != nil {
		return err
	}
	c.emit(EventScheduledTimeChanged, found.BarberID, found.ServiceDate, appointmentID, before, updated, updated.Version)
	return nil
}

func ptrPtr(p *int) **int { return &p }
