package cache

import "context"

// Domain invalidation helpers. Key families mirror the read paths of the
// GraphQL layer: per-doctor and per-patient profile data plus the entity
// caches that reference them.

// InvalidateDoctor drops every cached entry derived from a doctor's data.
func (c *Cache) InvalidateDoctor(ctx context.Context, doctorID string) int {
	n := c.InvalidatePattern(ctx, "doctor:"+doctorID+":*")
	n += c.InvalidatePattern(ctx, "appointments:doctor:"+doctorID+":*")
	n += c.InvalidatePattern(ctx, "availabilities:doctor:"+doctorID+":*")
	n += c.InvalidatePattern(ctx, "reviews:doctor:"+doctorID+":*")
	return n
}

// InvalidatePatient drops every cached entry derived from a patient's data.
func (c *Cache) InvalidatePatient(ctx context.Context, patientID string) int {
	n := c.InvalidatePattern(ctx, "patient:"+patientID+":*")
	n += c.InvalidatePattern(ctx, "appointments:patient:"+patientID+":*")
	n += c.InvalidatePattern(ctx, "documents:patient:"+patientID+":*")
	n += c.InvalidatePattern(ctx, "reviews:patient:"+patientID+":*")
	return n
}

// InvalidateAppointments drops cached appointment lists. With neither party
// supplied the whole appointment family is invalidated.
func (c *Cache) InvalidateAppointments(ctx context.Context, doctorID, patientID string) int {
	if doctorID == "" && patientID == "" {
		return c.InvalidatePattern(ctx, "appointments:*")
	}

	var n int
	if doctorID != "" {
		n += c.InvalidatePattern(ctx, "appointments:doctor:"+doctorID+":*")
	}
	if patientID != "" {
		n += c.InvalidatePattern(ctx, "appointments:patient:"+patientID+":*")
	}
	return n
}

// InvalidateMessages drops cached message pages for one conversation, or all
// conversations when conversationID is empty.
func (c *Cache) InvalidateMessages(ctx context.Context, conversationID string) int {
	if conversationID == "" {
		return c.InvalidatePattern(ctx, "messages:*")
	}
	return c.InvalidatePattern(ctx, "messages:conversation:"+conversationID+":*")
}

// InvalidateNotifications drops cached notification pages for one user, or
// all users when userID is empty.
func (c *Cache) InvalidateNotifications(ctx context.Context, userID string) int {
	if userID == "" {
		return c.InvalidatePattern(ctx, "notifications:*")
	}
	return c.InvalidatePattern(ctx, "notifications:user:"+userID+":*")
}
