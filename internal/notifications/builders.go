package notifications

import (
	"context"
	"fmt"
	"time"
)

// Person identifies a doctor or message sender referenced by notification text.
type Person struct {
	ID        string
	FirstName string
	LastName  string
}

// Appointment carries the fields the appointment builders render.
type Appointment struct {
	ID              string
	Doctor          Person
	Date            time.Time
	StartTime       string
	ConsultationFee float64
}

const dateLayout = "02/01/2006"

// CreateAppointmentReminder builds and stores a reminder for an upcoming
// appointment.
func (s *Store) CreateAppointmentReminder(ctx context.Context, userID string, appt Appointment) (*Notification, error) {
	message := fmt.Sprintf("You have an appointment with Dr. %s %s on %s at %s",
		appt.Doctor.FirstName, appt.Doctor.LastName, appt.Date.Format(dateLayout), appt.StartTime)

	return s.Create(ctx, userID, "Appointment reminder", message, TypeAppointmentReminder,
		map[string]interface{}{"appointmentId": appt.ID})
}

// CreateAppointmentConfirmation builds and stores a confirmation notice.
func (s *Store) CreateAppointmentConfirmation(ctx context.Context, userID string, appt Appointment) (*Notification, error) {
	message := fmt.Sprintf("Your appointment with Dr. %s %s on %s at %s has been confirmed",
		appt.Doctor.FirstName, appt.Doctor.LastName, appt.Date.Format(dateLayout), appt.StartTime)

	return s.Create(ctx, userID, "Appointment confirmed", message, TypeAppointmentConfirmed,
		map[string]interface{}{"appointmentId": appt.ID})
}

// CreateAppointmentCancellation builds and stores a cancellation notice.
func (s *Store) CreateAppointmentCancellation(ctx context.Context, userID string, appt Appointment) (*Notification, error) {
	message := fmt.Sprintf("Your appointment with Dr. %s %s scheduled for %s at %s has been cancelled",
		appt.Doctor.FirstName, appt.Doctor.LastName, appt.Date.Format(dateLayout), appt.StartTime)

	return s.Create(ctx, userID, "Appointment cancelled", message, TypeAppointmentCancelled,
		map[string]interface{}{"appointmentId": appt.ID})
}

// CreateNewMessage builds and stores a new-message notice for the recipient.
// The message body itself is not stored, only the sender and conversation.
func (s *Store) CreateNewMessage(ctx context.Context, userID string, sender Person, conversationID string) (*Notification, error) {
	message := fmt.Sprintf("You have received a new message from %s %s", sender.FirstName, sender.LastName)

	return s.Create(ctx, userID, "New message", message, TypeNewMessage, map[string]interface{}{
		"conversationId": conversationID,
		"senderId":       sender.ID,
		"senderName":     sender.FirstName + " " + sender.LastName,
	})
}

// CreatePaymentSuccess builds and stores a payment receipt notice.
func (s *Store) CreatePaymentSuccess(ctx context.Context, userID string, appt Appointment) (*Notification, error) {
	message := fmt.Sprintf("Your payment of %.2f€ for the appointment with Dr. %s %s on %s at %s was successful",
		appt.ConsultationFee, appt.Doctor.FirstName, appt.Doctor.LastName, appt.Date.Format(dateLayout), appt.StartTime)

	return s.Create(ctx, userID, "Payment successful", message, TypePaymentSuccess, map[string]interface{}{
		"appointmentId": appt.ID,
		"amount":        appt.ConsultationFee,
	})
}
