package event

import "time"

// BookingPayload is the payload shape for booking.* event types.
type BookingPayload struct {
	BookingReference string    `json:"booking_reference"`
	Status           string    `json:"status"`
	Origin           string    `json:"origin,omitempty"`
	Destination      string    `json:"destination,omitempty"`
	DepartureAt      time.Time `json:"departure_at,omitempty"`
	PassengerCount   int       `json:"passenger_count,omitempty"`
	TotalAmount      float64   `json:"total_amount,omitempty"`
	Currency         string    `json:"currency,omitempty"`
}

// PaymentPayload is the payload shape for payment.* event types.
type PaymentPayload struct {
	PaymentReference string  `json:"payment_reference"`
	BookingReference string  `json:"booking_reference"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	Status           string  `json:"status"`
	FailureReason    string  `json:"failure_reason,omitempty"`
}

// TicketPayload is the payload shape for the ticket.generated event type.
type TicketPayload struct {
	TicketNumber     string `json:"ticket_number"`
	BookingReference string `json:"booking_reference"`
	PassengerName    string `json:"passenger_name"`
	SeatNumber       string `json:"seat_number,omitempty"`
}

// payloadSchemas maps each event type to the JSON Schema its payload must
// satisfy. Shapes are fixed per type; unknown types have no schema and are
// rejected before validation.
var payloadSchemas = map[Type]string{
	TypeBookingCreated:   bookingSchema,
	TypeBookingConfirmed: bookingSchema,
	TypeBookingCancelled: bookingSchema,
	TypePaymentSuccess:   paymentSchema,
	TypePaymentFailed:    paymentSchema,
	TypeTicketGenerated:  ticketSchema,
}

const bookingSchema = `{
	"type": "object",
	"required": ["booking_reference", "status"],
	"properties": {
		"booking_reference": {"type": "string", "minLength": 1},
		"status": {"type": "string", "minLength": 1},
		"origin": {"type": "string"},
		"destination": {"type": "string"},
		"departure_at": {"type": "string"},
		"passenger_count": {"type": "integer", "minimum": 0},
		"total_amount": {"type": "number", "minimum": 0},
		"currency": {"type": "string"}
	}
}`

const paymentSchema = `{
	"type": "object",
	"required": ["payment_reference", "booking_reference", "amount", "currency", "status"],
	"properties": {
		"payment_reference": {"type": "string", "minLength": 1},
		"booking_reference": {"type": "string", "minLength": 1},
		"amount": {"type": "number", "minimum": 0},
		"currency": {"type": "string", "minLength": 3, "maxLength": 3},
		"status": {"type": "string", "minLength": 1},
		"failure_reason": {"type": "string"}
	}
}`

const ticketSchema = `{
	"type": "object",
	"required": ["ticket_number", "booking_reference", "passenger_name"],
	"properties": {
		"ticket_number": {"type": "string", "minLength": 1},
		"booking_reference": {"type": "string", "minLength": 1},
		"passenger_name": {"type": "string", "minLength": 1},
		"seat_number": {"type": "string"}
	}
}`
